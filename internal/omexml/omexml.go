// Package omexml reads the OME-XML metadata files written beside each field
// of a MatrixScreener export.
package omexml

import (
	"encoding/xml"
	"fmt"
	"os"

	"matrixscreen/internal/services"
)

// Channel is one Pixels/Channel element.
type Channel struct {
	ID   string `xml:"ID,attr"`
	Name string `xml:"Name,attr"`
}

// Pixels describes the raster of one image.
type Pixels struct {
	DimensionOrder string    `xml:"DimensionOrder,attr"`
	Type           string    `xml:"Type,attr"`
	SizeX          int       `xml:"SizeX,attr"`
	SizeY          int       `xml:"SizeY,attr"`
	SizeZ          int       `xml:"SizeZ,attr"`
	SizeC          int       `xml:"SizeC,attr"`
	SizeT          int       `xml:"SizeT,attr"`
	PhysicalSizeX  float64   `xml:"PhysicalSizeX,attr"`
	PhysicalSizeY  float64   `xml:"PhysicalSizeY,attr"`
	Channels       []Channel `xml:"Channel"`
}

// Image is one OME/Image element.
type Image struct {
	ID     string `xml:"ID,attr"`
	Name   string `xml:"Name,attr"`
	Pixels Pixels `xml:"Pixels"`
}

// Metadata is the decoded document.
type Metadata struct {
	XMLName xml.Name `xml:"OME"`
	Images  []Image  `xml:"Image"`
}

// Pixels returns the Pixels element of the first image.
func (m *Metadata) Pixels() (Pixels, bool) {
	if m == nil || len(m.Images) == 0 {
		return Pixels{}, false
	}
	return m.Images[0].Pixels, true
}

// ChannelNames lists the channel names of the first image in document order.
func (m *Metadata) ChannelNames() []string {
	px, ok := m.Pixels()
	if !ok {
		return nil
	}
	names := make([]string, 0, len(px.Channels))
	for _, ch := range px.Channels {
		names = append(names, ch.Name)
	}
	return names
}

// TileSize returns SizeX and SizeY of the first image. It fails when the
// document carries no image or a non-positive size.
func (m *Metadata) TileSize() (int, int, error) {
	px, ok := m.Pixels()
	if !ok {
		return 0, 0, services.Wrap(services.ErrValidation, "omexml", "tile size", "document has no Image element", nil)
	}
	if px.SizeX <= 0 || px.SizeY <= 0 {
		return 0, 0, services.Wrap(services.ErrValidation, "omexml", "tile size",
			fmt.Sprintf("invalid pixel size %dx%d", px.SizeX, px.SizeY), nil)
	}
	return px.SizeX, px.SizeY, nil
}

// Read decodes the OME-XML file at path.
func Read(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var md Metadata
	if err := xml.NewDecoder(f).Decode(&md); err != nil {
		return nil, services.Wrap(services.ErrValidation, "omexml", "decode", path, err)
	}
	return &md, nil
}
