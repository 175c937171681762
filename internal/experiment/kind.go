package experiment

import (
	"path/filepath"
	"strings"
)

// Kind classifies an indexed file by its extension.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindImage is a raster: .tif, .tiff or .png.
	KindImage
	// KindMetadata is an XML or JSON document describing a field.
	KindMetadata
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// KindFromPath infers the file kind from the final extension.
func KindFromPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff", ".png":
		return KindImage
	case ".xml", ".json":
		return KindMetadata
	default:
		return KindUnknown
	}
}

// stitchedPrefix marks mosaics written by the stitcher into the experiment.
const stitchedPrefix = "stitched--"

func isStitched(path string) bool {
	return strings.HasPrefix(filepath.Base(path), stitchedPrefix)
}
