package compress

import (
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"
)

// Sidecar is the JSON document written beside every compressed image.
type Sidecar struct {
	Source string `json:"source"`
	// Tags maps the decimal TIFF tag ID to its decoded values.
	Tags map[string][]any `json:"tags"`
	// Palette is the flat r,g,b colour map of a paletted source.
	Palette []uint8 `json:"palette,omitempty"`
	// Mode records the source pixel layout: P (paletted), L, I;16 or RGBA.
	Mode string `json:"mode"`
}

func newSidecar(source string, tags []Tag, mode string) Sidecar {
	sc := Sidecar{Source: source, Tags: make(map[string][]any, len(tags)), Mode: mode}
	for _, t := range tags {
		sc.Tags[strconv.Itoa(int(t.ID))] = t.Values
	}
	return sc
}

// PaletteColors converts the stored palette back into a color.Palette.
func (s Sidecar) PaletteColors() color.Palette {
	if len(s.Palette) < 3 {
		return nil
	}
	p := make(color.Palette, 0, len(s.Palette)/3)
	for i := 0; i+2 < len(s.Palette); i += 3 {
		p = append(p, color.RGBA{R: s.Palette[i], G: s.Palette[i+1], B: s.Palette[i+2], A: 0xff})
	}
	return p
}

func flattenPalette(p color.Palette) []uint8 {
	out := make([]uint8, 0, len(p)*3)
	for _, c := range p {
		r, g, b, _ := c.RGBA()
		out = append(out, uint8(r>>8), uint8(g>>8), uint8(b>>8))
	}
	return out
}

func (s Sidecar) write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ReadSidecar loads a sidecar written by Compress.
func ReadSidecar(path string) (Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sidecar{}, err
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return Sidecar{}, fmt.Errorf("decode sidecar %s: %w", path, err)
	}
	return sc, nil
}
