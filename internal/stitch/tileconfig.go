package stitch

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"matrixscreen/internal/attributes"
)

// RegisteredFileName is the layout Fiji writes after computing overlaps.
const RegisteredFileName = "TileConfiguration.registered.txt"

// WriteTileConfiguration writes the plan in the Grid/Collection "Positions
// from file" layout format. Tile paths are written relative to dir when
// possible and absolute otherwise.
func (p Plan) WriteTileConfiguration(w io.Writer, dir string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# Define the number of dimensions we are working on")
	fmt.Fprintln(bw, "dim = 2")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "# Define the image coordinates")
	for _, t := range p.Tiles {
		name := t.Ref.Path
		if dir != "" {
			if rel, err := filepath.Rel(dir, t.Ref.Path); err == nil {
				name = rel
			}
		}
		fmt.Fprintf(bw, "%s; ; (%d.0, %d.0)\n", filepath.ToSlash(name), t.X, t.Y)
	}
	return bw.Flush()
}

// Registered is one tile position read back from a layout file.
type Registered struct {
	Name  string
	Attrs attributes.Set
	X     float64
	Y     float64
}

// ReadRegistered reads a layout file such as TileConfiguration.registered.txt.
func ReadRegistered(path string) ([]Registered, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := ParseTileConfiguration(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// tileAttrs parses the tags of a tile name. Fiji copies names verbatim, so
// when a tag unrelated to placement is malformed the field position is still
// recovered from the X and Y tags alone.
func tileAttrs(name string) attributes.Set {
	if attrs, err := attributes.Parse(name); err == nil {
		return attrs
	}
	pos := make(map[attributes.Key]int, 2)
	for _, k := range []attributes.Key{attributes.X, attributes.Y} {
		if v, ok, err := attributes.Lookup(name, k); err == nil && ok {
			pos[k] = v
		}
	}
	return attributes.NewSet(pos)
}

// ParseTileConfiguration parses layout lines of the form
// "name; ; (x, y)". Comments, blank lines and the dim header are skipped.
func ParseTileConfiguration(r io.Reader) ([]Registered, error) {
	var out []Registered
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "dim") {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d", lineNo, len(parts))
		}
		name := strings.TrimSpace(parts[0])
		x, y, err := parsePoint(parts[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, Registered{Name: name, Attrs: tileAttrs(name), X: x, Y: y})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parsePoint(value string) (float64, float64, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "(") || !strings.HasSuffix(trimmed, ")") {
		return 0, 0, fmt.Errorf("coordinates %q not parenthesised", trimmed)
	}
	coords := strings.Split(trimmed[1:len(trimmed)-1], ",")
	if len(coords) < 2 {
		return 0, 0, fmt.Errorf("coordinates %q need x and y", trimmed)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse y: %w", err)
	}
	return x, y, nil
}
