package testsupport

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"matrixscreen/internal/attributes"
)

// Coord identifies one exported image by its seven attribute values.
type Coord struct {
	S, U, V, X, Y, C, Z int
}

// WellDir returns the chamber directory, relative to the experiment root, that
// the exporter uses for well (u, v) on slide s.
func WellDir(s, u, v int) string {
	return filepath.Join(
		"slide"+attributes.Format(attributes.S, s),
		"chamber"+attributes.Format(attributes.U, u)+attributes.Format(attributes.V, v),
	)
}

// FieldDir returns the field directory relative to the experiment root.
func FieldDir(s, u, v, x, y int) string {
	return filepath.Join(WellDir(s, u, v), "field"+attributes.Format(attributes.X, x)+attributes.Format(attributes.Y, y))
}

// ImagePath returns the exporter's relative path for one image, using the
// full file name with the L/J/E/O/T tags the microscope writes.
func ImagePath(c Coord) string {
	name := fmt.Sprintf("image--L0000%s%s%s--J08--E00--O00%s%s--T0000%s%s.ome.tif",
		attributes.Format(attributes.S, c.S),
		attributes.Format(attributes.U, c.U),
		attributes.Format(attributes.V, c.V),
		attributes.Format(attributes.X, c.X),
		attributes.Format(attributes.Y, c.Y),
		attributes.Format(attributes.Z, c.Z),
		attributes.Format(attributes.C, c.C),
	)
	return filepath.Join(FieldDir(c.S, c.U, c.V, c.X, c.Y), name)
}

// MetadataPath returns the relative path of the per-field OME-XML document.
func MetadataPath(s, u, v, x, y int) string {
	name := fmt.Sprintf("image--L0000%s%s%s--J08--E00--O00%s%s.ome.xml",
		attributes.Format(attributes.S, s),
		attributes.Format(attributes.U, u),
		attributes.Format(attributes.V, v),
		attributes.Format(attributes.X, x),
		attributes.Format(attributes.Y, y),
	)
	return filepath.Join(FieldDir(s, u, v, x, y), "metadata", name)
}

// WriteExperiment creates a placeholder file under root for every relative
// path and returns the absolute paths in input order.
func WriteExperiment(t testing.TB, root string, rel ...string) []string {
	t.Helper()

	out := make([]string, 0, len(rel))
	for _, r := range rel {
		path := filepath.Join(root, r)
		WriteFile(t, path, 16)
		out = append(out, path)
	}
	return out
}

// WriteFile writes size bytes of 'B' to path, creating parent directories.
// Experiment fixtures only need files to exist, so the content is filler; a
// size <= 0 still produces a one byte file.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{'B'}, int(max(size, 1))), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteScanningTemplate writes an experiment-level template into the
// AdditionalData folder and returns its path.
func WriteScanningTemplate(t testing.TB, root string) string {
	t.Helper()

	path := filepath.Join(root, "AdditionalData", "{ScanningTemplate}leicaautomator.xml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("<ScanningTemplate/>\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteTIFF encodes img as an uncompressed TIFF at path.
func WriteTIFF(t testing.TB, path string, img image.Image) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// WriteOMEXML writes a minimal OME-XML document describing a single plane of
// the given size.
func WriteOMEXML(t testing.TB, path string, sizeX, sizeY int) {
	t.Helper()

	doc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<OME xmlns="http://www.openmicroscopy.org/Schemas/OME/2010-06">
  <Image ID="Image:0" Name="field">
    <Pixels ID="Pixels:0" DimensionOrder="XYCZT" Type="uint8" SizeX="%d" SizeY="%d" SizeZ="1" SizeC="1" SizeT="1" PhysicalSizeX="0.5" PhysicalSizeY="0.5">
      <Channel ID="Channel:0:0" Name="Gray"/>
    </Pixels>
  </Image>
</OME>
`, sizeX, sizeY)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
