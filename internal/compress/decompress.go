package compress

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"matrixscreen/internal/fileutil"
	"matrixscreen/internal/services"
)

// DecompressOptions configure Decompress.
type DecompressOptions struct {
	// OutputDir receives the TIFF; empty means beside the PNG.
	OutputDir     string
	DeletePNG     bool
	DeleteSidecar bool
	Force         bool
}

// DecompressedPath returns the .ome.tif path restored from a PNG.
func DecompressedPath(pngPath, outDir string) string {
	stem := strings.TrimSuffix(pngPath, filepath.Ext(pngPath))
	if outDir != "" {
		stem = filepath.Join(outDir, filepath.Base(stem))
	}
	return stem + ".ome.tif"
}

// Decompress restores the TIFF written from pngPath. Pixel values and the
// palette are restored; the other TIFF tags remain available in the sidecar
// only, as the encoder writes a fixed tag set.
func Decompress(ctx context.Context, pngPath string, opts DecompressOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(pngPath), ".png") {
		return "", services.Wrap(services.ErrValidation, "decompress", "check", "not a PNG: "+pngPath, nil)
	}
	out := DecompressedPath(pngPath, opts.OutputDir)
	if !opts.Force {
		if _, err := os.Stat(out); err == nil {
			return out, services.Wrap(services.ErrSkipped, "decompress", "", "TIFF already exists: "+out, nil)
		}
	}

	sidecarPath := SidecarPath(pngPath)
	sidecar, err := ReadSidecar(sidecarPath)
	hasSidecar := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	f, err := os.Open(pngPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", pngPath, err)
	}
	img, err := png.Decode(f)
	_ = f.Close()
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "decompress", "decode", pngPath, err)
	}

	if gray, ok := img.(*image.Gray); ok && hasSidecar {
		if palette := sidecar.PaletteColors(); len(palette) > 0 {
			img = &image.Paletted{Pix: gray.Pix, Stride: gray.Stride, Rect: gray.Rect, Palette: palette}
		}
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := fileutil.WriteAtomic(out, 0o644, func(w io.Writer) error {
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Uncompressed})
	}); err != nil {
		return "", fmt.Errorf("write tiff: %w", err)
	}

	if opts.DeletePNG {
		if err := os.Remove(pngPath); err != nil {
			return out, fmt.Errorf("delete png: %w", err)
		}
	}
	if opts.DeleteSidecar && hasSidecar {
		if err := os.Remove(sidecarPath); err != nil {
			return out, fmt.Errorf("delete sidecar: %w", err)
		}
	}
	return out, nil
}
