package compress

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"matrixscreen/internal/fileutil"
	"matrixscreen/internal/logging"
	"matrixscreen/internal/services"
)

// Compressor recompresses one image and returns the path it wrote. The
// source is left untouched unless the implementation is configured to delete
// it.
type Compressor interface {
	Compress(ctx context.Context, path string) (string, error)
}

// CompressorFunc adapts a function to the Compressor interface.
type CompressorFunc func(ctx context.Context, path string) (string, error)

// Compress calls f.
func (f CompressorFunc) Compress(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Options configure PNGCompressor.
type Options struct {
	// OutputDir receives the PNG and sidecar; empty means beside the source.
	OutputDir      string
	DeleteOriginal bool
	// Force overwrites an existing PNG instead of skipping.
	Force  bool
	Logger *slog.Logger
}

// PNGCompressor converts TIFF images to PNG with a JSON tag sidecar.
type PNGCompressor struct {
	opts   Options
	logger *slog.Logger
}

// NewPNGCompressor returns a compressor using opts.
func NewPNGCompressor(opts Options) *PNGCompressor {
	return &PNGCompressor{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "compress")}
}

// OutputPath returns the PNG path for a TIFF: the extension and a trailing
// ".ome" are dropped and ".png" appended. A non-empty outDir replaces the
// source directory.
func OutputPath(path, outDir string) string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if i := strings.LastIndex(stem, ".ome"); i >= 0 && i == len(stem)-len(".ome") {
		stem = stem[:i]
	}
	if outDir != "" {
		stem = filepath.Join(outDir, filepath.Base(stem))
	}
	return stem + ".png"
}

// SidecarPath returns the JSON sidecar path for a compressed PNG.
func SidecarPath(pngPath string) string {
	return strings.TrimSuffix(pngPath, filepath.Ext(pngPath)) + ".json"
}

// Compress converts path to PNG. An existing PNG is returned together with an
// error matching services.ErrSkipped unless Force is set.
func (c *PNGCompressor) Compress(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
	default:
		return "", services.Wrap(services.ErrValidation, "compress", "check", "not a TIFF: "+path, nil)
	}

	out := OutputPath(path, c.opts.OutputDir)
	if !c.opts.Force {
		if _, err := os.Stat(out); err == nil {
			return out, services.Wrap(services.ErrSkipped, "compress", "", "PNG already exists: "+out, nil)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	tags, err := ReadTags(f)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "compress", "read tags", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind %s: %w", path, err)
	}
	img, err := tiff.Decode(f)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "compress", "decode", path, err)
	}

	stored, mode, palette := losslessImage(img)
	sidecar := newSidecar(filepath.Base(path), tags, mode)
	sidecar.Palette = palette

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := fileutil.WriteAtomic(SidecarPath(out), 0o644, sidecar.write); err != nil {
		return "", fmt.Errorf("write sidecar: %w", err)
	}
	if err := fileutil.WriteAtomic(out, 0o644, func(w io.Writer) error {
		return png.Encode(w, stored)
	}); err != nil {
		return "", fmt.Errorf("write png: %w", err)
	}
	_ = f.Close()

	if c.opts.DeleteOriginal {
		if err := os.Remove(path); err != nil {
			return out, fmt.Errorf("delete original: %w", err)
		}
	}
	c.logger.Debug("compressed", logging.Path(path), logging.String("output", out), logging.String("mode", mode))
	return out, nil
}

// losslessImage returns the raster to store in the PNG and the mode label.
// Paletted images keep their indices as 8-bit gray and return the palette.
func losslessImage(img image.Image) (image.Image, string, []uint8) {
	switch m := img.(type) {
	case *image.Paletted:
		gray := &image.Gray{Pix: m.Pix, Stride: m.Stride, Rect: m.Rect}
		return gray, "P", flattenPalette(m.Palette)
	case *image.Gray:
		return m, "L", nil
	case *image.Gray16:
		return m, "I;16", nil
	case *image.RGBA64, *image.NRGBA64:
		return m, "RGBA;16", nil
	default:
		return img, "RGBA", nil
	}
}
