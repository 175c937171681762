package main

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"matrixscreen/internal/testsupport"
)

func writeTIFFGrid(t *testing.T, root string) []string {
	t.Helper()
	var paths []string
	for x := range 2 {
		img := image.NewGray(image.Rect(0, 0, 8, 8))
		for i := range img.Pix {
			img.Pix[i] = uint8(i * (x + 1))
		}
		path := filepath.Join(root, testsupport.ImagePath(testsupport.Coord{X: x}))
		testsupport.WriteTIFF(t, path, img)
		paths = append(paths, path)
	}
	return paths
}

func TestCompressCommandConvertsAndSkips(t *testing.T) {
	env := setupCLITestEnv(t)
	tiffs := writeTIFFGrid(t, env.root)

	var summary batchSummary
	runJSON(t, env, &summary, "compress", env.root, "--workers", "2")
	if summary.Converted != 2 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	for _, path := range tiffs {
		png := strings.TrimSuffix(path, ".ome.tif") + ".png"
		if _, err := os.Stat(png); err != nil {
			t.Fatalf("png missing: %v", err)
		}
		if _, err := os.Stat(strings.TrimSuffix(png, ".png") + ".json"); err != nil {
			t.Fatalf("sidecar missing: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("original removed without --delete-original: %v", err)
		}
	}

	var again batchSummary
	runJSON(t, env, &again, "compress", env.root)
	if again.Skipped != 2 || again.Converted != 0 {
		t.Fatalf("rerun summary = %+v", again)
	}

	out, _, err := runCLI(t, []string{"compress", env.root}, env.configPath)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	requireContains(t, out, "Skipped:")
}

func TestCompressThenDecompressRestoresTIFF(t *testing.T) {
	env := setupCLITestEnv(t)
	tiffs := writeTIFFGrid(t, env.root)

	var summary batchSummary
	runJSON(t, env, &summary, "compress", env.root, "--delete-original")
	if summary.Converted != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	for _, path := range tiffs {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("original still present: %v", err)
		}
	}

	var restored batchSummary
	runJSON(t, env, &restored, "decompress", env.root, "--delete-png")
	if restored.Converted != 2 {
		t.Fatalf("decompress summary = %+v", restored)
	}
	for _, path := range tiffs {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("tiff not restored: %v", err)
		}
		if _, err := os.Stat(strings.TrimSuffix(path, ".ome.tif") + ".png"); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("png still present: %v", err)
		}
	}
}
