package scan_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"matrixscreen/internal/scan"
	"matrixscreen/internal/testsupport"
)

func TestScanFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteExperiment(t, root,
		"slide--S00/chamber--U00--V01/field--X00--Y00/image--C00--Z00.ome.tif",
		"slide--S00/chamber--U00--V00/field--X01--Y00/image--C00--Z00.OME.TIF",
		"slide--S00/chamber--U00--V00/field--X00--Y00/image--C00--Z00.ome.tif",
		"slide--S00/chamber--U00--V00/field--X00--Y00/metadata/image--X00--Y00.ome.xml",
		"slide--S00/chamber--U00--V00/field--X00--Y00/notes.txt",
		"AdditionalData/{ScanningTemplate}leicaautomator.xml",
		"slide--S00/AdditionalData/ignored.tif",
	)

	result, err := scan.Scan(root, scan.Options{})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	want := []string{
		filepath.Join(root, "slide--S00/chamber--U00--V00/field--X00--Y00/image--C00--Z00.ome.tif"),
		filepath.Join(root, "slide--S00/chamber--U00--V00/field--X00--Y00/metadata/image--X00--Y00.ome.xml"),
		filepath.Join(root, "slide--S00/chamber--U00--V00/field--X01--Y00/image--C00--Z00.OME.TIF"),
		filepath.Join(root, "slide--S00/chamber--U00--V01/field--X00--Y00/image--C00--Z00.ome.tif"),
	}
	if diff := cmp.Diff(want, result.Paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
}

func TestScanExcludeIsCaseSensitive(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteExperiment(t, root,
		"additionaldata/kept.tif",
		"AdditionalData/skipped.tif",
	)

	result, err := scan.Scan(root, scan.Options{ExcludeDir: "AdditionalData"})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	want := []string{filepath.Join(root, "additionaldata/kept.tif")}
	if diff := cmp.Diff(want, result.Paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestScanCustomExtensions(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteExperiment(t, root, "a.png", "b.tif", "c.JSON")

	result, err := scan.Scan(root, scan.Options{Extensions: []string{"json", ".PNG"}})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	want := []string{filepath.Join(root, "a.png"), filepath.Join(root, "c.JSON")}
	if diff := cmp.Diff(want, result.Paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestScanMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")

	_, err := scan.Scan(root, scan.Options{})
	var scanErr *scan.ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("expected *ScanError, got %T (%v)", err, err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist in chain, got %v", err)
	}
}

func TestScanRootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.tif")
	testsupport.WriteFile(t, file, 4)

	if _, err := scan.Scan(file, scan.Options{}); err == nil {
		t.Fatal("expected error for file root")
	}
}

func TestScanSkipsUnreadableSubdirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}
	root := t.TempDir()
	testsupport.WriteExperiment(t, root,
		"slide--S00/chamber--U00--V00/field--X00--Y00/image--C00--Z00.ome.tif",
		"slide--S00/chamber--U01--V00/field--X00--Y00/image--C00--Z00.ome.tif",
	)
	locked := filepath.Join(root, "slide--S00/chamber--U01--V00")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	result, err := scan.Scan(root, scan.Options{})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(result.Paths) != 1 {
		t.Fatalf("expected one readable file, got %v", result.Paths)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Path != locked {
		t.Fatalf("expected one warning for %s, got %v", locked, result.Warnings)
	}
}

func TestScanSkipsUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}
	root := t.TempDir()
	paths := testsupport.WriteExperiment(t, root, "a.tif", "b.tif")
	if err := os.Chmod(paths[1], 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	result, err := scan.Scan(root, scan.Options{})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if diff := cmp.Diff([]string{paths[0]}, result.Paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
}

func TestScanningTemplate(t *testing.T) {
	root := t.TempDir()
	if _, ok := scan.ScanningTemplate(root, ""); ok {
		t.Fatal("expected no template in empty root")
	}
	want := testsupport.WriteScanningTemplate(t, root)
	got, ok := scan.ScanningTemplate(root, "")
	if !ok || got != want {
		t.Fatalf("ScanningTemplate = %q, %v; want %q", got, ok, want)
	}
}
