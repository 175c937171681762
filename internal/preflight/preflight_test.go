package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"matrixscreen/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckReadableDirectory_OK(t *testing.T) {
	result := CheckReadableDirectory("experiment", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestRunAllSkipsUnconfiguredPaths(t *testing.T) {
	cfg := config.Default()
	root := t.TempDir()

	results := RunAll(&cfg, root)
	if len(results) != 1 {
		t.Fatalf("expected only the experiment check, got %d results", len(results))
	}
	if len(Failed(results)) != 0 {
		t.Fatalf("unexpected failures: %+v", Failed(results))
	}
}

func TestRunAllReportsMissingOutput(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "missing")

	failed := Failed(RunAll(&cfg, ""))
	if len(failed) != 1 || failed[0].Name != "Output directory" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestCheckSystemDepsIncludesFiji(t *testing.T) {
	cfg := config.Default()
	cfg.Stitch.FijiBinary = "clearly-not-present-fiji"
	t.Setenv("FIJI_HOME", "")

	statuses := CheckSystemDeps(&cfg)
	if len(statuses) != 1 || statuses[0].Name != "Fiji" {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
	if statuses[0].Available {
		t.Fatal("expected fiji to be unavailable")
	}
}
