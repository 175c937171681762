package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"matrixscreen/internal/attributes"
	"matrixscreen/internal/services"
	"matrixscreen/internal/testsupport"
)

func TestScanSummary(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeGrid(t)
	testsupport.WriteExperiment(t, env.root,
		filepath.Join(testsupport.WellDir(0, 0, 0), "notes--X00.tif"),
		"stitched--U00--V00--C00--Z00.png",
	)

	var summary scanSummary
	runJSON(t, env, &summary, "scan", env.root)

	if summary.Wells != 2 || summary.Fields != 3 || summary.Images != 5 {
		t.Fatalf("summary = %+v", summary)
	}
	if diff := cmp.Diff([]int{0}, summary.Slides); diff != "" {
		t.Fatalf("slides mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"stitched--U00--V00--C00--Z00.png"}, summary.Stitched); diff != "" {
		t.Fatalf("stitched mismatch (-want +got):\n%s", diff)
	}
	if len(summary.Unclassified) != 1 || !strings.HasSuffix(summary.Unclassified[0].Path, "notes--X00.tif") {
		t.Fatalf("unclassified = %+v", summary.Unclassified)
	}
	if !strings.Contains(summary.ScanningTemplate, "{ScanningTemplate}") {
		t.Fatalf("template = %q", summary.ScanningTemplate)
	}

	out, _, err := runCLI(t, []string{"scan", env.root}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "== Experiment ==")
	requireContains(t, out, "Wells:")
	requireContains(t, out, "[INFO] "+filepath.Join(testsupport.WellDir(0, 0, 0), "notes--X00.tif"))
}

func TestScanMissingRoot(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"scan", filepath.Join(env.root, "missing")}, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing experiment")
	}
}

func TestWellsAndFields(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeGrid(t)

	var wells []wellView
	runJSON(t, env, &wells, "wells", env.root)
	want := []wellView{
		{Slide: 0, U: 0, V: 0, Width: 2, Height: 1, Fields: 2, Channels: 2, ZPlanes: 1, Images: 4, Columns: []int{0, 1}, Rows: []int{0}},
		{Slide: 0, U: 1, V: 0, Width: 1, Height: 1, Fields: 1, Channels: 1, ZPlanes: 1, Images: 1, Columns: []int{0}, Rows: []int{0}},
	}
	if diff := cmp.Diff(want, wells); diff != "" {
		t.Fatalf("wells mismatch (-want +got):\n%s", diff)
	}

	out, _, err := runCLI(t, []string{"wells", env.root}, env.configPath)
	if err != nil {
		t.Fatalf("wells: %v", err)
	}
	requireContains(t, out, "U01")
	requireContains(t, out, "2x1")

	var fields []fieldView
	runJSON(t, env, &fields, "fields", env.root, "0", "0")
	if len(fields) != 2 || fields[1].X != 1 {
		t.Fatalf("fields = %+v", fields)
	}
	if diff := cmp.Diff([]int{0, 1}, fields[0].Channels); diff != "" {
		t.Fatalf("channels mismatch (-want +got):\n%s", diff)
	}
}

func TestImagesOrderAndWellFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeGrid(t)

	var images []imageView
	runJSON(t, env, &images, "images", env.root)
	if len(images) != 5 {
		t.Fatalf("got %d images", len(images))
	}
	var order []string
	for _, img := range images {
		order = append(order, strings.Join([]string{
			tagLabel(attributes.S, img.Slide), tagLabel(attributes.U, img.U), tagLabel(attributes.X, img.X), tagLabel(attributes.C, img.Channel),
		}, ""))
	}
	want := []string{"S00U00X00C00", "S00U00X00C01", "S00U00X01C00", "S00U00X01C01", "S00U01X00C00"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	var filtered []imageView
	runJSON(t, env, &filtered, "images", env.root, "--well", "1,0")
	if len(filtered) != 1 || filtered[0].U != 1 {
		t.Fatalf("filtered = %+v", filtered)
	}

	if _, _, err := runCLI(t, []string{"images", env.root, "--well", "one"}, env.configPath); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for bad selector, got %v", err)
	}
}

func TestImageLookup(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeGrid(t)

	out, _, err := runCLI(t, []string{"image", env.root, "0", "0", "1", "0", "--channel", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	want := filepath.Join(env.root, testsupport.ImagePath(testsupport.Coord{X: 1, C: 1}))
	if strings.TrimSpace(out) != want {
		t.Fatalf("image path = %q, want %q", strings.TrimSpace(out), want)
	}

	_, _, err = runCLI(t, []string{"image", env.root, "0", "0", "5", "5"}, env.configPath)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if code := services.ExitCode(err); code != services.ExitNotFound {
		t.Fatalf("exit code = %d, want %d", code, services.ExitNotFound)
	}
}

func TestMetadataCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeGrid(t)
	testsupport.WriteOMEXML(t, filepath.Join(env.root, testsupport.MetadataPath(0, 0, 0, 0, 0)), 100, 80)

	var view metadataView
	runJSON(t, env, &view, "metadata", env.root, "0", "0", "0", "0")
	if view.SizeX != 100 || view.SizeY != 80 || view.PixelType != "uint8" {
		t.Fatalf("metadata = %+v", view)
	}

	_, _, err := runCLI(t, []string{"metadata", env.root, "0", "0", "1", "0"}, env.configPath)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for field without metadata, got %v", err)
	}
}
