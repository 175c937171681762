package experiment_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"matrixscreen/internal/experiment"
	"matrixscreen/internal/scan"
	"matrixscreen/internal/services"
	"matrixscreen/internal/testsupport"
)

func collectPaths(exp *experiment.Experiment) []string {
	var out []string
	for ref := range exp.Images() {
		out = append(out, ref.Path)
	}
	return out
}

func TestOpenTwoFieldScenario(t *testing.T) {
	root := t.TempDir()
	paths := testsupport.WriteExperiment(t, root,
		"slide--S00/chamber--U00--V00/field--X01--Y00/image--C00--Z00.ome.tif",
		"slide--S00/chamber--U00--V00/field--X00--Y00/image--C00--Z00.ome.tif",
	)

	exp, err := experiment.Open(root, experiment.OpenOptions{})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	wells := exp.Wells()
	if len(wells) != 1 {
		t.Fatalf("expected one well, got %d", len(wells))
	}
	w := wells[0]
	if w.U() != 0 || w.V() != 0 {
		t.Fatalf("unexpected well %s", w)
	}
	if w.GridWidth() != 2 || w.GridHeight() != 1 {
		t.Fatalf("grid = %dx%d, want 2x1", w.GridWidth(), w.GridHeight())
	}
	want := []string{paths[1], paths[0]}
	if diff := cmp.Diff(want, collectPaths(exp)); diff != "" {
		t.Fatalf("images mismatch (-want +got):\n%s", diff)
	}
	if len(exp.Warnings()) != 0 {
		t.Fatalf("unexpected warnings: %v", exp.Warnings())
	}
}

func TestBuildPartialGrid(t *testing.T) {
	exp := experiment.Build([]string{
		"/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--C00--Z00.ome.tif",
		"/e/slide--S00/chamber--U00--V00/field--X01--Y00/image--C00--Z00.ome.tif",
		"/e/slide--S00/chamber--U00--V00/field--X00--Y01/image--C00--Z00.ome.tif",
	}, experiment.BuildOptions{})

	w, err := exp.Well(0, 0)
	if err != nil {
		t.Fatalf("Well returned error: %v", err)
	}
	if w.GridWidth() != 2 || w.GridHeight() != 2 {
		t.Fatalf("grid = %dx%d, want 2x2", w.GridWidth(), w.GridHeight())
	}
	fields := exp.Fields(w)
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	var got [][2]int
	for _, f := range fields {
		got = append(got, [2]int{f.X(), f.Y()})
	}
	if diff := cmp.Diff([][2]int{{0, 0}, {0, 1}, {1, 0}}, got); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}

	warnings := exp.Warnings()
	if len(warnings) != 1 || warnings[0].Kind != experiment.WarnMissingField {
		t.Fatalf("expected one missing-field warning, got %v", warnings)
	}
}

func TestBuildSparseLargeGridReportsOneBoundedWarning(t *testing.T) {
	exp := experiment.Build([]string{
		"/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--C00--Z00.ome.tif",
		"/e/slide--S00/chamber--U00--V00/field--X3000--Y3000/image--C00--Z00.ome.tif",
	}, experiment.BuildOptions{})

	w, err := exp.Well(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w.GridWidth() != 3001 || w.GridHeight() != 3001 {
		t.Fatalf("grid = %dx%d, want 3001x3001", w.GridWidth(), w.GridHeight())
	}

	warnings := exp.Warnings()
	if len(warnings) != 1 || warnings[0].Kind != experiment.WarnMissingField {
		t.Fatalf("expected a single missing-field warning, got %d", len(warnings))
	}
	msg := warnings[0].Message
	if !strings.Contains(msg, fmt.Sprintf("%d empty positions", 3001*3001-2)) {
		t.Fatalf("missing hole count: %q", msg)
	}
	if !strings.Contains(msg, "X01 Y00, X02 Y00") || !strings.Contains(msg, "more") {
		t.Fatalf("expected the first holes and a remainder: %q", msg)
	}
	if len(msg) > 200 {
		t.Fatalf("warning message should stay short, got %d bytes", len(msg))
	}
}

func TestBuildLogsUnclassifiedFiles(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	bad := "/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--Z00.tif"

	exp := experiment.Build([]string{bad}, experiment.BuildOptions{Logger: logger})
	if len(exp.Unclassified()) != 1 {
		t.Fatalf("expected one unclassified file, got %v", exp.Unclassified())
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["event_type"] != "unclassified_file" || entry["path"] != bad {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	if entry["reason"] != "missing attributes C" {
		t.Fatalf("reason = %v", entry["reason"])
	}
}

func TestBuildDuplicateCoordinateKeepsFirst(t *testing.T) {
	first := "/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--L0000--S00--U00--V00--X00--Y00--Z00--C00.ome.tif"
	second := "/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--L0001--S00--U00--V00--X00--Y00--Z00--C00.ome.tif"

	exp := experiment.Build([]string{second, first}, experiment.BuildOptions{})

	if diff := cmp.Diff([]string{first}, collectPaths(exp)); diff != "" {
		t.Fatalf("images mismatch (-want +got):\n%s", diff)
	}
	warnings := exp.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	if warnings[0].Kind != experiment.WarnDuplicate || warnings[0].Path != second {
		t.Fatalf("unexpected warning %+v", warnings[0])
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	root := t.TempDir()
	var rel []string
	for _, u := range []int{1, 0} {
		for _, x := range []int{1, 0} {
			for _, c := range []int{1, 0} {
				rel = append(rel, testsupport.ImagePath(testsupport.Coord{U: u, X: x, C: c}))
			}
		}
	}
	testsupport.WriteExperiment(t, root, rel...)

	first, err := experiment.Open(root, experiment.OpenOptions{Workers: 4})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	second, err := experiment.Open(root, experiment.OpenOptions{Workers: 1})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if diff := cmp.Diff(collectPaths(first), collectPaths(second)); diff != "" {
		t.Fatalf("enumeration differs between runs (-first +second):\n%s", diff)
	}

	var order []string
	for ref := range first.Images() {
		u, _ := ref.Well()
		x, _ := ref.Field()
		order = append(order, testsupport.ImagePath(testsupport.Coord{U: u, X: x, C: ref.Channel()}))
	}
	slices.Sort(rel)
	if diff := cmp.Diff(rel, order); diff != "" {
		t.Fatalf("canonical order mismatch (-want +got):\n%s", diff)
	}
}

func TestImagesIsRestartable(t *testing.T) {
	exp := experiment.Build([]string{
		"/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--C00--Z00.tif",
		"/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--C00--Z01.tif",
		"/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--C01--Z00.tif",
	}, experiment.BuildOptions{})

	for ref := range exp.Images() {
		_ = ref
		break
	}
	all := collectPaths(exp)
	if len(all) != 3 {
		t.Fatalf("expected fresh traversal of 3 images, got %d", len(all))
	}
	if diff := cmp.Diff(all, collectPaths(exp)); diff != "" {
		t.Fatalf("second traversal differs:\n%s", diff)
	}
	// C before Z in canonical order.
	if filepath.Base(all[1]) != "image--C00--Z01.tif" {
		t.Fatalf("unexpected order: %v", all)
	}
}

func TestBuildOrdersNumerically(t *testing.T) {
	exp := experiment.Build([]string{
		"/e/slide--S00/chamber--U00--V00/field--X100--Y00/image--C00--Z00.tif",
		"/e/slide--S00/chamber--U00--V00/field--X20--Y00/image--C00--Z00.tif",
		"/e/slide--S00/chamber--U10--V00/field--X00--Y00/image--C00--Z00.tif",
		"/e/slide--S00/chamber--U02--V00/field--X00--Y00/image--C00--Z00.tif",
	}, experiment.BuildOptions{})

	var wells []int
	for _, w := range exp.Wells() {
		wells = append(wells, w.U())
	}
	if diff := cmp.Diff([]int{0, 2, 10}, wells); diff != "" {
		t.Fatalf("well order mismatch (-want +got):\n%s", diff)
	}
	w, err := exp.Well(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{20, 100}, w.Columns()); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if w.GridWidth() != 101 {
		t.Fatalf("grid width = %d, want 101", w.GridWidth())
	}
}

func TestBuildSeparatesUnclassifiedAndStitched(t *testing.T) {
	stitched := "/e/slide--S00/chamber--U00--V00/stitched--U00--V00--C00--Z00.png"
	malformed := "/e/slide--S00/chamber--U00--V00/field--X0--Y00/image--C00--Z00.tif"
	noSlide := "/e/chamber--U00--V00/field--X00--Y00/image--C00--Z00.tif"
	noChannel := "/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--Z00.tif"
	unknown := "/e/slide--S00/chamber--U00--V00/field--X00--Y00/notes--C00--Z00.txt"
	good := "/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--C00--Z00.tif"

	exp := experiment.Build([]string{stitched, malformed, noSlide, noChannel, unknown, good}, experiment.BuildOptions{})

	if diff := cmp.Diff([]string{stitched}, exp.Stitched()); diff != "" {
		t.Fatalf("stitched mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{good}, collectPaths(exp)); diff != "" {
		t.Fatalf("images mismatch (-want +got):\n%s", diff)
	}

	reasons := map[string]string{}
	for _, u := range exp.Unclassified() {
		reasons[u.Path] = u.Reason
	}
	for _, path := range []string{malformed, noSlide, noChannel, unknown} {
		if reasons[path] == "" {
			t.Fatalf("expected %s to be unclassified with a reason, got %v", path, reasons)
		}
	}
	if len(reasons) != 4 {
		t.Fatalf("expected 4 unclassified files, got %d", len(reasons))
	}
	if reasons[noSlide] != "missing attributes S" {
		t.Fatalf("unexpected reason for %s: %q", noSlide, reasons[noSlide])
	}
}

func TestLookupsAndNotFound(t *testing.T) {
	exp := experiment.Build([]string{
		"/e/slide--S01/chamber--U01--V00/field--X00--Y00/image--C00--Z00.tif",
		"/e/slide--S00/chamber--U01--V00/field--X00--Y00/image--C00--Z00.tif",
		"/e/slide--S00/chamber--U01--V00/field--X00--Y00/image--C01--Z00.tif",
	}, experiment.BuildOptions{})

	if diff := cmp.Diff([]int{0, 1}, exp.Slides()); diff != "" {
		t.Fatalf("slides mismatch (-want +got):\n%s", diff)
	}
	w, err := exp.Well(1, 0)
	if err != nil {
		t.Fatalf("Well returned error: %v", err)
	}
	if w.Slide() != 0 {
		t.Fatalf("expected lowest slide, got %d", w.Slide())
	}
	other, err := exp.WellBySlide(1, 1, 0)
	if err != nil || other.Slide() != 1 {
		t.Fatalf("WellBySlide = %v, %v", other, err)
	}
	f, err := exp.Field(w, 0, 0)
	if err != nil {
		t.Fatalf("Field returned error: %v", err)
	}
	ref, err := exp.Image(w, f, 1, 0)
	if err != nil {
		t.Fatalf("Image returned error: %v", err)
	}
	if ref.Channel() != 1 || ref.Kind != experiment.KindImage {
		t.Fatalf("unexpected image %+v", ref)
	}
	if _, err := exp.Image(other, f, 0, 0); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("field from another well should not resolve, got %v", err)
	}

	_, err = exp.Well(9, 9)
	var nf *experiment.NotFoundError
	if !errors.As(err, &nf) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := exp.Field(w, 3, 3); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for field, got %v", err)
	}
	if _, err := exp.Image(w, f, 0, 5); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for image, got %v", err)
	}
	images, err := exp.WellImages(1, 0)
	if err != nil || len(images) != 2 {
		t.Fatalf("WellImages = %d images, %v", len(images), err)
	}
}

func TestBuildReportsCardinalityMismatch(t *testing.T) {
	exp := experiment.Build([]string{
		"/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--C00--Z00.tif",
		"/e/slide--S00/chamber--U00--V00/field--X00--Y00/image--C01--Z00.tif",
		"/e/slide--S00/chamber--U00--V00/field--X01--Y00/image--C00--Z00.tif",
	}, experiment.BuildOptions{})

	w, err := exp.Well(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w.ChannelCount() != 2 || w.ZCount() != 1 {
		t.Fatalf("counts = %d channels, %d z; want 2, 1", w.ChannelCount(), w.ZCount())
	}
	warnings := exp.Warnings()
	if len(warnings) != 1 || warnings[0].Kind != experiment.WarnCardinality {
		t.Fatalf("expected one cardinality warning, got %v", warnings)
	}
}

func TestFieldMetadataIsSeparateFromImages(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteExperiment(t, root,
		testsupport.ImagePath(testsupport.Coord{}),
		testsupport.MetadataPath(0, 0, 0, 0, 0),
	)
	testsupport.WriteScanningTemplate(t, root)

	exp, err := experiment.Open(root, experiment.OpenOptions{})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if got := len(collectPaths(exp)); got != 1 {
		t.Fatalf("expected metadata excluded from images, got %d images", got)
	}
	w, _ := exp.Well(0, 0)
	f, err := exp.Field(w, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	path, err := exp.FieldMetadataPath(f)
	if err != nil {
		t.Fatalf("FieldMetadataPath returned error: %v", err)
	}
	if path != filepath.Join(root, testsupport.MetadataPath(0, 0, 0, 0, 0)) {
		t.Fatalf("unexpected metadata path %s", path)
	}
	if _, ok := exp.ScanningTemplate(); !ok {
		t.Fatal("expected scanning template to be found")
	}
}

func TestOpenMissingRoot(t *testing.T) {
	_, err := experiment.Open(filepath.Join(t.TempDir(), "missing"), experiment.OpenOptions{})
	var scanErr *scan.ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("expected *scan.ScanError, got %v", err)
	}
}

func TestKindFromPath(t *testing.T) {
	cases := map[string]experiment.Kind{
		"a.ome.tif": experiment.KindImage,
		"a.TIFF":    experiment.KindImage,
		"a.png":     experiment.KindImage,
		"a.ome.xml": experiment.KindMetadata,
		"a.json":    experiment.KindMetadata,
		"a.txt":     experiment.KindUnknown,
	}
	for path, want := range cases {
		if got := experiment.KindFromPath(path); got != want {
			t.Errorf("KindFromPath(%q) = %s, want %s", path, got, want)
		}
	}
}
