package experiment

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"matrixscreen/internal/attributes"
	"matrixscreen/internal/logging"
)

var (
	hierarchyKeys = []attributes.Key{attributes.S, attributes.U, attributes.V, attributes.X, attributes.Y}
	imageKeys     = []attributes.Key{attributes.S, attributes.U, attributes.V, attributes.X, attributes.Y, attributes.C, attributes.Z}
)

// BuildOptions controls index construction.
type BuildOptions struct {
	// Root is reported by Experiment.Root; Build never touches the filesystem.
	Root string
	// ScanningTemplate is reported by Experiment.ScanningTemplate.
	ScanningTemplate string
	// Workers bounds concurrent filename parsing. Values below 1 mean 1.
	Workers int
	Logger  *slog.Logger
}

type parsed struct {
	path  string
	attrs attributes.Set
	err   error
}

// Build indexes paths into an Experiment. Paths are processed in lexical
// order regardless of the order given, so the first of two files claiming the
// same coordinate is always the lexically smaller one.
func Build(paths []string, opts BuildOptions) *Experiment {
	logger := logging.NewComponentLogger(opts.Logger, "index")

	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	results := parseAll(sorted, opts.Workers)

	exp := &Experiment{
		root:     opts.Root,
		template: opts.ScanningTemplate,
		byKey:    make(map[WellKey]*Well),
	}
	b := &builder{exp: exp, fields: make(map[WellKey]map[fieldKey]*Field)}

	for _, res := range results {
		b.add(res)
	}
	b.finish()

	for _, w := range exp.warnings {
		logging.WarnWithContext(logger, "integrity problem in experiment", "integrity_"+w.Kind.String(),
			logging.Path(w.Path),
			logging.String("detail", w.Message),
			logging.String(logging.FieldImpact, "experiment indexed with warnings"),
		)
	}
	for _, u := range exp.unclassified {
		logging.WarnWithContext(logger, "file left out of the hierarchy", "unclassified_file",
			logging.Path(u.Path),
			logging.String("reason", u.Reason),
			logging.String(logging.FieldImpact, "file is not indexed, stitched or compressed"),
			logging.String(logging.FieldErrorHint, "check the file name carries --S --U --V --X --Y (and --C --Z for images)"),
		)
	}
	logger.Debug("experiment indexed",
		logging.Int("files", len(sorted)),
		logging.Int("wells", len(exp.wells)),
		logging.Int("unclassified", len(exp.unclassified)),
		logging.Int("stitched", len(exp.stitched)),
		logging.Int("warnings", len(exp.warnings)),
	)
	return exp
}

// parseAll parses every path, fanning out across workers. Results keep the
// input order so the merge that follows stays deterministic.
func parseAll(paths []string, workers int) []parsed {
	results := make([]parsed, len(paths))
	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			attrs, err := attributes.Parse(path)
			results[i] = parsed{path: path, attrs: attrs, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

type builder struct {
	exp    *Experiment
	fields map[WellKey]map[fieldKey]*Field
}

func (b *builder) add(res parsed) {
	exp := b.exp
	if isStitched(res.path) {
		exp.stitched = append(exp.stitched, res.path)
		return
	}
	if res.err != nil {
		exp.unclassified = append(exp.unclassified, Unclassified{Path: res.path, Reason: res.err.Error()})
		return
	}
	kind := KindFromPath(res.path)
	required := hierarchyKeys
	switch kind {
	case KindImage:
		required = imageKeys
	case KindMetadata:
	default:
		exp.unclassified = append(exp.unclassified, Unclassified{Path: res.path, Reason: "unrecognised file kind"})
		return
	}
	if missing := res.attrs.Missing(required...); len(missing) > 0 {
		exp.unclassified = append(exp.unclassified, Unclassified{
			Path:   res.path,
			Reason: "missing attributes " + joinKeys(missing),
		})
		return
	}

	ref := ImageRef{Path: res.path, Attrs: res.attrs, Kind: kind}
	field := b.field(ref)
	if kind == KindMetadata {
		field.metadata = append(field.metadata, ref)
		return
	}

	key := sliceKey{c: ref.Channel(), z: ref.Z()}
	if idx, ok := field.byCZ[key]; ok {
		exp.warnings = append(exp.warnings, IntegrityWarning{
			Kind:    WarnDuplicate,
			Path:    ref.Path,
			Message: fmt.Sprintf("coordinate %s already claimed by %s", ref.Attrs, field.images[idx].Path),
		})
		return
	}
	field.byCZ[key] = len(field.images)
	field.images = append(field.images, ref)
}

func (b *builder) field(ref ImageRef) *Field {
	u, v := ref.Well()
	wk := WellKey{S: ref.Slide(), U: u, V: v}
	well, ok := b.exp.byKey[wk]
	if !ok {
		well = &Well{key: wk, byXY: make(map[fieldKey]*Field)}
		b.exp.byKey[wk] = well
		b.exp.wells = append(b.exp.wells, well)
	}
	x, y := ref.Field()
	fk := fieldKey{x, y}
	f, ok := well.byXY[fk]
	if !ok {
		f = &Field{well: wk, x: x, y: y, byCZ: make(map[sliceKey]int)}
		well.byXY[fk] = f
		well.fields = append(well.fields, f)
	}
	return f
}

// finish sorts every level and derives grid shapes and integrity warnings.
func (b *builder) finish() {
	exp := b.exp
	slices.SortFunc(exp.wells, func(a, c *Well) int { return a.key.compare(c.key) })

	slides := make(map[int]struct{})
	for _, w := range exp.wells {
		slides[w.key.S] = struct{}{}
		finishWell(w)
		exp.warnings = append(exp.warnings, wellWarnings(w)...)
	}
	for s := range slides {
		exp.slides = append(exp.slides, s)
	}
	slices.Sort(exp.slides)
}

func finishWell(w *Well) {
	slices.SortFunc(w.fields, func(a, c *Field) int {
		return cmp.Or(cmp.Compare(a.x, c.x), cmp.Compare(a.y, c.y))
	})

	var channels, zplanes, columns, rows []int
	for _, f := range w.fields {
		finishField(f)
		channels = append(channels, f.channels...)
		zplanes = append(zplanes, f.zplanes...)
		columns = append(columns, f.x)
		rows = append(rows, f.y)
		w.width = max(w.width, f.x+1)
		w.height = max(w.height, f.y+1)
	}
	w.channels = sortedDistinct(channels)
	w.zplanes = sortedDistinct(zplanes)
	w.columns = sortedDistinct(columns)
	w.rows = sortedDistinct(rows)
}

func finishField(f *Field) {
	slices.SortFunc(f.images, func(a, c ImageRef) int {
		return cmp.Or(cmp.Compare(a.Channel(), c.Channel()), cmp.Compare(a.Z(), c.Z()))
	})
	channels := make([]int, 0, len(f.images))
	zplanes := make([]int, 0, len(f.images))
	for i, ref := range f.images {
		f.byCZ[sliceKey{c: ref.Channel(), z: ref.Z()}] = i
		channels = append(channels, ref.Channel())
		zplanes = append(zplanes, ref.Z())
	}
	f.channels = sortedDistinct(channels)
	f.zplanes = sortedDistinct(zplanes)
}

// maxListedHoles bounds how many empty grid positions a missing-field
// warning names.
const maxListedHoles = 5

func wellWarnings(w *Well) []IntegrityWarning {
	var out []IntegrityWarning
	if hw := missingFieldWarning(w); hw != nil {
		out = append(out, *hw)
	}
	for _, f := range w.fields {
		if len(f.images) == 0 {
			continue
		}
		switch {
		case len(f.channels) != len(w.channels) || len(f.zplanes) != len(w.zplanes):
			out = append(out, IntegrityWarning{
				Kind: WarnCardinality,
				Path: fieldDir(f),
				Message: fmt.Sprintf("field %s has %d channels and %d z planes, well has %d and %d",
					f, len(f.channels), len(f.zplanes), len(w.channels), len(w.zplanes)),
			})
		case len(f.images) != len(f.channels)*len(f.zplanes):
			out = append(out, IntegrityWarning{
				Kind: WarnCardinality,
				Path: fieldDir(f),
				Message: fmt.Sprintf("field %s has %d images, expected %d channels x %d z planes",
					f, len(f.images), len(f.channels), len(f.zplanes)),
			})
		}
	}
	return out
}

// missingFieldWarning reports the empty positions of the well's grid as one
// warning. The grid is walked only until maxListedHoles holes are named, so
// a sparse well with huge coordinates costs no more than a dense one.
func missingFieldWarning(w *Well) *IntegrityWarning {
	holes := int64(w.width)*int64(w.height) - int64(len(w.byXY))
	if holes <= 0 {
		return nil
	}
	var listed []string
	for y := 0; y < w.height && len(listed) < maxListedHoles && int64(len(listed)) < holes; y++ {
		for x := 0; x < w.width && len(listed) < maxListedHoles; x++ {
			if _, ok := w.byXY[fieldKey{x, y}]; !ok {
				listed = append(listed, fmt.Sprintf("X%02d Y%02d", x, y))
			}
		}
	}
	msg := fmt.Sprintf("well %s has %d empty positions in a %dx%d grid: %s",
		w.key, holes, w.width, w.height, strings.Join(listed, ", "))
	if more := holes - int64(len(listed)); more > 0 {
		msg += fmt.Sprintf(" and %d more", more)
	}
	return &IntegrityWarning{Kind: WarnMissingField, Message: msg}
}

func fieldDir(f *Field) string {
	if len(f.images) == 0 {
		return ""
	}
	path := f.images[0].Path
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[:i]
	}
	return path
}

func sortedDistinct(values []int) []int {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

func joinKeys(keys []attributes.Key) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}
