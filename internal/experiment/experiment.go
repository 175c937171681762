package experiment

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"matrixscreen/internal/scan"
)

// Experiment is the immutable index of one exported matrix scan.
type Experiment struct {
	root         string
	template     string
	wells        []*Well
	byKey        map[WellKey]*Well
	slides       []int
	stitched     []string
	unclassified []Unclassified
	warnings     []IntegrityWarning
}

// OpenOptions controls Open.
type OpenOptions struct {
	Scan    scan.Options
	Workers int
	Logger  *slog.Logger
}

// Open scans root and indexes what it finds. Errors reaching the root itself
// are returned as *scan.ScanError; unreadable entries below it become
// WarnUnreadable warnings.
func Open(root string, opts OpenOptions) (*Experiment, error) {
	scanOpts := opts.Scan
	if scanOpts.Logger == nil {
		scanOpts.Logger = opts.Logger
	}
	result, err := scan.Scan(root, scanOpts)
	if err != nil {
		return nil, err
	}
	template, _ := scan.ScanningTemplate(result.Root, scanOpts.ExcludeDir)

	exp := Build(result.Paths, BuildOptions{
		Root:             result.Root,
		ScanningTemplate: template,
		Workers:          opts.Workers,
		Logger:           opts.Logger,
	})
	if len(result.Warnings) > 0 {
		unreadable := make([]IntegrityWarning, 0, len(result.Warnings))
		for _, w := range result.Warnings {
			unreadable = append(unreadable, IntegrityWarning{Kind: WarnUnreadable, Path: w.Path, Message: w.Err.Error()})
		}
		exp.warnings = append(unreadable, exp.warnings...)
	}
	return exp, nil
}

// Root returns the experiment directory.
func (e *Experiment) Root() string { return e.root }

func (e *Experiment) String() string {
	return fmt.Sprintf("matrixscreen.Experiment(%s)", e.root)
}

// Slides returns the distinct slide numbers, ascending.
func (e *Experiment) Slides() []int { return slices.Clone(e.slides) }

// Wells returns every well ordered by slide, U, then V.
func (e *Experiment) Wells() []*Well { return slices.Clone(e.wells) }

// Well returns well (u, v) on the lowest-numbered slide that has it.
func (e *Experiment) Well(u, v int) (*Well, error) {
	for _, w := range e.wells {
		if w.key.U == u && w.key.V == v {
			return w, nil
		}
	}
	return nil, &NotFoundError{What: "well", Coord: fmt.Sprintf("U%02d V%02d", u, v)}
}

// WellBySlide returns well (u, v) on slide s.
func (e *Experiment) WellBySlide(s, u, v int) (*Well, error) {
	key := WellKey{S: s, U: u, V: v}
	if w, ok := e.byKey[key]; ok {
		return w, nil
	}
	return nil, &NotFoundError{What: "well", Coord: key.String()}
}

// Fields returns the fields of w ordered by X, then Y.
func (e *Experiment) Fields(w *Well) []*Field {
	if w == nil {
		return nil
	}
	return w.Fields()
}

// Field returns field (x, y) of w.
func (e *Experiment) Field(w *Well, x, y int) (*Field, error) {
	if w != nil {
		if f, ok := w.Field(x, y); ok {
			return f, nil
		}
	}
	return nil, &NotFoundError{What: "field", Coord: fmt.Sprintf("%s X%02d Y%02d", wellLabel(w), x, y)}
}

// Image returns the image for channel c and plane z of field f in well w.
func (e *Experiment) Image(w *Well, f *Field, c, z int) (ImageRef, error) {
	if w != nil && f != nil && f.well == w.key {
		if ref, ok := f.Image(c, z); ok {
			return ref, nil
		}
	}
	coord := fmt.Sprintf("%s C%02d Z%02d", wellLabel(w), c, z)
	if f != nil {
		coord = fmt.Sprintf("%s X%02d Y%02d C%02d Z%02d", wellLabel(w), f.x, f.y, c, z)
	}
	return ImageRef{}, &NotFoundError{What: "image", Coord: coord}
}

// Images yields every image in S, U, V, X, Y, C, Z order. Each call starts a
// fresh traversal.
func (e *Experiment) Images() iter.Seq[ImageRef] {
	return func(yield func(ImageRef) bool) {
		for _, w := range e.wells {
			for _, f := range w.fields {
				for _, ref := range f.images {
					if !yield(ref) {
						return
					}
				}
			}
		}
	}
}

// WellImages returns every image of well (u, v) on its lowest slide.
func (e *Experiment) WellImages(u, v int) ([]ImageRef, error) {
	w, err := e.Well(u, v)
	if err != nil {
		return nil, err
	}
	return w.Images(), nil
}

// Stitched returns mosaics previously written into the experiment, in path order.
func (e *Experiment) Stitched() []string { return slices.Clone(e.stitched) }

// Unclassified returns files that could not be placed in the hierarchy.
func (e *Experiment) Unclassified() []Unclassified { return slices.Clone(e.unclassified) }

// Warnings returns the integrity warnings collected while indexing.
func (e *Experiment) Warnings() []IntegrityWarning { return slices.Clone(e.warnings) }

// ScanningTemplate returns the experiment-level scanning template, if found.
func (e *Experiment) ScanningTemplate() (string, bool) {
	return e.template, e.template != ""
}

// FieldMetadataPath returns the OME-XML document stored for f.
func (e *Experiment) FieldMetadataPath(f *Field) (string, error) {
	if f != nil {
		for _, ref := range f.metadata {
			if strings.HasSuffix(strings.ToLower(ref.Path), ".ome.xml") {
				return ref.Path, nil
			}
		}
		if len(f.metadata) > 0 {
			return f.metadata[0].Path, nil
		}
	}
	coord := "<nil>"
	if f != nil {
		coord = f.String()
	}
	return "", &NotFoundError{What: "field metadata", Coord: coord}
}

func wellLabel(w *Well) string {
	if w == nil {
		return "<nil>"
	}
	return w.key.String()
}
