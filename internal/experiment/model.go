package experiment

import (
	"fmt"
	"slices"

	"matrixscreen/internal/attributes"
)

// ImageRef is one indexed file with its parsed attributes.
type ImageRef struct {
	Path  string
	Attrs attributes.Set
	Kind  Kind
}

// Slide returns the S attribute.
func (r ImageRef) Slide() int { return r.Attrs.Value(attributes.S) }

// Well returns the U and V attributes.
func (r ImageRef) Well() (u, v int) {
	return r.Attrs.Value(attributes.U), r.Attrs.Value(attributes.V)
}

// Field returns the X and Y attributes.
func (r ImageRef) Field() (x, y int) {
	return r.Attrs.Value(attributes.X), r.Attrs.Value(attributes.Y)
}

// Channel returns the C attribute, or -1 when absent.
func (r ImageRef) Channel() int { return r.Attrs.Value(attributes.C) }

// Z returns the Z attribute, or -1 when absent.
func (r ImageRef) Z() int { return r.Attrs.Value(attributes.Z) }

// WellKey identifies a well across slides.
type WellKey struct {
	S, U, V int
}

func (k WellKey) String() string {
	return fmt.Sprintf("S%02d U%02d V%02d", k.S, k.U, k.V)
}

func (k WellKey) compare(o WellKey) int {
	if k.S != o.S {
		return k.S - o.S
	}
	if k.U != o.U {
		return k.U - o.U
	}
	return k.V - o.V
}

type fieldKey struct{ x, y int }

type sliceKey struct{ c, z int }

// Field groups the images of one field position within a well.
type Field struct {
	well     WellKey
	x, y     int
	images   []ImageRef
	byCZ     map[sliceKey]int
	metadata []ImageRef
	channels []int
	zplanes  []int
}

// Well returns the key of the well holding the field.
func (f *Field) Well() WellKey { return f.well }

// X returns the field column.
func (f *Field) X() int { return f.x }

// Y returns the field row.
func (f *Field) Y() int { return f.y }

func (f *Field) String() string {
	return fmt.Sprintf("%s X%02d Y%02d", f.well, f.x, f.y)
}

// Images returns the field's images ordered by channel, then z.
func (f *Field) Images() []ImageRef { return slices.Clone(f.images) }

// Image returns the image for channel c and plane z.
func (f *Field) Image(c, z int) (ImageRef, bool) {
	idx, ok := f.byCZ[sliceKey{c, z}]
	if !ok {
		return ImageRef{}, false
	}
	return f.images[idx], true
}

// Metadata returns the XML/JSON documents stored for the field in path order.
func (f *Field) Metadata() []ImageRef { return slices.Clone(f.metadata) }

// Channels returns the distinct channels present, ascending.
func (f *Field) Channels() []int { return slices.Clone(f.channels) }

// ZPlanes returns the distinct z planes present, ascending.
func (f *Field) ZPlanes() []int { return slices.Clone(f.zplanes) }

// Well groups the fields sharing a slide and well position.
type Well struct {
	key      WellKey
	fields   []*Field
	byXY     map[fieldKey]*Field
	width    int
	height   int
	channels []int
	zplanes  []int
	columns  []int
	rows     []int
}

// Key returns the well's (S, U, V) identity.
func (w *Well) Key() WellKey { return w.key }

// Slide returns the S coordinate.
func (w *Well) Slide() int { return w.key.S }

// U returns the well column.
func (w *Well) U() int { return w.key.U }

// V returns the well row.
func (w *Well) V() int { return w.key.V }

func (w *Well) String() string { return w.key.String() }

// Fields returns the well's fields ordered by X, then Y.
func (w *Well) Fields() []*Field { return slices.Clone(w.fields) }

// Field returns the field at grid position (x, y).
func (w *Well) Field(x, y int) (*Field, bool) {
	f, ok := w.byXY[fieldKey{x, y}]
	return f, ok
}

// GridWidth is one more than the largest field X observed.
func (w *Well) GridWidth() int { return w.width }

// GridHeight is one more than the largest field Y observed.
func (w *Well) GridHeight() int { return w.height }

// ChannelCount is one more than the largest channel observed, or 0 without images.
func (w *Well) ChannelCount() int { return countFromMax(w.channels) }

// ZCount is one more than the largest z plane observed, or 0 without images.
func (w *Well) ZCount() int { return countFromMax(w.zplanes) }

// Channels returns the distinct channels across all fields, ascending.
func (w *Well) Channels() []int { return slices.Clone(w.channels) }

// ZPlanes returns the distinct z planes across all fields, ascending.
func (w *Well) ZPlanes() []int { return slices.Clone(w.zplanes) }

// Columns returns the distinct field X values, ascending.
func (w *Well) Columns() []int { return slices.Clone(w.columns) }

// Rows returns the distinct field Y values, ascending.
func (w *Well) Rows() []int { return slices.Clone(w.rows) }

// Images returns every image of the well in field, channel, z order.
func (w *Well) Images() []ImageRef {
	var out []ImageRef
	for _, f := range w.fields {
		out = append(out, f.images...)
	}
	return out
}

func countFromMax(sorted []int) int {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)-1] + 1
}
