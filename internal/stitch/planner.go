package stitch

import (
	"fmt"
	"math"
	"path/filepath"

	"matrixscreen/internal/attributes"
	"matrixscreen/internal/experiment"
)

// Settings describe the tile geometry shared by every field of a scan.
type Settings struct {
	TileWidth  int
	TileHeight int
	// Overlap is the fraction of a tile shared with its neighbour, in [0, 1).
	Overlap float64
}

// Validate checks the settings ranges.
func (s Settings) Validate() error {
	if s.TileWidth <= 0 {
		return &ConfigError{Field: "tile_width", Value: s.TileWidth, Reason: "must be positive"}
	}
	if s.TileHeight <= 0 {
		return &ConfigError{Field: "tile_height", Value: s.TileHeight, Reason: "must be positive"}
	}
	if math.IsNaN(s.Overlap) || s.Overlap < 0 || s.Overlap >= 1 {
		return &ConfigError{Field: "overlap", Value: s.Overlap, Reason: "must be in [0, 1)"}
	}
	return nil
}

// Planner computes stitch plans for a fixed tile geometry.
type Planner struct {
	settings Settings
}

// NewPlanner validates settings and returns a planner. A *ConfigError is
// returned for sizes that are not positive or an overlap outside [0, 1).
func NewPlanner(settings Settings) (*Planner, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Planner{settings: settings}, nil
}

// Settings returns the planner's tile geometry.
func (p *Planner) Settings() Settings { return p.settings }

// Offset returns the pixel position of grid index idx along an axis of the
// given tile size. Fractional positions are floored; the small epsilon keeps
// products such as 512 × 0.9 from landing just below an integer.
func Offset(idx, size int, overlap float64) int {
	return int(math.Floor(float64(idx)*float64(size)*(1-overlap) + 1e-9))
}

// Tile places one image in a mosaic.
type Tile struct {
	Ref experiment.ImageRef
	X   int
	Y   int
}

// Plan is the ordered placement of one (channel, z) slice of a well.
type Plan struct {
	Well       experiment.WellKey
	Channel    int
	Z          int
	TileWidth  int
	TileHeight int
	Tiles      []Tile
}

// OutputName returns the mosaic file name, e.g. stitched--U00--V00--C00--Z00.png.
func (p Plan) OutputName() string {
	return "stitched" +
		attributes.Format(attributes.U, p.Well.U) +
		attributes.Format(attributes.V, p.Well.V) +
		attributes.Format(attributes.C, p.Channel) +
		attributes.Format(attributes.Z, p.Z) +
		".png"
}

// Size returns the mosaic extent covered by the planned tiles.
func (p Plan) Size() (width, height int) {
	for _, t := range p.Tiles {
		width = max(width, t.X+p.TileWidth)
		height = max(height, t.Y+p.TileHeight)
	}
	return width, height
}

// Dir returns the well directory the tiles live under: the parent of the
// first tile's field directory.
func (p Plan) Dir() string {
	if len(p.Tiles) == 0 {
		return ""
	}
	return filepath.Dir(filepath.Dir(p.Tiles[0].Ref.Path))
}

func (p Plan) String() string {
	return fmt.Sprintf("%s C%02d Z%02d (%d tiles)", p.Well, p.Channel, p.Z, len(p.Tiles))
}

// Plan places every field of w that holds image (channel, z). Fields are
// visited in the well's X-then-Y order; fields missing from the grid or
// lacking the slice are omitted.
func (p *Planner) Plan(w *experiment.Well, channel, z int) (Plan, error) {
	if w == nil {
		return Plan{}, &experiment.NotFoundError{What: "well", Coord: "<nil>"}
	}
	plan := Plan{
		Well:       w.Key(),
		Channel:    channel,
		Z:          z,
		TileWidth:  p.settings.TileWidth,
		TileHeight: p.settings.TileHeight,
	}
	for _, f := range w.Fields() {
		ref, ok := f.Image(channel, z)
		if !ok {
			continue
		}
		plan.Tiles = append(plan.Tiles, Tile{
			Ref: ref,
			X:   Offset(f.X(), p.settings.TileWidth, p.settings.Overlap),
			Y:   Offset(f.Y(), p.settings.TileHeight, p.settings.Overlap),
		})
	}
	if len(plan.Tiles) == 0 {
		return Plan{}, &experiment.NotFoundError{
			What:  "slice",
			Coord: fmt.Sprintf("%s C%02d Z%02d", w.Key(), channel, z),
		}
	}
	return plan, nil
}

// PlanAll returns one plan per (z, channel) slice present in w, ordered by z
// and then channel. Combinations no field holds are skipped.
func (p *Planner) PlanAll(w *experiment.Well) ([]Plan, error) {
	if w == nil {
		return nil, &experiment.NotFoundError{What: "well", Coord: "<nil>"}
	}
	var plans []Plan
	for _, z := range w.ZPlanes() {
		for _, c := range w.Channels() {
			plan, err := p.Plan(w, c, z)
			if err != nil {
				continue
			}
			plans = append(plans, plan)
		}
	}
	if len(plans) == 0 {
		return nil, &experiment.NotFoundError{What: "images in well", Coord: w.Key().String()}
	}
	return plans, nil
}
