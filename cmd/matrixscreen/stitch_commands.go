package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"matrixscreen/internal/attributes"
	"matrixscreen/internal/config"
	"matrixscreen/internal/deps"
	"matrixscreen/internal/experiment"
	"matrixscreen/internal/fileutil"
	"matrixscreen/internal/omexml"
	"matrixscreen/internal/services"
	"matrixscreen/internal/stitch"
)

// tileFlags overrides the configured tile geometry for one invocation.
type tileFlags struct {
	width        int
	height       int
	overlap      float64
	fromMetadata bool
}

func (t *tileFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&t.width, "tile-width", 0, "Tile width in pixels (default from config)")
	cmd.Flags().IntVar(&t.height, "tile-height", 0, "Tile height in pixels (default from config)")
	cmd.Flags().Float64Var(&t.overlap, "overlap", 0, "Tile overlap fraction in [0, 1) (default from config)")
	cmd.Flags().BoolVar(&t.fromMetadata, "tile-from-metadata", false, "Read the tile size from the first field's OME-XML")
}

func (t *tileFlags) settings(cmd *cobra.Command, cfg *config.Config, exp *experiment.Experiment) (stitch.Settings, error) {
	settings := stitch.Settings{
		TileWidth:  cfg.Stitch.TileWidth,
		TileHeight: cfg.Stitch.TileHeight,
		Overlap:    cfg.Stitch.Overlap,
	}
	if t.fromMetadata {
		w, h, err := tileSizeFromMetadata(exp)
		if err != nil {
			return settings, err
		}
		settings.TileWidth, settings.TileHeight = w, h
	}
	if cmd.Flags().Changed("tile-width") {
		settings.TileWidth = t.width
	}
	if cmd.Flags().Changed("tile-height") {
		settings.TileHeight = t.height
	}
	if cmd.Flags().Changed("overlap") {
		settings.Overlap = t.overlap
	}
	return settings, nil
}

func tileSizeFromMetadata(exp *experiment.Experiment) (int, int, error) {
	for _, w := range exp.Wells() {
		for _, f := range w.Fields() {
			path, err := exp.FieldMetadataPath(f)
			if err != nil {
				continue
			}
			md, err := omexml.Read(path)
			if err != nil {
				return 0, 0, err
			}
			return md.TileSize()
		}
	}
	return 0, 0, services.Wrap(services.ErrNotFound, "stitch", "tile size", "no field metadata in experiment", nil)
}

// selectWells returns every well, or the one named by a "U,V" selector.
func selectWells(exp *experiment.Experiment, wellFlag string, slide int) ([]*experiment.Well, error) {
	if strings.TrimSpace(wellFlag) == "" {
		return exp.Wells(), nil
	}
	u, v, err := parseWellFlag(wellFlag)
	if err != nil {
		return nil, err
	}
	w, err := lookupWell(exp, slide, u, v)
	if err != nil {
		return nil, err
	}
	return []*experiment.Well{w}, nil
}

type planView struct {
	Well   string     `json:"well"`
	Output string     `json:"output"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Tiles  []tileView `json:"tiles"`
	Layout string     `json:"layout,omitempty"`
}

type tileView struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var tiles tileFlags
	var wellFlag, layoutDir string
	var slide int
	cmd := &cobra.Command{
		Use:   "plan <experiment>",
		Short: "Compute tile positions for every well, channel and z plane",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			exp, err := ctx.openExperiment(args[0])
			if err != nil {
				return err
			}
			settings, err := tiles.settings(cmd, cfg, exp)
			if err != nil {
				return err
			}
			planner, err := stitch.NewPlanner(settings)
			if err != nil {
				return err
			}
			wells, err := selectWells(exp, wellFlag, slide)
			if err != nil {
				return err
			}

			views := make([]planView, 0)
			for _, w := range wells {
				plans, err := planner.PlanAll(w)
				if err != nil {
					return err
				}
				for _, plan := range plans {
					view := planView{Well: w.String(), Output: plan.OutputName()}
					view.Width, view.Height = plan.Size()
					for _, t := range plan.Tiles {
						view.Tiles = append(view.Tiles, tileView{Path: relPath(exp.Root(), t.Ref.Path), X: t.X, Y: t.Y})
					}
					if layoutDir != "" {
						path, err := writeLayout(plan, layoutDir)
						if err != nil {
							return err
						}
						view.Layout = path
					}
					views = append(views, view)
				}
			}
			return emit(cmd, ctx, views, func() string {
				if len(views) == 0 {
					return "Nothing to plan\n"
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.Well, v.Output, strconv.Itoa(len(v.Tiles)), fmt.Sprintf("%dx%d", v.Width, v.Height)})
				}
				return fmt.Sprintf("Tile %dx%d, overlap %g\n", settings.TileWidth, settings.TileHeight, settings.Overlap) +
					renderTable([]string{"Well", "Output", "Tiles", "Size"}, rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}) + "\n"
			})
		},
	}
	tiles.register(cmd)
	cmd.Flags().StringVar(&wellFlag, "well", "", "Restrict to one well, as U,V")
	cmd.Flags().IntVar(&slide, "slide", -1, "Slide index used with --well")
	cmd.Flags().StringVar(&layoutDir, "write-layout", "", "Write a TileConfiguration file per plan into this directory")
	return cmd
}

// writeLayout writes plan's TileConfiguration into dir with absolute tile paths.
func writeLayout(plan stitch.Plan, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create layout dir: %w", err)
	}
	stem := strings.TrimSuffix(plan.OutputName(), filepath.Ext(plan.OutputName()))
	path := filepath.Join(dir, "TileConfiguration--"+strings.TrimPrefix(stem, "stitched--")+".txt")
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return plan.WriteTileConfiguration(w, "")
	})
	return path, err
}

type outcomeView struct {
	Well    string `json:"well"`
	Slice   string `json:"slice"`
	Output  string `json:"output"`
	Status  string `json:"status"`
	Tiles   int    `json:"tiles"`
	Message string `json:"error,omitempty"`
}

func newStitchCommand(ctx *commandContext) *cobra.Command {
	var tiles tileFlags
	var outDir string
	var force, noRegistration bool
	var workers int
	cmd := &cobra.Command{
		Use:   "stitch <experiment>",
		Short: "Stitch every well into one mosaic per channel and z plane using Fiji",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			logger := ctx.logger()
			exp, err := ctx.openExperiment(args[0])
			if err != nil {
				return err
			}
			settings, err := tiles.settings(cmd, cfg, exp)
			if err != nil {
				return err
			}
			planner, err := stitch.NewPlanner(settings)
			if err != nil {
				return err
			}

			fiji := deps.CheckFiji(cfg.FijiBinary())
			if !fiji.Available {
				return services.Wrap(services.ErrConfiguration, "stitch", "fiji", fiji.Detail+"; set stitch.fiji_binary or "+deps.FijiHomeEnv, nil)
			}
			stitcher, err := stitch.NewFijiStitcher(fiji.Command, cfg.Stitch.TimeoutSeconds,
				stitch.WithFusionMethod(cfg.Stitch.FusionMethod),
				stitch.WithComputeOverlap(!noRegistration),
				stitch.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("workers") {
				workers = cfg.Stitch.Workers
			}
			target := strings.TrimSpace(outDir)
			if target == "" {
				target = cfg.Paths.OutputDir
			}
			driver := &stitch.Driver{
				Planner:  planner,
				Stitcher: stitcher,
				Workers:  workers,
				Force:    force,
				Logger:   logger,
			}
			outcomes, runErr := driver.StitchExperiment(cmd.Context(), exp, target)
			if len(outcomes) == 0 && runErr != nil {
				return runErr
			}

			views := make([]outcomeView, 0, len(outcomes))
			for _, o := range outcomes {
				view := outcomeView{Well: o.Well.String(), Slice: o.Plan.OutputName(), Output: o.Output, Tiles: len(o.Plan.Tiles)}
				switch {
				case o.Err != nil:
					view.Status = "failed"
					view.Message = o.Err.Error()
				case o.Skipped:
					view.Status = "skipped"
				default:
					view.Status = "stitched"
				}
				views = append(views, view)
			}
			colorize := shouldColorize(cmd.OutOrStdout())
			if err := emit(cmd, ctx, views, func() string {
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					status := titleLabel(v.Status)
					if colorize {
						status = statusStyles[outcomeKind(v.Status)].color + status + ansiReset
					}
					rows = append(rows, []string{v.Well, v.Slice, strconv.Itoa(v.Tiles), status})
				}
				return renderTable([]string{"Well", "Slice", "Tiles", "Status"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}) + "\n"
			}); err != nil {
				return errors.Join(err, runErr)
			}
			return runErr
		},
	}
	tiles.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for mosaics (default: paths.output_dir, then the experiment)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-stitch slices whose mosaic already exists")
	cmd.Flags().BoolVar(&noRegistration, "no-registration", false, "Use planned positions without Fiji overlap registration")
	cmd.Flags().IntVar(&workers, "workers", 0, "Wells stitched concurrently (default from config)")
	return cmd
}

func outcomeKind(status string) statusKind {
	switch status {
	case "stitched":
		return statusOK
	case "skipped":
		return statusInfo
	default:
		return statusError
	}
}

type coordinateView struct {
	File  string  `json:"file"`
	Tile  string  `json:"tile"`
	// Field is the source field ("X01 Y00") read from the tile's file name.
	Field string  `json:"field,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// tileField labels the field a registered tile came from, or "" when the
// name carries no X and Y tags.
func tileField(attrs attributes.Set) string {
	x, okX := attrs.Get(attributes.X)
	y, okY := attrs.Get(attributes.Y)
	if !okX || !okY {
		return ""
	}
	return tagLabel(attributes.X, x) + " " + tagLabel(attributes.Y, y)
}

func newCoordinatesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "coordinates <layout-file-or-dir>",
		Short: "Show tile positions Fiji registered while stitching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := registeredFiles(args[0])
			if err != nil {
				return err
			}
			views := make([]coordinateView, 0)
			for _, file := range files {
				entries, err := stitch.ReadRegistered(file)
				if err != nil {
					return err
				}
				for _, e := range entries {
					views = append(views, coordinateView{
						File:  filepath.Base(file),
						Tile:  e.Name,
						Field: tileField(e.Attrs),
						X:     e.X,
						Y:     e.Y,
					})
				}
			}
			return emit(cmd, ctx, views, func() string {
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.File, v.Tile, v.Field, strconv.FormatFloat(v.X, 'f', 1, 64), strconv.FormatFloat(v.Y, 'f', 1, 64)})
				}
				return renderTable([]string{"Layout", "Tile", "Field", "X", "Y"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight}) + "\n"
			})
		},
	}
}

// registeredFiles resolves a layout file, or every registered layout in a
// directory.
func registeredFiles(target string) ([]string, error) {
	target, err := config.ExpandPath(strings.TrimSpace(target))
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("inspect %q: %w", target, err)
	}
	if !info.IsDir() {
		return []string{target}, nil
	}
	matches, err := filepath.Glob(filepath.Join(target, "TileConfiguration*.registered.txt"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "stitch", "coordinates", "no registered layout in "+target, nil)
	}
	return matches, nil
}
