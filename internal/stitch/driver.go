package stitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"matrixscreen/internal/attributes"
	"matrixscreen/internal/experiment"
	"matrixscreen/internal/fileutil"
	"matrixscreen/internal/logging"
	"matrixscreen/internal/services"
)

// Outcome reports what happened to one planned slice.
type Outcome struct {
	Well    experiment.WellKey
	Plan    Plan
	Output  string
	Skipped bool
	Err     error
}

// Driver stitches every well of an experiment.
type Driver struct {
	Planner  *Planner
	Stitcher Stitcher
	// Workers bounds the number of wells stitched concurrently.
	Workers int
	// Force re-stitches slices whose mosaic already exists.
	Force  bool
	Logger *slog.Logger
}

// StitchExperiment plans and stitches every well of exp into outDir, which
// defaults to the experiment root. When the experiment spans several slides,
// mosaics go into a slide--SNN subdirectory so names do not collide.
//
// All plans of a well are computed before its first stitcher call. Wells run
// concurrently up to Workers; slices of one well run in order. Outcomes are
// returned in well order, and the returned error joins every failed outcome.
func (d *Driver) StitchExperiment(ctx context.Context, exp *experiment.Experiment, outDir string) ([]Outcome, error) {
	if d.Planner == nil || d.Stitcher == nil {
		return nil, services.Wrap(services.ErrConfiguration, "stitch", "driver", "planner and stitcher required", nil)
	}
	if outDir == "" {
		outDir = exp.Root()
	}

	lock, err := fileutil.LockDir(outDir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	runID := uuid.NewString()
	ctx = services.WithStage(services.WithRunID(ctx, runID), "stitch")
	logger := logging.WithContext(ctx, logging.NewComponentLogger(d.Logger, "stitch"))

	wells := exp.Wells()
	perSlide := len(exp.Slides()) > 1
	results := make([][]Outcome, len(wells))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(max(d.Workers, 1))
	for i, w := range wells {
		g.Go(func() error {
			dir := outDir
			if perSlide {
				dir = filepath.Join(outDir, "slide"+attributes.Format(attributes.S, w.Slide()))
			}
			results[i] = d.stitchWell(services.WithWell(ctx, w.String()), logger, w, dir)
			return nil
		})
	}
	_ = g.Wait()

	var outcomes []Outcome
	var errs []error
	stitched, skipped := 0, 0
	for _, rs := range results {
		for _, o := range rs {
			outcomes = append(outcomes, o)
			switch {
			case o.Err != nil:
				errs = append(errs, o.Err)
			case o.Skipped:
				skipped++
			default:
				stitched++
			}
		}
	}
	logger.Info("stitching finished",
		logging.Int("wells", len(wells)),
		logging.Int("stitched", stitched),
		logging.Int("skipped", skipped),
		logging.Int("failed", len(errs)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return outcomes, errors.Join(errs...)
}

func (d *Driver) stitchWell(ctx context.Context, logger *slog.Logger, w *experiment.Well, dir string) []Outcome {
	logger = logger.With(logging.String(logging.FieldWell, w.String()))

	plans, err := d.Planner.PlanAll(w)
	if err != nil {
		return []Outcome{{Well: w.Key(), Err: fmt.Errorf("plan %s: %w", w, err)}}
	}

	outcomes := make([]Outcome, 0, len(plans))
	for _, plan := range plans {
		outcome := Outcome{Well: w.Key(), Plan: plan, Output: filepath.Join(dir, plan.OutputName())}
		if err := ctx.Err(); err != nil {
			outcome.Err = err
			outcomes = append(outcomes, outcome)
			continue
		}
		if !d.Force {
			if _, err := os.Stat(outcome.Output); err == nil {
				outcome.Skipped = true
				logger.Info("mosaic already exists", logging.Path(outcome.Output))
				outcomes = append(outcomes, outcome)
				continue
			}
		}

		output, err := d.Stitcher.Stitch(ctx, NewRequest(plan, dir))
		if err != nil {
			outcome.Err = fmt.Errorf("stitch %s: %w", plan, err)
			logging.ErrorWithContext(logger, "stitching failed", "stitch_failed",
				logging.String("slice", plan.OutputName()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the Fiji output above and rerun the well"),
			)
		} else {
			outcome.Output = output
			logger.Info("mosaic written", logging.Path(output), logging.Int("tiles", len(plan.Tiles)))
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
