package compress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"matrixscreen/internal/logging"
	"matrixscreen/internal/services"
)

// Result reports what happened to one input of a batch.
type Result struct {
	Input       string
	Output      string
	Skipped     bool
	Err         error
	InputBytes  int64
	OutputBytes int64
}

// Batch runs a Compressor over many files.
type Batch struct {
	Compressor Compressor
	// Workers bounds concurrency; zero means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// Run processes paths and returns one Result per path in input order. A
// failing file does not stop the others; the returned error joins every
// per-file failure. Files are never retried.
func (b *Batch) Run(ctx context.Context, paths []string) ([]Result, error) {
	if b.Compressor == nil {
		return nil, services.Wrap(services.ErrConfiguration, "compress", "batch", "compressor is required", nil)
	}
	logger := logging.NewComponentLogger(b.Logger, "compress")
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(paths))
	var done atomic.Int64
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			res := Result{Input: path}
			defer func() {
				results[i] = res
				done.Add(1)
			}()
			if err := ctx.Err(); err != nil {
				res.Err = err
				return nil
			}
			if info, err := os.Stat(path); err == nil {
				res.InputBytes = info.Size()
			}
			out, err := b.Compressor.Compress(ctx, path)
			res.Output = out
			switch {
			case errors.Is(err, services.ErrSkipped):
				res.Skipped = true
			case err != nil:
				res.Err = err
				logging.WarnWithContext(logger, "conversion failed", "compress_failed",
					logging.Path(path),
					logging.String(logging.FieldErrorHint, "check that the file is a readable image"),
					logging.String(logging.FieldImpact, "file left uncompressed"),
					logging.Error(err),
				)
				return nil
			}
			if info, err := os.Stat(out); err == nil {
				res.OutputBytes = info.Size()
			}
			return nil
		})
	}
	_ = g.Wait()

	var (
		errs                    []error
		converted, skipped      int
		inputBytes, outputBytes int64
	)
	for _, res := range results {
		switch {
		case res.Err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", res.Input, res.Err))
		case res.Skipped:
			skipped++
		default:
			converted++
			inputBytes += res.InputBytes
			outputBytes += res.OutputBytes
		}
	}
	logger.Info("batch finished",
		logging.Int("files", len(paths)),
		logging.Int("converted", converted),
		logging.Int("skipped", skipped),
		logging.Int("failed", len(errs)),
		logging.String("input_size", humanize.Bytes(uint64(inputBytes))),
		logging.String("output_size", humanize.Bytes(uint64(outputBytes))),
		logging.String("ratio", Ratio(inputBytes, outputBytes)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return results, errors.Join(errs...)
}

// Ratio formats out/in as a percentage, or "n/a" when in is zero.
func Ratio(in, out int64) string {
	if in <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(out)*100/float64(in))
}
