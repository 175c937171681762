package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"matrixscreen/internal/compress"
	"matrixscreen/internal/experiment"
	"matrixscreen/internal/fileutil"
	"matrixscreen/internal/logging"
	"matrixscreen/internal/services"
)

type batchSummary struct {
	Converted   int               `json:"converted"`
	Skipped     int               `json:"skipped"`
	Failed      int               `json:"failed"`
	InputBytes  int64             `json:"input_bytes"`
	OutputBytes int64             `json:"output_bytes"`
	Results     []batchResultView `json:"results"`
}

type batchResultView struct {
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func summarizeBatch(root string, results []compress.Result) batchSummary {
	summary := batchSummary{Results: make([]batchResultView, 0, len(results))}
	for _, r := range results {
		view := batchResultView{Input: relPath(root, r.Input), Output: relPath(root, r.Output)}
		switch {
		case r.Err != nil:
			summary.Failed++
			view.Status = "failed"
			view.Error = r.Err.Error()
		case r.Skipped:
			summary.Skipped++
			view.Status = "skipped"
		default:
			summary.Converted++
			summary.InputBytes += r.InputBytes
			summary.OutputBytes += r.OutputBytes
			view.Status = "converted"
		}
		summary.Results = append(summary.Results, view)
	}
	return summary
}

func (s batchSummary) render(colorize bool) string {
	var b strings.Builder
	for _, v := range s.Results {
		if v.Status == "failed" {
			b.WriteString(renderStatusLine(filepath.Base(v.Input), statusError, v.Error, colorize) + "\n")
		}
	}
	b.WriteString(infoLine("Converted", fmt.Sprintf("%d", s.Converted)) + "\n")
	b.WriteString(infoLine("Skipped", fmt.Sprintf("%d", s.Skipped)) + "\n")
	b.WriteString(infoLine("Failed", fmt.Sprintf("%d", s.Failed)) + "\n")
	b.WriteString(infoLine("Size", fmt.Sprintf("%s -> %s (%s)",
		humanize.Bytes(uint64(s.InputBytes)),
		humanize.Bytes(uint64(s.OutputBytes)),
		compress.Ratio(s.InputBytes, s.OutputBytes),
	)) + "\n")
	return b.String()
}

// imagesWithExt collects indexed images whose extension is one of exts.
func imagesWithExt(exp *experiment.Experiment, exts ...string) []string {
	var paths []string
	for ref := range exp.Images() {
		ext := strings.ToLower(filepath.Ext(ref.Path))
		for _, want := range exts {
			if ext == want {
				paths = append(paths, ref.Path)
				break
			}
		}
	}
	return paths
}

// runBatch locks dir, then runs conv over paths under a fresh run ID.
func runBatch(cmd *cobra.Command, ctx *commandContext, stage, dir string, workers int, conv compress.Compressor, paths []string, root string) error {
	lock, err := fileutil.LockDir(dir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	runCtx := services.WithStage(services.WithRunID(cmd.Context(), uuid.NewString()), stage)
	batch := &compress.Batch{
		Compressor: conv,
		Workers:    workers,
		Logger:     logging.WithContext(runCtx, ctx.logger()),
	}
	results, runErr := batch.Run(runCtx, paths)
	if errors.Is(runErr, context.Canceled) && len(results) == 0 {
		return runErr
	}
	summary := summarizeBatch(root, results)
	if err := emit(cmd, ctx, summary, func() string {
		return summary.render(shouldColorize(cmd.OutOrStdout()))
	}); err != nil {
		return errors.Join(err, runErr)
	}
	return runErr
}

func newCompressCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var force, deleteOriginal bool
	var workers int
	cmd := &cobra.Command{
		Use:   "compress <experiment>",
		Short: "Losslessly recompress experiment TIFF images to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			exp, err := ctx.openExperiment(args[0])
			if err != nil {
				return err
			}
			opts := compress.Options{
				OutputDir:      cfg.Compress.OutputDir,
				DeleteOriginal: cfg.Compress.DeleteOriginal || deleteOriginal,
				Force:          cfg.Compress.Force || force,
				Logger:         ctx.logger(),
			}
			if strings.TrimSpace(outDir) != "" {
				opts.OutputDir = outDir
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Compress.Workers
			}
			lockDir := exp.Root()
			if opts.OutputDir != "" {
				lockDir = opts.OutputDir
			}
			paths := imagesWithExt(exp, ".tif", ".tiff")
			return runBatch(cmd, ctx, "compress", lockDir, workers, compress.NewPNGCompressor(opts), paths, exp.Root())
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for PNG files (default: compress.output_dir, then beside each TIFF)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing PNG files")
	cmd.Flags().BoolVar(&deleteOriginal, "delete-original", false, "Remove each TIFF after it is converted")
	cmd.Flags().IntVar(&workers, "workers", 0, "Files converted concurrently (default from config)")
	return cmd
}

func newDecompressCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var force, deletePNG bool
	var workers int
	cmd := &cobra.Command{
		Use:   "decompress <experiment>",
		Short: "Restore OME-TIFF images from compressed PNG files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			exp, err := ctx.openExperiment(args[0])
			if err != nil {
				return err
			}
			opts := compress.DecompressOptions{
				OutputDir:     outDir,
				DeletePNG:     deletePNG,
				DeleteSidecar: deletePNG,
				Force:         force,
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Compress.Workers
			}
			lockDir := exp.Root()
			if outDir != "" {
				lockDir = outDir
			}
			conv := compress.CompressorFunc(func(runCtx context.Context, path string) (string, error) {
				return compress.Decompress(runCtx, path, opts)
			})
			return runBatch(cmd, ctx, "decompress", lockDir, workers, conv, imagesWithExt(exp, ".png"), exp.Root())
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for restored TIFF files (default: beside each PNG)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing TIFF files")
	cmd.Flags().BoolVar(&deletePNG, "delete-png", false, "Remove each PNG and its sidecar after it is restored")
	cmd.Flags().IntVar(&workers, "workers", 0, "Files converted concurrently (default from config)")
	return cmd
}
