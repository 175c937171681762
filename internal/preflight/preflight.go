package preflight

import (
	"strings"

	"matrixscreen/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config and experiment
// root. Directory checks are skipped for paths that are not configured.
func RunAll(cfg *config.Config, experimentRoot string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if strings.TrimSpace(experimentRoot) != "" {
		results = append(results, CheckReadableDirectory("Experiment directory", experimentRoot))
	}
	if cfg.Paths.OutputDir != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}
	if cfg.Compress.OutputDir != "" {
		results = append(results, CheckDirectoryAccess("Compress output directory", cfg.Compress.OutputDir))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
