package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"matrixscreen/internal/config"
)

// LogFileName is the file written inside the configured log directory.
const LogFileName = "matrixscreen.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string // console (default) or json
	// Output is "stderr" (default), "stdout" or a file path opened for append.
	Output      string
	Development bool
}

// New constructs a slog logger. Debug level and Development both add the
// source location to every record.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	var build func(io.Writer, *slog.LevelVar, bool) slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		build = newConsoleHandler
	case "json":
		build = newJSONHandler
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	w, err := openOutput(opts.Output)
	if err != nil {
		return nil, err
	}
	return slog.New(build(w, levelVar, addSource)), nil
}

// NewFromConfig creates the CLI logger. Console output goes to stderr in the
// configured format; when a log directory is set, a JSON copy of every record
// is appended to LogFileName inside it.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info"})
	}

	console, err := New(Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return console, nil
	}
	file, err := New(Options{
		Level:  cfg.Logging.Level,
		Format: "json",
		Output: filepath.Join(cfg.Paths.LogDir, LogFileName),
	})
	if err != nil {
		return nil, err
	}
	return slog.New(TeeHandler(console.Handler(), file.Handler())), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutput(target string) (io.Writer, error) {
	switch target = strings.TrimSpace(target); target {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", target, err)
	}
	return f, nil
}
