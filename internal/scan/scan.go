package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sys/unix"

	"matrixscreen/internal/logging"
)

// DefaultExcludeDir is the exporter's experiment-level metadata folder.
const DefaultExcludeDir = "AdditionalData"

// DefaultExtensions lists the file extensions kept when Options leaves them empty.
var DefaultExtensions = []string{".tif", ".tiff", ".png", ".xml"}

// Options controls a directory scan.
type Options struct {
	// Extensions are matched case-insensitively against the final extension.
	Extensions []string
	// ExcludeDir names directories skipped entirely (exact, case-sensitive).
	ExcludeDir string
	Logger     *slog.Logger
}

// Warning records an entry skipped during the walk.
type Warning struct {
	Path string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

// Result holds the files found under Root in lexical order.
type Result struct {
	Root     string
	Paths    []string
	Warnings []Warning
}

// ScanError reports a root directory that cannot be scanned.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

var errNotDirectory = errors.New("not a directory")

// Scan walks root and returns the matching files.
func Scan(root string, opts Options) (Result, error) {
	logger := logging.NewComponentLogger(opts.Logger, "scan")

	abs, err := filepath.Abs(root)
	if err != nil {
		return Result{}, &ScanError{Root: root, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Result{}, &ScanError{Root: abs, Err: err}
	}
	if !info.IsDir() {
		return Result{}, &ScanError{Root: abs, Err: errNotDirectory}
	}
	if err := unix.Access(abs, unix.R_OK|unix.X_OK); err != nil {
		return Result{}, &ScanError{Root: abs, Err: &fs.PathError{Op: "access", Path: abs, Err: err}}
	}

	exts := normalizeExtensions(opts.Extensions)
	exclude := opts.ExcludeDir
	if exclude == "" {
		exclude = DefaultExcludeDir
	}

	result := Result{Root: abs}
	skip := func(path string, err error) {
		result.Warnings = append(result.Warnings, Warning{Path: path, Err: err})
		logging.WarnWithContext(logger, "skipping unreadable entry", "scan_unreadable",
			logging.Path(path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry excluded from experiment"),
			logging.String(logging.FieldErrorHint, "check file permissions"),
		)
	}

	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}
			skip(path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == abs {
				return nil
			}
			if d.Name() == exclude {
				return fs.SkipDir
			}
			if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
				skip(path, &fs.PathError{Op: "access", Path: path, Err: err})
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if !matchesExtension(d.Name(), exts) {
			return nil
		}
		if err := unix.Access(path, unix.R_OK); err != nil {
			skip(path, &fs.PathError{Op: "access", Path: path, Err: err})
			return nil
		}
		result.Paths = append(result.Paths, path)
		return nil
	})
	if walkErr != nil {
		return Result{}, &ScanError{Root: abs, Err: walkErr}
	}

	slices.Sort(result.Paths)
	logger.Debug("scan complete",
		logging.Int("files", len(result.Paths)),
		logging.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// ScanningTemplate returns the experiment's scanning template from the
// auxiliary folder, if one exists.
func ScanningTemplate(root, excludeDir string) (string, bool) {
	if excludeDir == "" {
		excludeDir = DefaultExcludeDir
	}
	matches, err := filepath.Glob(filepath.Join(root, excludeDir, "{ScanningTemplate}*.xml"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	slices.Sort(matches)
	return matches[0], true
}

func normalizeExtensions(values []string) []string {
	if len(values) == 0 {
		values = DefaultExtensions
	}
	out := make([]string, 0, len(values))
	for _, ext := range values {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func matchesExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext != "" && slices.Contains(exts, ext)
}
