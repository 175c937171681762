package stitch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"matrixscreen/internal/fileutil"
	"matrixscreen/internal/logging"
	"matrixscreen/internal/services"
)

// DefaultFusionMethod is the Grid/Collection fusion used when none is configured.
const DefaultFusionMethod = "Linear Blending"

// Request is one stitching job: the planned tiles and where the mosaic goes.
type Request struct {
	Tiles      []Tile
	OutputDir  string
	OutputName string
	// WorkDir holds the layout file and macro. When empty, a temporary
	// directory is created and removed afterwards.
	WorkDir string
}

// NewRequest builds a request for plan writing into outputDir.
func NewRequest(plan Plan, outputDir string) Request {
	return Request{Tiles: plan.Tiles, OutputDir: outputDir, OutputName: plan.OutputName()}
}

// Stitcher produces one mosaic per request.
type Stitcher interface {
	Stitch(ctx context.Context, req Request) (string, error)
}

// Executor abstracts command execution for testability. Run returns the
// combined stdout and stderr of the process.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures the Fiji stitcher.
type Option func(*FijiStitcher)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(s *FijiStitcher) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// WithFusionMethod overrides the Grid/Collection fusion method.
func WithFusionMethod(method string) Option {
	return func(s *FijiStitcher) {
		if strings.TrimSpace(method) != "" {
			s.fusion = strings.TrimSpace(method)
		}
	}
}

// WithComputeOverlap toggles overlap registration inside Fiji. When enabled
// Fiji refines the planned positions and writes a registered layout next to
// the mosaic.
func WithComputeOverlap(enabled bool) Option {
	return func(s *FijiStitcher) {
		s.computeOverlap = enabled
	}
}

// WithLogger sets the logger used for invocation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FijiStitcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// FijiStitcher runs the Fiji Grid/Collection stitching plugin headless.
type FijiStitcher struct {
	binary         string
	timeout        time.Duration
	fusion         string
	computeOverlap bool
	exec           Executor
	logger         *slog.Logger
}

// NewFijiStitcher constructs a stitcher around the Fiji launcher binary.
func NewFijiStitcher(binary string, timeoutSeconds int, opts ...Option) (*FijiStitcher, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "stitch", "fiji", "binary required", nil)
	}
	s := &FijiStitcher{
		binary:         binary,
		timeout:        time.Duration(timeoutSeconds) * time.Second,
		fusion:         DefaultFusionMethod,
		computeOverlap: true,
		exec:           commandExecutor{},
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Stitch writes the layout and macro for req, runs Fiji, and moves the mosaic
// into req.OutputDir. Failures are returned as *ToolError and never retried.
func (s *FijiStitcher) Stitch(ctx context.Context, req Request) (string, error) {
	if len(req.Tiles) == 0 {
		return "", services.Wrap(services.ErrValidation, "stitch", "fiji", "request has no tiles", nil)
	}
	if strings.TrimSpace(req.OutputDir) == "" || strings.TrimSpace(req.OutputName) == "" {
		return "", services.Wrap(services.ErrValidation, "stitch", "fiji", "output directory and name required", nil)
	}

	workDir := req.WorkDir
	if workDir == "" {
		tmp, err := os.MkdirTemp("", "matrixscreen-stitch-*")
		if err != nil {
			return "", fmt.Errorf("create work dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		workDir = tmp
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	stem := strings.TrimSuffix(req.OutputName, filepath.Ext(req.OutputName))
	layoutName := "TileConfiguration--" + strings.TrimPrefix(stem, "stitched--") + ".txt"
	plan := Plan{Tiles: req.Tiles}
	layoutPath := filepath.Join(workDir, layoutName)
	if err := fileutil.WriteAtomic(layoutPath, 0o644, func(w io.Writer) error {
		return plan.WriteTileConfiguration(w, workDir)
	}); err != nil {
		return "", fmt.Errorf("write tile configuration: %w", err)
	}

	scratch := filepath.Join(workDir, req.OutputName)
	macro := Macro(MacroParams{
		Directory:      workDir,
		LayoutFile:     layoutName,
		Output:         scratch,
		FusionMethod:   s.fusion,
		ComputeOverlap: s.computeOverlap,
	})
	macroPath := filepath.Join(workDir, stem+".ijm")
	if err := os.WriteFile(macroPath, []byte(macro), 0o644); err != nil {
		return "", fmt.Errorf("write macro: %w", err)
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := []string{"--headless", "--console", "-macro", macroPath}
	s.logger.Debug("running fiji",
		logging.String("binary", s.binary),
		logging.String("macro", macroPath),
		logging.Int("tiles", len(req.Tiles)),
	)
	output, err := s.exec.Run(runCtx, s.binary, args)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", services.ErrTimeout, s.timeout, err)
		}
		return "", &ToolError{Tool: "fiji", Input: req.OutputName, Output: string(output), Err: err}
	}
	if _, err := os.Stat(scratch); err != nil {
		return "", &ToolError{Tool: "fiji", Input: req.OutputName, Output: string(output), Err: errors.New("no output file produced")}
	}

	target := filepath.Join(req.OutputDir, req.OutputName)
	if err := fileutil.MoveFile(scratch, target); err != nil {
		return "", fmt.Errorf("move mosaic into place: %w", err)
	}
	registered := filepath.Join(workDir, strings.TrimSuffix(layoutName, ".txt")+".registered.txt")
	if _, err := os.Stat(registered); err == nil {
		dest := filepath.Join(req.OutputDir, filepath.Base(registered))
		if err := fileutil.MoveFile(registered, dest); err != nil {
			s.logger.Warn("could not keep registered layout", logging.Path(registered), logging.Error(err))
		}
	}
	return target, nil
}

// MacroParams describe one Grid/Collection invocation.
type MacroParams struct {
	Directory      string
	LayoutFile     string
	Output         string
	FusionMethod   string
	ComputeOverlap bool
}

// Macro renders the ImageJ macro that stitches a layout file and saves the
// fused result as PNG.
func Macro(p MacroParams) string {
	fusion := p.FusionMethod
	if fusion == "" {
		fusion = DefaultFusionMethod
	}
	options := []string{
		"type=[Positions from file]",
		"order=[Defined by TileConfiguration]",
		fmt.Sprintf("directory=[%s]", filepath.ToSlash(p.Directory)),
		fmt.Sprintf("layout_file=[%s]", p.LayoutFile),
		fmt.Sprintf("fusion_method=[%s]", fusion),
		"regression_threshold=0.30",
		"max/avg_displacement_threshold=2.50",
		"absolute_displacement_threshold=3.50",
	}
	if p.ComputeOverlap {
		options = append(options, "compute_overlap")
	}
	options = append(options,
		"computation_parameters=[Save computation time (but use more RAM)]",
		"image_output=[Fuse and display]",
	)

	var b strings.Builder
	fmt.Fprintf(&b, "run(\"Grid/Collection stitching\", \"%s\");\n", strings.Join(options, " "))
	fmt.Fprintf(&b, "saveAs(\"PNG\", \"%s\");\n", filepath.ToSlash(p.Output))
	b.WriteString("close();\n")
	b.WriteString("eval(\"script\", \"System.exit(0);\");\n")
	return b.String()
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
