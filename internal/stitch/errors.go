package stitch

import (
	"fmt"
	"strings"

	"matrixscreen/internal/services"
)

// ConfigError reports stitch settings outside their valid range.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("stitch %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return services.ErrConfiguration }

// ToolError reports a failed stitching tool invocation along with the
// diagnostic output the tool printed.
type ToolError struct {
	Tool   string
	Input  string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed for %s: %v", e.Tool, e.Input, e.Err)
	if tail := lastLines(e.Output, 5); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func (e *ToolError) Unwrap() []error {
	return []error{services.ErrExternalTool, e.Err}
}

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
