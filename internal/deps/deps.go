package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external program a command shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional requirements only degrade features; a missing one is a warning.
	Optional bool
}

// Status is the outcome of resolving one Requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
	// Path is the resolved executable when Available.
	Path string
}

// Check resolves the requirement's command through PATH. Commands holding a
// path separator are checked in place, as exec.LookPath does.
func (r Requirement) Check() Status {
	status := Status{
		Name:        r.Name,
		Command:     strings.TrimSpace(r.Command),
		Description: strings.TrimSpace(r.Description),
		Optional:    r.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	status.Path = resolved
	return status
}

// CheckBinaries resolves each requirement, keeping input order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = req.Check()
	}
	return results
}

// Blocking returns the statuses of required programs that did not resolve.
func Blocking(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
