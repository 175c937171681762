package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"matrixscreen/internal/attributes"
	"matrixscreen/internal/experiment"
	"matrixscreen/internal/services"
)

// relPath shortens path to be relative to root when it lies beneath it.
func relPath(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// parseIndices converts positional arguments such as "0 1" into integers.
func parseIndices(args []string, names ...string) ([]int, error) {
	if len(args) != len(names) {
		return nil, services.Wrap(services.ErrValidation, "cli", "arguments",
			fmt.Sprintf("expected %s", strings.Join(names, " ")), nil)
	}
	out := make([]int, len(args))
	for i, arg := range args {
		v, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || v < 0 {
			return nil, services.Wrap(services.ErrValidation, "cli", "arguments",
				fmt.Sprintf("%s must be a non-negative integer, got %q", names[i], arg), nil)
		}
		out[i] = v
	}
	return out, nil
}

// parseWellFlag parses a "U,V" well selector.
func parseWellFlag(value string) (int, int, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, services.Wrap(services.ErrValidation, "cli", "well", fmt.Sprintf("expected U,V, got %q", value), nil)
	}
	idx, err := parseIndices(parts, "U", "V")
	if err != nil {
		return 0, 0, err
	}
	return idx[0], idx[1], nil
}

// lookupWell resolves (u, v) on slide, or on the lowest slide when slide < 0.
func lookupWell(exp *experiment.Experiment, slide, u, v int) (*experiment.Well, error) {
	if slide >= 0 {
		return exp.WellBySlide(slide, u, v)
	}
	return exp.Well(u, v)
}

func infoLine(label, value string) string {
	return fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", value)
}

// tagLabel renders a coordinate as it appears in names, without the dashes.
func tagLabel(k attributes.Key, v int) string {
	return strings.TrimPrefix(attributes.Format(k, v), "--")
}
