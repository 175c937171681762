package experiment

import (
	"fmt"

	"matrixscreen/internal/services"
)

// NotFoundError reports a query for a coordinate the experiment does not hold.
type NotFoundError struct {
	What  string
	Coord string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.What, e.Coord)
}

// Is makes NotFoundError match services.ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == services.ErrNotFound
}

// WarningKind classifies an IntegrityWarning.
type WarningKind uint8

const (
	// WarnDuplicate marks a file whose full coordinate was already claimed.
	WarnDuplicate WarningKind = iota + 1
	// WarnMissingField marks a hole in a well's field grid.
	WarnMissingField
	// WarnCardinality marks a field whose channel or z count differs from its well.
	WarnCardinality
	// WarnUnreadable marks an entry the scanner could not read.
	WarnUnreadable
)

func (k WarningKind) String() string {
	switch k {
	case WarnDuplicate:
		return "duplicate"
	case WarnMissingField:
		return "missing_field"
	case WarnCardinality:
		return "cardinality"
	case WarnUnreadable:
		return "unreadable"
	default:
		return "unknown"
	}
}

// IntegrityWarning is a non-fatal data problem found while indexing.
type IntegrityWarning struct {
	Kind    WarningKind
	Path    string
	Message string
}

func (w IntegrityWarning) String() string {
	if w.Path == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Path, w.Message)
}

// Unclassified is a scanned file left out of the hierarchy.
type Unclassified struct {
	Path   string
	Reason string
}
