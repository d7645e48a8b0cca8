package plan

import (
	"fmt"
	"strings"
)

// UnknownSoCError is returned when a plan or device names a SoC that is
// not in the catalog.
type UnknownSoCError struct {
	Name      string
	Available []string
}

func (e *UnknownSoCError) Error() string {
	return fmt.Sprintf("unknown SoC %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// UnknownPatchSetError is returned when a plan asks for a patch set the
// SoC does not define.
type UnknownPatchSetError struct {
	SoC       string
	PatchSet  string
	Available []string
}

func (e *UnknownPatchSetError) Error() string {
	return fmt.Sprintf("SoC %s has no patch set %q (available: %s)",
		e.SoC, e.PatchSet, strings.Join(e.Available, ", "))
}

// PlanError wraps a problem found while loading or expanding a plan.
type PlanError struct {
	Path string
	Err  error
}

func (e *PlanError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid plan: %v", e.Err)
	}
	return fmt.Sprintf("invalid plan %s: %v", e.Path, e.Err)
}

func (e *PlanError) Unwrap() error {
	return e.Err
}
