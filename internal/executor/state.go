package executor

import (
	"fmt"

	"github.com/muurk/writeseq/internal/argblock"
)

// State is a phase of a run.
type State int

const (
	// Idle means no run is in progress.
	Idle State = iota
	// Acknowledging means the host callback is being called.
	Acknowledging
	// Writing means stores are being performed.
	Writing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acknowledging:
		return "acknowledging"
	case Writing:
		return "writing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FaultError reports the access that stopped a run.
type FaultError struct {
	// Stage is Acknowledging for a failed callback, Writing otherwise.
	Stage State
	// Index is the op being executed when Stage is Writing.
	Index argblock.Word
	// Address is the callback or store address; zero if the op itself
	// could not be read.
	Address argblock.Word
	Err     error
}

func (e *FaultError) Error() string {
	if e.Stage == Acknowledging {
		return fmt.Sprintf("fault calling acknowledgment at %s: %v", e.Address.Hex(), e.Err)
	}
	return fmt.Sprintf("fault at op %d (address %s): %v", e.Index, e.Address.Hex(), e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}
