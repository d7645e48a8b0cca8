package sim

import "fmt"

// FaultKind classifies a Fault.
type FaultKind int

const (
	FaultFetch FaultKind = iota
	FaultRead
	FaultWrite
	FaultUndefined
	FaultThumb
	FaultStepLimit
)

func (k FaultKind) String() string {
	switch k {
	case FaultFetch:
		return "prefetch abort"
	case FaultRead:
		return "data abort (read)"
	case FaultWrite:
		return "data abort (write)"
	case FaultUndefined:
		return "undefined instruction"
	case FaultThumb:
		return "thumb state not supported"
	case FaultStepLimit:
		return "step limit exceeded"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}

// Fault stops the machine the way a hardware exception would.
type Fault struct {
	Kind FaultKind
	// PC is the address of the faulting instruction.
	PC uint32
	// Addr is the data or target address, when relevant.
	Addr uint32
	// Inst is the instruction word, when it was fetched.
	Inst uint32
}

func (f *Fault) Error() string {
	switch f.Kind {
	case FaultRead, FaultWrite, FaultFetch, FaultThumb:
		return fmt.Sprintf("%s at pc=0x%08x addr=0x%08x", f.Kind, f.PC, f.Addr)
	case FaultUndefined:
		return fmt.Sprintf("%s 0x%08x at pc=0x%08x", f.Kind, f.Inst, f.PC)
	default:
		return fmt.Sprintf("%s at pc=0x%08x", f.Kind, f.PC)
	}
}
