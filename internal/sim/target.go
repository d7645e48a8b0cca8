package sim

import (
	"github.com/muurk/writeseq/internal/argblock"
)

const maxWord32 = argblock.Word(0xFFFF_FFFF)

// WordTarget exposes a Machine through the executor's word interface, so
// the Go executor and the ARM routine can be checked against the same
// memory.
type WordTarget struct {
	m *Machine
}

// AsTarget returns the machine's word interface.
func (m *Machine) AsTarget() *WordTarget {
	return &WordTarget{m: m}
}

// StoreWord performs a 32-bit store.
func (t *WordTarget) StoreWord(addr, value argblock.Word) error {
	if addr > maxWord32 {
		return &Fault{Kind: FaultWrite, PC: t.m.R[PC], Addr: uint32(addr)}
	}
	return t.m.Write32(uint32(addr), uint32(value))
}

// LoadWord performs a 32-bit load.
func (t *WordTarget) LoadWord(addr argblock.Word) (argblock.Word, error) {
	if addr > maxWord32 {
		return 0, &Fault{Kind: FaultRead, PC: t.m.R[PC], Addr: uint32(addr)}
	}
	v, err := t.m.Read32(uint32(addr))
	return argblock.Word(v), err
}

// Call runs the guest or host function at addr and discards its result.
func (t *WordTarget) Call(addr argblock.Word, args [3]argblock.Word) error {
	if addr > maxWord32 {
		return &Fault{Kind: FaultFetch, PC: t.m.R[PC], Addr: uint32(addr)}
	}
	return t.m.Call(uint32(addr), uint32(args[0]), uint32(args[1]), uint32(args[2]))
}
