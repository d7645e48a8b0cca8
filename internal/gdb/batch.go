package gdb

import (
	"fmt"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/executor"
)

// Batch collects the calls and stores of one replay so they can be sent
// to the target in a single GDB session. It implements executor.Target.
type Batch struct {
	// Callback is the acknowledgment address, 0 if none was called.
	Callback argblock.Word
	// Ops are the stores in the order they were issued.
	Ops []argblock.Op

	mask argblock.Word
}

// NewBatch returns an empty batch for words of wordSize bytes.
func NewBatch(wordSize int) *Batch {
	mask := ^argblock.Word(0)
	if wordSize == 4 {
		mask = 0xFFFFFFFF
	}
	return &Batch{mask: mask}
}

// Call implements executor.Target. Only the acknowledgment call can be
// replayed over GDB, and only before the first store.
func (b *Batch) Call(addr argblock.Word, args [3]argblock.Word) error {
	if args != executor.AckArgs {
		return fmt.Errorf("unsupported call arguments %v", args)
	}
	if b.Callback != 0 || len(b.Ops) > 0 {
		return fmt.Errorf("acknowledgment at %s must be the first action", addr.Hex())
	}
	b.Callback = addr
	return nil
}

// StoreWord implements executor.Target.
func (b *Batch) StoreWord(addr, value argblock.Word) error {
	if addr&^b.mask != 0 || value&^b.mask != 0 {
		return fmt.Errorf("store %s <- %s does not fit the target word", addr.Hex(), value.Hex())
	}
	b.Ops = append(b.Ops, argblock.Op{Address: addr, Value: value})
	return nil
}
