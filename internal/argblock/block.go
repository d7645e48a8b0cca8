package argblock

import (
	"fmt"
	"strings"
)

// Word is a machine word. Only the low Layout.WordSize bytes are
// meaningful once a block is encoded.
type Word uint64

// Hex formats the word as 0x-prefixed hex.
func (w Word) Hex() string {
	return fmt.Sprintf("0x%08x", uint64(w))
}

// Op is a single full-word store.
type Op struct {
	Address Word `yaml:"address"`
	Value   Word `yaml:"value"`
}

func (o Op) String() string {
	return fmt.Sprintf("%s <- %s", o.Address.Hex(), o.Value.Hex())
}

// Reader is the read-only access the executor needs.
type Reader interface {
	// CallbackAddress returns the acknowledgment callback, 0 for none.
	CallbackAddress() Word

	// OpCount returns the declared number of operations.
	OpCount() Word

	// OpAt returns operation i. An error means the entry lies outside
	// the backing storage.
	OpAt(i Word) (Op, error)
}

// Block is an owned Argument Block.
type Block struct {
	// Callback is the address of the host acknowledgment function.
	// Zero means no acknowledgment is requested.
	Callback Word

	// Ops are executed in slice order. The encoded opCount is len(Ops).
	Ops []Op
}

// CallbackAddress implements Reader.
func (b *Block) CallbackAddress() Word {
	return b.Callback
}

// OpCount implements Reader.
func (b *Block) OpCount() Word {
	return Word(len(b.Ops))
}

// OpAt implements Reader.
func (b *Block) OpAt(i Word) (Op, error) {
	if i >= Word(len(b.Ops)) {
		return Op{}, &TruncatedError{Declared: b.OpCount(), Present: b.OpCount(), Index: i}
	}
	return b.Ops[i], nil
}

// Append adds a store to the end of the sequence.
func (b *Block) Append(address, value Word) {
	b.Ops = append(b.Ops, Op{Address: address, Value: value})
}

// FinalState returns the value each touched address holds after the
// sequence runs, with later entries overriding earlier ones. The
// returned order lists each address once, at its first occurrence.
func (b *Block) FinalState() ([]Word, map[Word]Word) {
	order := make([]Word, 0, len(b.Ops))
	final := make(map[Word]Word, len(b.Ops))
	for _, op := range b.Ops {
		if _, seen := final[op.Address]; !seen {
			order = append(order, op.Address)
		}
		final[op.Address] = op.Value
	}
	return order, final
}

// Clone returns a deep copy.
func (b *Block) Clone() *Block {
	ops := make([]Op, len(b.Ops))
	copy(ops, b.Ops)
	return &Block{Callback: b.Callback, Ops: ops}
}

// String returns a multi-line listing of the block.
func (b *Block) String() string {
	var sb strings.Builder
	if b.Callback == 0 {
		sb.WriteString("callback: none\n")
	} else {
		fmt.Fprintf(&sb, "callback: %s\n", b.Callback.Hex())
	}
	fmt.Fprintf(&sb, "ops: %d\n", len(b.Ops))
	for i, op := range b.Ops {
		fmt.Fprintf(&sb, "  [%d] %s\n", i, op)
	}
	return sb.String()
}
