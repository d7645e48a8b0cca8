package argblock

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// headerWords is the callback word plus the opCount word.
const headerWords = 2

// Layout describes how words are stored in an encoded block.
type Layout struct {
	// WordSize is the width of every field in bytes: 4 or 8.
	WordSize int
	// Order is the byte order of every field.
	Order binary.ByteOrder
}

// Predefined layouts.
var (
	Layout32LE = Layout{WordSize: 4, Order: binary.LittleEndian}
	Layout32BE = Layout{WordSize: 4, Order: binary.BigEndian}
	Layout64LE = Layout{WordSize: 8, Order: binary.LittleEndian}
	Layout64BE = Layout{WordSize: 8, Order: binary.BigEndian}
)

// ParseLayout builds a Layout from a word size in bytes and a byte order
// name ("little", "le", "big", "be"). An empty order means little-endian.
func ParseLayout(wordSize int, order string) (Layout, error) {
	l := Layout{WordSize: wordSize}
	switch strings.ToLower(order) {
	case "", "little", "le", "little-endian":
		l.Order = binary.LittleEndian
	case "big", "be", "big-endian":
		l.Order = binary.BigEndian
	default:
		return Layout{}, &LayoutError{WordSize: wordSize, Reason: fmt.Sprintf("unknown byte order %q", order)}
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate checks the word size and byte order.
func (l Layout) Validate() error {
	if l.WordSize != 4 && l.WordSize != 8 {
		return &LayoutError{WordSize: l.WordSize, Reason: "word size must be 4 or 8 bytes"}
	}
	if l.Order == nil {
		return &LayoutError{WordSize: l.WordSize, Reason: "byte order not set"}
	}
	return nil
}

// Mask returns the largest value a word can hold.
func (l Layout) Mask() Word {
	if l.WordSize >= 8 {
		return ^Word(0)
	}
	return Word(1)<<(uint(l.WordSize)*8) - 1
}

// HeaderSize is the size of the callback and opCount words.
func (l Layout) HeaderSize() int {
	return headerWords * l.WordSize
}

// EntrySize is the size of one (address, value) pair.
func (l Layout) EntrySize() int {
	return 2 * l.WordSize
}

// Size returns the encoded size of a block with n operations.
func (l Layout) Size(n int) int {
	return l.HeaderSize() + n*l.EntrySize()
}

func (l Layout) String() string {
	order := "little-endian"
	if l.Order == binary.BigEndian {
		order = "big-endian"
	}
	return fmt.Sprintf("%d-bit %s", l.WordSize*8, order)
}

func (l Layout) put(dst []byte, w Word) {
	if l.WordSize == 8 {
		l.Order.PutUint64(dst, uint64(w))
		return
	}
	l.Order.PutUint32(dst, uint32(w))
}

func (l Layout) word(src []byte) Word {
	if l.WordSize == 8 {
		return Word(l.Order.Uint64(src))
	}
	return Word(l.Order.Uint32(src))
}

// Check verifies that every field of b fits in a word.
func (l Layout) Check(b *Block) error {
	if err := l.Validate(); err != nil {
		return err
	}
	mask := l.Mask()
	if b.Callback&^mask != 0 {
		return &RangeError{Field: "callback", Index: -1, Value: b.Callback, WordSize: l.WordSize}
	}
	for i, op := range b.Ops {
		if op.Address&^mask != 0 {
			return &RangeError{Field: "address", Index: i, Value: op.Address, WordSize: l.WordSize}
		}
		if op.Value&^mask != 0 {
			return &RangeError{Field: "value", Index: i, Value: op.Value, WordSize: l.WordSize}
		}
	}
	return nil
}

// Encode returns the binary form of b.
func (l Layout) Encode(b *Block) ([]byte, error) {
	return l.AppendTo(make([]byte, 0, l.Size(len(b.Ops))), b)
}

// AppendTo appends the binary form of b to dst.
func (l Layout) AppendTo(dst []byte, b *Block) ([]byte, error) {
	if err := l.Check(b); err != nil {
		return nil, err
	}

	start := len(dst)
	size := l.Size(len(b.Ops))
	dst = append(dst, make([]byte, size)...)
	out := dst[start:]

	ws := l.WordSize
	l.put(out[0:], b.Callback)
	l.put(out[ws:], Word(len(b.Ops)))
	off := l.HeaderSize()
	for _, op := range b.Ops {
		l.put(out[off:], op.Address)
		l.put(out[off+ws:], op.Value)
		off += l.EntrySize()
	}
	return dst, nil
}

// Decode parses buf into an owned Block. Unlike NewView it requires every
// declared entry to be present; trailing bytes are ignored.
func (l Layout) Decode(buf []byte) (*Block, error) {
	v, err := l.NewView(buf)
	if err != nil {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	b := &Block{
		Callback: v.CallbackAddress(),
		Ops:      make([]Op, 0, int(v.OpCount())),
	}
	for i := Word(0); i < v.OpCount(); i++ {
		op, err := v.OpAt(i)
		if err != nil {
			return nil, err
		}
		b.Ops = append(b.Ops, op)
	}
	return b, nil
}
