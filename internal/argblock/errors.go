package argblock

import "fmt"

// LayoutError reports an unusable word size or byte order.
type LayoutError struct {
	WordSize int
	Reason   string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("invalid block layout (word size %d): %s", e.WordSize, e.Reason)
}

// ShortBufferError reports a buffer too small to hold the two header words.
type ShortBufferError struct {
	Need int
	Have int
}

func (e *ShortBufferError) Error() string {
	return fmt.Sprintf("argument block too short: need %d bytes for the header, have %d", e.Need, e.Have)
}

// TruncatedError reports an operation index beyond the entries actually
// present in the backing storage.
type TruncatedError struct {
	// Declared is the opCount read from the block.
	Declared Word
	// Present is the number of complete entries in the buffer.
	Present Word
	// Index is the entry that was requested, if any.
	Index Word
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("argument block truncated: op %d requested, %d declared, %d present",
		e.Index, e.Declared, e.Present)
}

// RangeError reports a field that does not fit in the layout's word.
type RangeError struct {
	// Field is "callback", "address" or "value".
	Field string
	// Index is the op index; -1 for the callback.
	Index    int
	Value    Word
	WordSize int
}

func (e *RangeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s %#x does not fit in a %d-byte word", e.Field, uint64(e.Value), e.WordSize)
	}
	return fmt.Sprintf("op %d: %s %#x does not fit in a %d-byte word", e.Index, e.Field, uint64(e.Value), e.WordSize)
}
