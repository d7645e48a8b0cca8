// Package argblock defines the Argument Block consumed by the sequence
// executor and its binary layout.
//
// # Layout
//
// The block is a flat run of machine words with no header, sentinel or
// checksum:
//
//	offset 0           callback address (0 = no acknowledgment)
//	offset 1           opCount
//	offset 2+2i        address of op i
//	offset 3+2i        value of op i
//
// Word width and byte order are described by a Layout. The ARM stub
// shipped in internal/stub expects Layout32LE.
//
// # Reading
//
// The executor reads blocks through the Reader interface, which both the
// owned Block type and the zero-copy View implement. A View is a
// bounds-checked window over a caller-owned buffer: it never copies or
// allocates, and it trusts the declared opCount the same way the device
// routine does. Call View.Validate to opt in to a check that every
// declared entry is actually present.
//
//	view, err := argblock.Layout32LE.NewView(buf)
//	if err != nil {
//	    return err
//	}
//	for i := argblock.Word(0); i < view.OpCount(); i++ {
//	    op, err := view.OpAt(i)
//	    ...
//	}
//
// # Writing
//
// Layout.Encode produces the exact bytes an image builder places next to
// the executor code:
//
//	block := &argblock.Block{
//	    Ops: []argblock.Op{{Address: 0x1000, Value: 0xAA}},
//	}
//	raw, err := argblock.Layout32LE.Encode(block)
package argblock
