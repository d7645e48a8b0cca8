// Package image builds the flat binary loaded onto a device: the replay
// routine from internal/stub immediately followed by an encoded
// Argument Block.
//
// The result carries no headers, symbols or relocations. It runs from
// whatever address it is loaded at, with the entry point at offset 0.
package image

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/stub"
)

// ErrNotImage is returned by Parse when the code prefix does not match
// the replay routine.
var ErrNotImage = errors.New("not a writeseq image: code prefix does not match the replay routine")

// Build returns the routine followed by block encoded with stub.Layout.
func Build(block *argblock.Block) ([]byte, error) {
	out := stub.Code()
	out, err := stub.Layout.AppendTo(out, block)
	if err != nil {
		return nil, fmt.Errorf("failed to encode argument block: %w", err)
	}
	return out, nil
}

// Size returns the size of an image carrying n operations.
func Size(n int) int {
	return stub.BlockOffset + stub.Layout.Size(n)
}

// Parse returns a view of the block inside img without copying.
func Parse(img []byte) (argblock.View, error) {
	code := stub.Code()
	if len(img) < len(code) || !bytes.Equal(img[:len(code)], code) {
		return argblock.View{}, ErrNotImage
	}
	return stub.Layout.NewView(img[stub.BlockOffset:])
}

// Decode extracts an owned, fully validated block from img.
func Decode(img []byte) (*argblock.Block, error) {
	if _, err := Parse(img); err != nil {
		return nil, err
	}
	return stub.Layout.Decode(img[stub.BlockOffset:])
}

// Placement describes an image loaded at Base.
type Placement struct {
	Base uint32
	Size int
}

// Entry is the address to transfer control to.
func (p Placement) Entry() uint32 {
	return p.Base
}

// BlockAddress is where the routine will look for its block.
func (p Placement) BlockAddress() uint32 {
	return p.Base + uint32(stub.BlockOffset)
}

// End is the first address past the image.
func (p Placement) End() uint64 {
	return uint64(p.Base) + uint64(p.Size)
}

// Check verifies the placement is word aligned and lies inside
// [regionBase, regionBase+regionSize).
func (p Placement) Check(regionBase, regionSize uint32) error {
	if p.Base%4 != 0 {
		return fmt.Errorf("load address 0x%08x is not word aligned", p.Base)
	}
	if p.Base < regionBase || p.End() > uint64(regionBase)+uint64(regionSize) {
		return fmt.Errorf("image 0x%08x-0x%08x does not fit in 0x%08x-0x%08x",
			p.Base, p.End(), regionBase, uint64(regionBase)+uint64(regionSize))
	}
	return nil
}
