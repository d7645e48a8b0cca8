package usbdl

import (
	"fmt"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/plan"
)

// Target replays stores with WRITE32, or through the CQDMA engine when
// the boot ROM blocks the address range.
type Target struct {
	client *Client
	cqdma  bool
	// viaDMA holds the SoC's bounds_check words, which WRITE32 cannot
	// reach while the check they implement is still active.
	viaDMA map[argblock.Word]bool
}

// Target returns a store target backed by this client. With cqdma set
// every store goes through the DMA engine; otherwise only stores to the
// detected SoC's bounds_check words do.
func (c *Client) Target(cqdma bool) *Target {
	t := &Target{client: c, cqdma: cqdma}
	if c.soc != nil {
		ops := c.soc.PatchSets[plan.PatchBoundsCheck]
		t.viaDMA = make(map[argblock.Word]bool, len(ops))
		for _, p := range ops {
			t.viaDMA[p.Op().Address] = true
		}
	}
	return t
}

// StoreWord writes one 32-bit word.
func (t *Target) StoreWord(addr, value argblock.Word) error {
	if addr > 0xFFFF_FFFF || value > 0xFFFF_FFFF {
		return fmt.Errorf("store %s = %s does not fit the 32-bit bus", addr.Hex(), value.Hex())
	}
	if t.cqdma || t.viaDMA[addr] {
		return t.client.CQDMAWrite32(uint32(addr), uint32(value))
	}
	return t.client.Write32(uint32(addr), uint32(value))
}

// Call always fails with ErrCallUnsupported.
func (t *Target) Call(addr argblock.Word, args [3]argblock.Word) error {
	return ErrCallUnsupported
}
