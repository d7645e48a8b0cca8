package usbdl

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/writeseq/internal/plan"
)

// Unlock clears the boot ROM's bounds check by writing the SoC's
// bounds_check patch set through CQDMA. For the rest of the session
// READ32 and WRITE32 reach memory they would otherwise refuse. It returns
// the number of words written, which is short of the patch set on error.
func (c *Client) Unlock() (int, error) {
	if c.soc == nil {
		return 0, ErrNoSoC
	}
	ops := c.soc.PatchSets[plan.PatchBoundsCheck]
	if len(ops) == 0 {
		return 0, fmt.Errorf("%s has no %s patch set", c.soc.Name, plan.PatchBoundsCheck)
	}
	for i, p := range ops {
		op := p.Op()
		if err := c.CQDMAWrite32(uint32(op.Address), uint32(op.Value)); err != nil {
			return i, fmt.Errorf("bounds check word %s: %w", op.Address.Hex(), err)
		}
	}
	c.logger.Info("boot ROM bounds check cleared",
		zap.String("soc", c.soc.Name),
		zap.Int("words", len(ops)),
	)
	return len(ops), nil
}

// DisableCaches runs C8 sub-command B1.
func (c *Client) DisableCaches() error {
	_, err := c.C8(C8DisableCaches)
	return err
}
