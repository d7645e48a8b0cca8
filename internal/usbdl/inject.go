package usbdl

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/image"
)

// Inject builds an image for block, writes it at base and jumps to it.
// A zero base means the start of the SoC's SRAM. The image must fit in
// SRAM.
func (c *Client) Inject(block *argblock.Block, base uint32) (image.Placement, error) {
	if c.soc == nil {
		return image.Placement{}, ErrNoSoC
	}
	img, err := image.Build(block)
	if err != nil {
		return image.Placement{}, err
	}

	if base == 0 {
		base = uint32(c.soc.SRAM.Base)
	}
	p := image.Placement{Base: base, Size: len(img)}
	if err := p.Check(uint32(c.soc.SRAM.Base), uint32(c.soc.SRAM.Size)); err != nil {
		return p, fmt.Errorf("cannot place image in %s SRAM: %w", c.soc.Name, err)
	}

	c.logger.Info("loading image",
		zap.Int("bytes", len(img)),
		zap.Int("ops", len(block.Ops)),
		zap.String("base", fmt.Sprintf("0x%08x", base)),
	)
	if err := c.MemoryWrite(base, img, false); err != nil {
		return p, fmt.Errorf("failed to write image: %w", err)
	}
	if err := c.JumpDA(p.Entry()); err != nil {
		return p, fmt.Errorf("failed to start image: %w", err)
	}
	return p, nil
}
