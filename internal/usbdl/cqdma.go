package usbdl

// CQDMA register offsets from the engine base.
const (
	cqdmaStart = 0x08
	cqdmaStop  = 0x0C
	cqdmaSrc   = 0x1C
	cqdmaDst   = 0x20
	cqdmaLen   = 0x24
)

// cqdmaPoison is left in the scratch word after every DMA write so a
// transfer that silently did nothing reads back as garbage.
const cqdmaPoison uint32 = 0xc0ffeeee

// dma copies one word from src to dst through the SoC's CQDMA engine.
func (c *Client) dma(src, dst uint32) error {
	base := uint32(c.soc.CQDMABase)
	steps := []struct {
		reg, val uint32
	}{
		{cqdmaSrc, src},
		{cqdmaDst, dst},
		{cqdmaLen, 4},
		{cqdmaStart, 1},
		{cqdmaStop, 1},
	}
	for _, s := range steps {
		if err := c.Write32(base+s.reg, s.val); err != nil {
			return err
		}
	}
	return nil
}

// CQDMARead32 reads count words starting at addr by copying each through
// the scratch word. It reaches memory the boot ROM refuses to READ32.
func (c *Client) CQDMARead32(addr uint32, count uint32) ([]uint32, error) {
	if c.soc == nil {
		return nil, ErrNoSoC
	}
	tmp := uint32(c.soc.TmpAddr)
	words := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		if err := c.dma(addr+i*4, tmp); err != nil {
			return nil, err
		}
		w, err := c.Read32(tmp, 1)
		if err != nil {
			return nil, err
		}
		words = append(words, w[0])
	}
	return words, nil
}

// CQDMAWrite32 writes words starting at addr through the scratch word.
func (c *Client) CQDMAWrite32(addr uint32, words ...uint32) error {
	if c.soc == nil {
		return ErrNoSoC
	}
	tmp := uint32(c.soc.TmpAddr)
	for i, w := range words {
		if err := c.Write32(tmp, w); err != nil {
			return err
		}
		if err := c.dma(tmp, addr+uint32(i)*4); err != nil {
			return err
		}
		if err := c.Write32(tmp, cqdmaPoison); err != nil {
			return err
		}
	}
	return nil
}
