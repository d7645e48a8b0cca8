package usbdl

import (
	"errors"
	"testing"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/executor"
	"github.com/muurk/writeseq/internal/plan"
)

// lockedMT6735 is a device whose bounds check words refuse WRITE32 and
// still hold their non-zero boot values.
func lockedMT6735(t *testing.T) (*fakeBROM, *Client) {
	t.Helper()
	dev := newFakeBROM(0x0321)
	c := detected(t, dev)
	for _, p := range c.SoC().PatchSets[plan.PatchBoundsCheck] {
		addr := uint32(p.Address)
		dev.protected[addr] = true
		dev.mem[addr] = 1
	}
	return dev, c
}

func TestUnlock(t *testing.T) {
	dev, c := lockedMT6735(t)

	var status *StatusError
	if err := c.Write32(0x0010_2760, 0); !errors.As(err, &status) {
		t.Fatalf("Write32 to a bounds check word error = %v, want StatusError", err)
	}

	n, err := c.Unlock()
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Unlock wrote %d words, want 2", n)
	}
	for addr := range dev.protected {
		if dev.mem[addr] != 0 {
			t.Errorf("bounds check word 0x%08x = %#x, want 0", addr, dev.mem[addr])
		}
	}
}

func TestUnlock_NeedsSoC(t *testing.T) {
	if _, err := New(newFakeBROM(0x0321), nil).Unlock(); !errors.Is(err, ErrNoSoC) {
		t.Errorf("Unlock error = %v, want ErrNoSoC", err)
	}
}

func TestTarget_RoutesBoundsCheckThroughCQDMA(t *testing.T) {
	dev, c := lockedMT6735(t)
	block := &argblock.Block{Ops: []argblock.Op{
		{Address: 0x0010_2760, Value: 0},
		{Address: 0x0010_5704, Value: 0},
		{Address: 0x1000, Value: 5},
	}}

	if _, err := executor.New(c.Target(false), nil).Run(block); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if dev.mem[0x0010_2760] != 0 || dev.mem[0x0010_5704] != 0 || dev.mem[0x1000] != 5 {
		t.Errorf("device memory = %v", dev.mem)
	}
	// Each DMA write is seven WRITE32 commands; the plain store is one.
	if dev.wrote32 != 2*7+1 {
		t.Errorf("WRITE32 commands = %d, want %d", dev.wrote32, 2*7+1)
	}
}

func TestDisableCaches(t *testing.T) {
	dev := newFakeBROM(0x0321)
	if err := New(dev, nil).DisableCaches(); err != nil {
		t.Fatalf("DisableCaches failed: %v", err)
	}
	if len(dev.c8Subs) != 1 || dev.c8Subs[0] != 0xB1 {
		t.Errorf("C8 sub-commands = % x, want b1", dev.c8Subs)
	}
}
