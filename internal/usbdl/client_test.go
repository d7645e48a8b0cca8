package usbdl

import (
	"bytes"
	"errors"
	"testing"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/executor"
	"github.com/muurk/writeseq/internal/image"
	"github.com/muurk/writeseq/internal/plan"
)

func detected(t *testing.T, dev *fakeBROM) *Client {
	t.Helper()
	cat, err := plan.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	c := New(dev, nil)
	if _, err := c.Detect(cat); err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	return c
}

func TestDetect(t *testing.T) {
	dev := newFakeBROM(0x0321)
	c := detected(t, dev)
	if c.SoC() == nil || c.SoC().Name != "mt6735" {
		t.Errorf("SoC() = %v, want mt6735", c.SoC())
	}
}

func TestDetect_Unknown(t *testing.T) {
	cat, _ := plan.LoadCatalog()
	c := New(newFakeBROM(0x6580), nil)

	_, err := c.Detect(cat)
	var unknown *UnknownHWCodeError
	if !errors.As(err, &unknown) || unknown.HWCode != 0x6580 {
		t.Errorf("Detect() error = %v, want UnknownHWCodeError 0x6580", err)
	}
}

func TestSend_EchoMismatch(t *testing.T) {
	dev := newFakeBROM(0x0321)
	dev.corruptEcho = true
	c := New(dev, nil)

	_, err := c.HWCode()
	var echoErr *EchoError
	if !errors.As(err, &echoErr) {
		t.Fatalf("HWCode() error = %v, want EchoError", err)
	}
	if echoErr.Sent[0] != byte(CmdGetHWCode) {
		t.Errorf("sent = % x", echoErr.Sent)
	}
}

func TestRecv_ShortRead(t *testing.T) {
	c := New(&bytes.Buffer{}, nil)
	_, err := c.HWCode()
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Errorf("HWCode() error = %v, want TransportError", err)
	}
}

func TestStatusHandling(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		status  uint16
		run     func(c *Client) error
		wantErr bool
	}{
		{
			name: "read32 requires zero", cmd: CmdRead32, status: 1, wantErr: true,
			run: func(c *Client) error { _, err := c.Read32(0x1000, 1); return err },
		},
		{
			name: "hw code requires zero", cmd: CmdGetHWCode, status: 2, wantErr: true,
			run: func(c *Client) error { _, err := c.HWCode(); return err },
		},
		{
			name: "hw sw version requires zero", cmd: CmdGetHWSWVer, status: 1, wantErr: true,
			run: func(c *Client) error { _, err := c.HWSWVersion(); return err },
		},
		{
			name: "c8 requires zero", cmd: CmdC8, status: 1, wantErr: true,
			run: func(c *Client) error { _, err := c.C8(0xB1); return err },
		},
		{
			name: "write32 accepts small status", cmd: CmdWrite32, status: 0xff,
			run: func(c *Client) error { return c.Write32(0x1000, 1) },
		},
		{
			name: "write32 rejects large status", cmd: CmdWrite32, status: 0x100, wantErr: true,
			run: func(c *Client) error { return c.Write32(0x1000, 1) },
		},
		{
			name: "jump accepts small status", cmd: CmdJumpDA, status: 0x10,
			run: func(c *Client) error { return c.JumpDA(0x100000) },
		},
		{
			name: "target config accepts small status", cmd: CmdGetTargetConfig, status: 1,
			run: func(c *Client) error { _, err := c.TargetConfig(); return err },
		},
		{
			name: "target config rejects large status", cmd: CmdGetTargetConfig, status: 0x1d0d, wantErr: true,
			run: func(c *Client) error { _, err := c.TargetConfig(); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeBROM(0x0321)
			dev.status[tt.cmd] = tt.status
			err := tt.run(New(dev, nil))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.Status != tt.status || statusErr.Command != tt.cmd {
					t.Errorf("error = %v, want StatusError %s 0x%04x", err, tt.cmd, tt.status)
				}
			}
		})
	}
}

func TestRead32Write32(t *testing.T) {
	dev := newFakeBROM(0x0321)
	c := New(dev, nil)

	if err := c.Write32(0x1000, 0xAA, 0xBB, 0xCC); err != nil {
		t.Fatalf("Write32 failed: %v", err)
	}
	if dev.mem[0x1000] != 0xAA || dev.mem[0x1004] != 0xBB || dev.mem[0x1008] != 0xCC {
		t.Errorf("device memory = %v", dev.mem)
	}

	words, err := c.Read32(0x1004, 2)
	if err != nil {
		t.Fatalf("Read32 failed: %v", err)
	}
	if len(words) != 2 || words[0] != 0xBB || words[1] != 0xCC {
		t.Errorf("Read32 = %x", words)
	}
}

func TestIdentification(t *testing.T) {
	dev := newFakeBROM(0x8163)
	dev.version = HWSWVersion{HWSubcode: 0x8a00, HWVersion: 0xca00, SWVersion: 0x0001}
	dev.config = ConfigSBC | ConfigDAA
	dev.c8Data = 0x5A
	c := New(dev, nil)

	v, err := c.HWSWVersion()
	if err != nil {
		t.Fatalf("HWSWVersion failed: %v", err)
	}
	if v != dev.version {
		t.Errorf("HWSWVersion = %v, want %v", v, dev.version)
	}

	cfg, err := c.TargetConfig()
	if err != nil {
		t.Fatalf("TargetConfig failed: %v", err)
	}
	if !cfg.SecureBoot() || cfg.SLA() || !cfg.DAA() {
		t.Errorf("TargetConfig = %s", cfg)
	}

	b, err := c.C8(C8DisableCaches)
	if err != nil {
		t.Fatalf("C8 failed: %v", err)
	}
	if b != 0x5A {
		t.Errorf("C8 data = 0x%02x", b)
	}

	if err := c.UART1LogEnable(); err != nil {
		t.Errorf("UART1LogEnable failed: %v", err)
	}
}

func TestC8_InvalidSubcommand(t *testing.T) {
	for _, sub := range []byte{0x00, 0xAF, 0xBB, 0xBF, 0xCD} {
		if ValidC8(sub) {
			t.Errorf("ValidC8(0x%02x) = true", sub)
		}
	}
	dev := newFakeBROM(0x0321)
	if _, err := New(dev, nil).C8(0xBB); err == nil {
		t.Error("expected error for unknown sub-command")
	}
	if dev.out.Len() != 0 || len(dev.in) != 0 {
		t.Error("nothing should be sent for an unknown sub-command")
	}
}

func TestMemoryReadWrite(t *testing.T) {
	dev := newFakeBROM(0x0321)
	c := New(dev, nil)

	if err := c.MemoryWrite(0x2000, []byte{1, 2, 3, 4, 5}, false); err != nil {
		t.Fatalf("MemoryWrite failed: %v", err)
	}
	if dev.mem[0x2000] != 0x04030201 || dev.mem[0x2004] != 0x00000005 {
		t.Errorf("device memory = %08x %08x", dev.mem[0x2000], dev.mem[0x2004])
	}

	data, err := c.MemoryRead(0x2000, 6, false)
	if err != nil {
		t.Fatalf("MemoryRead failed: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3, 4, 5, 0}) {
		t.Errorf("MemoryRead = % x", data)
	}
}

func TestPackWords(t *testing.T) {
	tests := []struct {
		in   []byte
		want []uint32
	}{
		{in: nil, want: []uint32{}},
		{in: []byte{0xEF, 0xBE, 0xAD, 0xDE}, want: []uint32{0xDEADBEEF}},
		{in: []byte{0x01}, want: []uint32{0x01}},
		{in: []byte{1, 0, 0, 0, 2, 0}, want: []uint32{1, 2}},
	}
	for _, tt := range tests {
		got := PackWords(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("PackWords(% x) = %x, want %x", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("PackWords(% x) = %x, want %x", tt.in, got, tt.want)
			}
		}
	}
}

func TestCQDMA(t *testing.T) {
	dev := newFakeBROM(0x0321)
	c := detected(t, dev)
	tmp := uint32(c.SoC().TmpAddr)

	if err := c.CQDMAWrite32(0x0010_2760, 0, 0x1234); err != nil {
		t.Fatalf("CQDMAWrite32 failed: %v", err)
	}
	if dev.mem[0x0010_2764] != 0x1234 {
		t.Errorf("target word = %#x", dev.mem[0x0010_2764])
	}
	if dev.mem[tmp] != cqdmaPoison {
		t.Errorf("scratch word = %#x, want poison", dev.mem[tmp])
	}

	dev.mem[0x0000_0100] = 0xE59FF018
	words, err := c.CQDMARead32(0x0000_0100, 1)
	if err != nil {
		t.Fatalf("CQDMARead32 failed: %v", err)
	}
	if words[0] != 0xE59FF018 {
		t.Errorf("CQDMARead32 = %#x", words[0])
	}
}

func TestCQDMA_NeedsSoC(t *testing.T) {
	c := New(newFakeBROM(0x0321), nil)
	if err := c.CQDMAWrite32(0x1000, 1); !errors.Is(err, ErrNoSoC) {
		t.Errorf("CQDMAWrite32 error = %v, want ErrNoSoC", err)
	}
	if _, err := c.CQDMARead32(0x1000, 1); !errors.Is(err, ErrNoSoC) {
		t.Errorf("CQDMARead32 error = %v, want ErrNoSoC", err)
	}
}

func TestDump(t *testing.T) {
	dev := newFakeBROM(0x0321)
	for i := uint32(0); i < 8; i++ {
		dev.mem[0x3000+4*i] = i
	}
	c := New(dev, nil)

	var calls []int
	data, err := c.Dump(0x3000, 30, 8, false, func(done, total int) {
		calls = append(calls, done)
	})
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if len(data) != 30 {
		t.Errorf("len = %d, want 30", len(data))
	}
	if data[28] != 7 {
		t.Errorf("data[28] = %d, want 7", data[28])
	}
	if len(calls) != 4 || calls[3] != 30 {
		t.Errorf("progress calls = %v", calls)
	}
	if dev.read32 != 4 {
		t.Errorf("READ32 commands = %d, want 4", dev.read32)
	}
}

func TestTarget_ReplaysStores(t *testing.T) {
	dev := newFakeBROM(0x0321)
	c := New(dev, nil)
	block := &argblock.Block{Ops: []argblock.Op{
		{Address: 0x10007000, Value: 0x22000000},
		{Address: 0x1000, Value: 1},
		{Address: 0x1000, Value: 2},
	}}

	report, err := executor.New(c.Target(false), nil).Run(block)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Writes != 3 {
		t.Errorf("writes = %d", report.Writes)
	}
	if dev.mem[0x10007000] != 0x22000000 || dev.mem[0x1000] != 2 {
		t.Errorf("device memory = %v", dev.mem)
	}
	if dev.wrote32 != 3 {
		t.Errorf("WRITE32 commands = %d, want one per op", dev.wrote32)
	}
}

func TestTarget_CallUnsupported(t *testing.T) {
	dev := newFakeBROM(0x0321)
	block := &argblock.Block{Callback: 0x100000, Ops: []argblock.Op{{Address: 0x1000, Value: 1}}}

	_, err := executor.New(New(dev, nil).Target(false), nil).Run(block)
	if !errors.Is(err, ErrCallUnsupported) {
		t.Fatalf("Run error = %v, want ErrCallUnsupported", err)
	}
	if _, touched := dev.mem[0x1000]; touched {
		t.Error("no store should happen after a failed acknowledgment")
	}
}

func TestTarget_RejectsWideWords(t *testing.T) {
	target := New(newFakeBROM(0x0321), nil).Target(false)
	if err := target.StoreWord(0x1_0000_0000, 1); err == nil {
		t.Error("expected error for 64-bit address")
	}
}

func TestInject(t *testing.T) {
	dev := newFakeBROM(0x0321)
	c := detected(t, dev)
	block := &argblock.Block{Callback: 0x4001, Ops: []argblock.Op{{Address: 0x1000, Value: 0xAA}}}

	p, err := c.Inject(block, 0)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if p.Base != 0x100000 {
		t.Errorf("base = %#x, want SRAM start", p.Base)
	}
	if len(dev.jumps) != 1 || dev.jumps[0] != 0x100000 {
		t.Errorf("jumps = %x", dev.jumps)
	}

	img, _ := image.Build(block)
	words := PackWords(img)
	for i, w := range words {
		if got := dev.mem[0x100000+uint32(4*i)]; got != w {
			t.Fatalf("image word %d = %#x, want %#x", i, got, w)
		}
	}
}

func TestInject_DoesNotFit(t *testing.T) {
	dev := newFakeBROM(0x0321)
	c := detected(t, dev)
	block := &argblock.Block{Ops: []argblock.Op{{Address: 0x1000, Value: 1}}}

	if _, err := c.Inject(block, 0x0010_FFF0); err == nil {
		t.Fatal("expected placement error")
	}
	if len(dev.jumps) != 0 {
		t.Error("must not jump when the image does not fit")
	}
}
