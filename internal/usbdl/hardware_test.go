//go:build integration

package usbdl

import (
	"os"
	"testing"

	"github.com/muurk/writeseq/internal/plan"
)

// These tests talk to a real SoC in download mode. Set WRITESEQ_BROM_PORT
// to its serial device, e.g. /dev/ttyACM0.
func hardwareClient(t *testing.T) *Client {
	t.Helper()
	path := os.Getenv("WRITESEQ_BROM_PORT")
	if path == "" {
		t.Skip("WRITESEQ_BROM_PORT not set")
	}
	port, err := OpenPort(path, DefaultTimeout)
	if err != nil {
		t.Fatalf("OpenPort(%s) error = %v", path, err)
	}
	t.Cleanup(func() { port.Close() })

	cat, err := plan.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	c := New(port, nil)
	if _, err := c.Detect(cat); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	return c
}

func TestHardware_Identify(t *testing.T) {
	c := hardwareClient(t)

	if _, err := c.HWSWVersion(); err != nil {
		t.Errorf("HWSWVersion() error = %v", err)
	}
	cfg, err := c.TargetConfig()
	if err != nil {
		t.Fatalf("TargetConfig() error = %v", err)
	}
	t.Logf("%s: %s", c.SoC().Name, cfg)
}

func TestHardware_SRAMRoundTrip(t *testing.T) {
	c := hardwareClient(t)
	addr := uint32(c.SoC().SRAM.Base) + uint32(c.SoC().SRAM.Size) - 0x100

	want := []uint32{0x1234_5678, 0x9abc_def0}
	if err := c.Write32(addr, want...); err != nil {
		t.Fatalf("Write32() error = %v", err)
	}
	got, err := c.Read32(addr, uint32(len(want)))
	if err != nil {
		t.Fatalf("Read32() error = %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = 0x%08x, want 0x%08x", i, got[i], want[i])
		}
	}
}
