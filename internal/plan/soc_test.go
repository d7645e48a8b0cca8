package plan

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(cat.SoCs) != 4 {
		t.Fatalf("expected 4 SoCs in catalog, got %d", len(cat.SoCs))
	}

	cat2, err := LoadCatalog()
	if err != nil {
		t.Fatalf("second LoadCatalog failed: %v", err)
	}
	if cat != cat2 {
		t.Error("expected LoadCatalog to return same instance")
	}
}

func TestCatalog_Profiles(t *testing.T) {
	cat, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	tests := []struct {
		name       string
		hwCode     uint16
		sramSize   uint64
		l2Size     uint64
		cqdma      uint64
		boundsOps  int
		firstPatch uint64
	}{
		{name: "mt6797", hwCode: 0x0279, sramSize: 0x30000, l2Size: 0x100000, cqdma: 0x10212C00, boundsOps: 2, firstPatch: 0x0010276C},
		{name: "mt6735", hwCode: 0x0321, sramSize: 0x10000, l2Size: 0x40000, cqdma: 0x10217C00, boundsOps: 2, firstPatch: 0x00102760},
		{name: "mt6737m", hwCode: 0x0335, sramSize: 0x10000, l2Size: 0x40000, cqdma: 0x10217C00, boundsOps: 2, firstPatch: 0x00102760},
		{name: "mt8163", hwCode: 0x8163, sramSize: 0x10000, l2Size: 0x40000, cqdma: 0x10212C00, boundsOps: 1, firstPatch: 0x00102868},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			soc, ok := cat.Get(tt.name)
			if !ok {
				t.Fatalf("expected to find %s", tt.name)
			}
			byCode, ok := cat.ByHWCode(tt.hwCode)
			if !ok || byCode != soc {
				t.Errorf("ByHWCode(0x%04x) did not return %s", tt.hwCode, tt.name)
			}
			if uint64(soc.SRAM.Base) != 0x100000 || uint64(soc.SRAM.Size) != tt.sramSize {
				t.Errorf("sram = 0x%x+0x%x", uint64(soc.SRAM.Base), uint64(soc.SRAM.Size))
			}
			if uint64(soc.L2SRAM.Size) != tt.l2Size {
				t.Errorf("l2_sram size = 0x%x, want 0x%x", uint64(soc.L2SRAM.Size), tt.l2Size)
			}
			if uint64(soc.CQDMABase) != tt.cqdma {
				t.Errorf("cqdma_base = 0x%x, want 0x%x", uint64(soc.CQDMABase), tt.cqdma)
			}
			if uint64(soc.TmpAddr) != 0x110001A0 {
				t.Errorf("tmp_addr = 0x%x", uint64(soc.TmpAddr))
			}

			bounds := soc.PatchSets["bounds_check"]
			if len(bounds) != tt.boundsOps {
				t.Fatalf("bounds_check has %d ops, want %d", len(bounds), tt.boundsOps)
			}
			if uint64(bounds[0].Address) != tt.firstPatch || bounds[0].Value != 0 {
				t.Errorf("first bounds patch = %+v", bounds[0])
			}
			wdt := soc.PatchSets["watchdog"]
			if len(wdt) != 1 || uint64(wdt[0].Address) != 0x10007000 || uint64(wdt[0].Value) != 0x22000000 {
				t.Errorf("watchdog patch = %+v", wdt)
			}
		})
	}
}

func TestCatalog_GetIgnoresCase(t *testing.T) {
	cat, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if _, ok := cat.Get("MT6735"); !ok {
		t.Error("expected case-insensitive lookup")
	}
}

func TestCatalog_LookupUnknown(t *testing.T) {
	cat, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	_, err = cat.Lookup("mt9999")
	var unknown *UnknownSoCError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownSoCError, got %v", err)
	}
	if !strings.Contains(err.Error(), "mt6797") {
		t.Errorf("error should list available SoCs: %v", err)
	}
}

func TestParseCatalog_Duplicate(t *testing.T) {
	doc := []byte(`
socs:
  - name: a
    hw_code: 1
  - name: A
    hw_code: 2
`)
	if _, err := ParseCatalog(doc); err == nil {
		t.Error("expected duplicate name to be rejected")
	}
}

func TestSoC_FormatMemoryMap(t *testing.T) {
	cat, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	soc, _ := cat.Get("mt8163")
	out := soc.FormatMemoryMap()
	for _, want := range []string{"0x00100000-0x00110000", "0x10212c00", "0x110001a0"} {
		if !strings.Contains(out, want) {
			t.Errorf("memory map missing %q:\n%s", want, out)
		}
	}
	if !strings.HasPrefix(soc.String(), "MT8163 (hw_code 0x8163)") {
		t.Errorf("String() = %q", soc.String())
	}
}

func TestSoC_Region(t *testing.T) {
	cat, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	soc, _ := cat.Get("mt6797")

	tests := []struct {
		name     string
		wantBase uint64
		wantSize uint64
	}{
		{name: "brom", wantBase: 0, wantSize: 0x14000},
		{name: "efuse", wantBase: 0x10206000, wantSize: EfuseSize},
		{name: "SRAM", wantBase: 0x00100000, wantSize: 0x30000},
		{name: "l2_sram", wantBase: 0x00200000, wantSize: 0x100000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := soc.Region(tt.name)
			if err != nil {
				t.Fatalf("Region() error = %v", err)
			}
			if uint64(r.Base) != tt.wantBase || uint64(r.Size) != tt.wantSize {
				t.Errorf("Region() = 0x%x+0x%x, want 0x%x+0x%x", uint64(r.Base), uint64(r.Size), tt.wantBase, tt.wantSize)
			}
		})
	}

	if _, err := soc.Region("dram"); err == nil || !strings.Contains(err.Error(), "l2_sram") {
		t.Errorf("Region(dram) error = %v, want the known names listed", err)
	}
}
