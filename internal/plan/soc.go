package plan

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/socs.yaml
var socsYAML []byte

// Range is a base and size in the SoC's physical address space.
type Range struct {
	Base Number `yaml:"base"`
	Size Number `yaml:"size"`
}

// End returns the first address past the range.
func (r Range) End() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

// Contains reports whether addr lies inside the range.
func (r Range) Contains(addr uint64) bool {
	return addr >= uint64(r.Base) && addr < r.End()
}

// Patch sets the tools handle specially.
const (
	// PatchBoundsCheck clears the boot ROM's address range checks. Its
	// words are only reachable through CQDMA until it has been applied.
	PatchBoundsCheck = "bounds_check"
	PatchWatchdog    = "watchdog"
)

// EfuseSize is the span of the eFuse controller dumped as the "efuse"
// region.
const EfuseSize = 0x1000

// RegionNames lists the names Region accepts.
var RegionNames = []string{"brom", "efuse", "sram", "l2_sram"}

// SoC describes one boot ROM target.
type SoC struct {
	// Name is the catalog key, lower case (e.g. "mt6735")
	Name string `yaml:"name"`

	// HWCode is the value returned by GET_HW_CODE
	HWCode Number `yaml:"hw_code"`

	Description string `yaml:"description"`

	BROM   Range `yaml:"brom"`
	SRAM   Range `yaml:"sram"`
	L2SRAM Range `yaml:"l2_sram"`

	// EfuseC is the eFuse controller base
	EfuseC Number `yaml:"efusec"`

	// CQDMABase is the command queue DMA engine used for indirect access
	CQDMABase Number `yaml:"cqdma_base"`

	// TmpAddr is a scratch word the DMA engine copies through
	TmpAddr Number `yaml:"tmp_addr"`

	// Watchdog is the WDT mode register
	Watchdog Number `yaml:"watchdog"`

	// PatchSets are named groups of stores a plan can pull in
	PatchSets map[string][]OpSpec `yaml:"patch_sets"`
}

// PatchSetNames returns the patch set names in sorted order.
func (s *SoC) PatchSetNames() []string {
	names := make([]string, 0, len(s.PatchSets))
	for name := range s.PatchSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Region returns the named memory range.
func (s *SoC) Region(name string) (Range, error) {
	switch strings.ToLower(name) {
	case "brom":
		return s.BROM, nil
	case "efuse", "efusec":
		return Range{Base: s.EfuseC, Size: EfuseSize}, nil
	case "sram":
		return s.SRAM, nil
	case "l2_sram", "l2sram":
		return s.L2SRAM, nil
	}
	return Range{}, fmt.Errorf("unknown region %q (known: %s)", name, strings.Join(RegionNames, ", "))
}

// String returns a one-line summary.
func (s *SoC) String() string {
	return fmt.Sprintf("%s (hw_code 0x%04x) - %s", strings.ToUpper(s.Name), uint64(s.HWCode), s.Description)
}

// FormatMemoryMap returns the address layout as a printable block.
func (s *SoC) FormatMemoryMap() string {
	return fmt.Sprintf(`Memory Map:
  brom:    0x%08x-0x%08x
  sram:    0x%08x-0x%08x
  l2_sram: 0x%08x-0x%08x

Registers:
  efusec:     0x%08x
  cqdma_base: 0x%08x
  tmp_addr:   0x%08x
  watchdog:   0x%08x`,
		uint64(s.BROM.Base), s.BROM.End(),
		uint64(s.SRAM.Base), s.SRAM.End(),
		uint64(s.L2SRAM.Base), s.L2SRAM.End(),
		uint64(s.EfuseC),
		uint64(s.CQDMABase),
		uint64(s.TmpAddr),
		uint64(s.Watchdog),
	)
}

// Catalog holds the known SoC profiles.
type Catalog struct {
	// SoCs in catalog order
	SoCs []*SoC

	byName map[string]*SoC
	byCode map[Number]*SoC
}

type catalogContainer struct {
	SoCs []*SoC `yaml:"socs"`
}

var (
	globalCatalog     *Catalog
	globalCatalogOnce sync.Once
	globalCatalogErr  error
)

// LoadCatalog returns the embedded SoC catalog. It is parsed once.
func LoadCatalog() (*Catalog, error) {
	globalCatalogOnce.Do(func() {
		globalCatalog, globalCatalogErr = ParseCatalog(socsYAML)
	})
	return globalCatalog, globalCatalogErr
}

// ParseCatalog parses a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var container catalogContainer
	if err := yaml.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("failed to parse SoC catalog: %w", err)
	}

	c := &Catalog{
		SoCs:   container.SoCs,
		byName: make(map[string]*SoC),
		byCode: make(map[Number]*SoC),
	}
	for _, soc := range c.SoCs {
		key := strings.ToLower(soc.Name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate SoC %q in catalog", soc.Name)
		}
		c.byName[key] = soc
		c.byCode[soc.HWCode] = soc
	}
	return c, nil
}

// Get looks up a SoC by name, ignoring case.
func (c *Catalog) Get(name string) (*SoC, bool) {
	soc, ok := c.byName[strings.ToLower(name)]
	return soc, ok
}

// ByHWCode looks up a SoC by the code the boot ROM reports.
func (c *Catalog) ByHWCode(code uint16) (*SoC, bool) {
	soc, ok := c.byCode[Number(code)]
	return soc, ok
}

// Names returns all SoC names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.SoCs))
	for _, soc := range c.SoCs {
		names = append(names, soc.Name)
	}
	return names
}

// Lookup returns the named SoC or an UnknownSoCError.
func (c *Catalog) Lookup(name string) (*SoC, error) {
	if soc, ok := c.Get(name); ok {
		return soc, nil
	}
	return nil, &UnknownSoCError{Name: name, Available: c.Names()}
}
