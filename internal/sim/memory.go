package sim

import (
	"encoding/binary"
	"sort"
)

const (
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

type page [pageSize]byte

// Region is a named mapped range.
type Region struct {
	Name string
	Base uint32
	Size uint32
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

// memory is a paged, little-endian byte memory. Accesses to pages that
// were never mapped fault.
type memory struct {
	pages   map[uint32]*page
	regions []Region
}

func newMemory() *memory {
	return &memory{pages: make(map[uint32]*page)}
}

func (m *memory) mapRegion(r Region) {
	if r.Size == 0 {
		return
	}
	first := r.Base >> pageBits
	last := uint32((r.End() - 1) >> pageBits)
	for p := first; ; p++ {
		if _, ok := m.pages[p]; !ok {
			m.pages[p] = new(page)
		}
		if p == last {
			break
		}
	}
	m.regions = append(m.regions, r)
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].Base < m.regions[j].Base })
}

func (m *memory) page(addr uint32) (*page, bool) {
	p, ok := m.pages[addr>>pageBits]
	return p, ok
}

func (m *memory) read8(addr uint32) (byte, bool) {
	p, ok := m.page(addr)
	if !ok {
		return 0, false
	}
	return p[addr&pageMask], true
}

func (m *memory) write8(addr uint32, v byte) bool {
	p, ok := m.page(addr)
	if !ok {
		return false
	}
	p[addr&pageMask] = v
	return true
}

func (m *memory) read32(addr uint32) (uint32, bool) {
	if addr&pageMask <= pageSize-4 {
		p, ok := m.page(addr)
		if !ok {
			return 0, false
		}
		off := addr & pageMask
		return binary.LittleEndian.Uint32(p[off : off+4]), true
	}
	var buf [4]byte
	for i := range buf {
		b, ok := m.read8(addr + uint32(i))
		if !ok {
			return 0, false
		}
		buf[i] = b
	}
	return binary.LittleEndian.Uint32(buf[:]), true
}

func (m *memory) write32(addr uint32, v uint32) bool {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	for i := range buf {
		if _, ok := m.page(addr + uint32(i)); !ok {
			return false
		}
	}
	for i := range buf {
		m.write8(addr+uint32(i), buf[i])
	}
	return true
}
