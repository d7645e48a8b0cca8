package sim

import (
	"fmt"

	"go.uber.org/zap"
)

// Register numbers with special roles.
const (
	SP = 13
	LR = 14
	PC = 15
)

// ReturnAddress is loaded into lr by Call. Execution stops when the pc
// reaches it, before any fetch, so memory mapped there stays usable as
// data.
const ReturnAddress uint32 = 0xFFFF_FFF0

// DefaultMaxSteps bounds a single Call.
const DefaultMaxSteps = 1 << 22

// scratchPoison is written into caller-saved registers after a host call.
const scratchPoison uint32 = 0xDEAD_BEEF

// HostFunc is a Go function reachable from guest code. It receives r0-r3
// and returns the value placed in r0.
type HostFunc func(m *Machine, args [4]uint32) uint32

// Registers is a snapshot of r0-r15.
type Registers [16]uint32

// Changed returns the registers among regs whose values differ.
func (r Registers) Changed(other Registers, regs ...int) []int {
	var changed []int
	for _, n := range regs {
		if r[n] != other[n] {
			changed = append(changed, n)
		}
	}
	return changed
}

// CalleeSaved lists r4-r11 and sp, which AAPCS requires a function to
// preserve.
var CalleeSaved = []int{4, 5, 6, 7, 8, 9, 10, 11, SP}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for call and fault events.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(m *Machine) {
		m.maxSteps = n
	}
}

// WithTrace installs a hook called before each instruction executes.
func WithTrace(fn func(pc, inst uint32)) Option {
	return func(m *Machine) {
		m.trace = fn
	}
}

// Machine is a minimal ARMv7 A32 interpreter. It implements the data
// processing, single and multiple load/store, branch and interworking
// branch forms the replay routine needs, in ARM state only.
type Machine struct {
	R Registers

	n, z, c, v bool

	mem      *memory
	host     map[uint32]HostFunc
	logger   *zap.Logger
	trace    func(pc, inst uint32)
	maxSteps int
	steps    int
}

// New creates a machine with no memory mapped.
func New(opts ...Option) *Machine {
	m := &Machine{
		mem:      newMemory(),
		host:     make(map[uint32]HostFunc),
		logger:   zap.NewNop(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map makes [base, base+size) accessible. Mapping is page granular.
func (m *Machine) Map(name string, base, size uint32) error {
	r := Region{Name: name, Base: base, Size: size}
	if r.End() > 1<<32 {
		return fmt.Errorf("region %s 0x%08x+0x%x wraps the address space", name, base, size)
	}
	m.mem.mapRegion(r)
	return nil
}

// Regions returns the mapped regions sorted by base.
func (m *Machine) Regions() []Region {
	out := make([]Region, len(m.mem.regions))
	copy(out, m.mem.regions)
	return out
}

// Register makes fn callable at addr. The Thumb bit of addr is ignored.
func (m *Machine) Register(addr uint32, fn HostFunc) {
	m.host[addr&^1] = fn
}

// Load copies data into memory at addr.
func (m *Machine) Load(addr uint32, data []byte) error {
	for i, b := range data {
		if !m.mem.write8(addr+uint32(i), b) {
			return &Fault{Kind: FaultWrite, PC: m.R[PC], Addr: addr + uint32(i)}
		}
	}
	return nil
}

// ReadBytes copies n bytes starting at addr.
func (m *Machine) ReadBytes(addr uint32, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := range out {
		b, ok := m.mem.read8(addr + uint32(i))
		if !ok {
			return nil, &Fault{Kind: FaultRead, PC: m.R[PC], Addr: addr + uint32(i)}
		}
		out[i] = b
	}
	return out, nil
}

// Read32 reads a little-endian word.
func (m *Machine) Read32(addr uint32) (uint32, error) {
	v, ok := m.mem.read32(addr)
	if !ok {
		return 0, &Fault{Kind: FaultRead, PC: m.R[PC], Addr: addr}
	}
	return v, nil
}

// Write32 writes a little-endian word.
func (m *Machine) Write32(addr, value uint32) error {
	if !m.mem.write32(addr, value) {
		return &Fault{Kind: FaultWrite, PC: m.R[PC], Addr: addr}
	}
	return nil
}

// Snapshot returns the current register file.
func (m *Machine) Snapshot() Registers {
	return m.R
}

// Steps returns the number of instructions executed by the last Call.
func (m *Machine) Steps() int {
	return m.steps
}

// Call runs the function at entry with up to four arguments in r0-r3,
// returning when it branches back to ReturnAddress. Registers not used
// for arguments keep whatever the caller left in them.
func (m *Machine) Call(entry uint32, args ...uint32) error {
	if len(args) > 4 {
		return fmt.Errorf("at most 4 register arguments, got %d", len(args))
	}
	for i, a := range args {
		m.R[i] = a
	}
	m.R[LR] = ReturnAddress
	m.R[PC] = entry
	m.steps = 0

	m.logger.Debug("sim call",
		zap.String("entry", fmt.Sprintf("0x%08x", entry)),
		zap.Int("args", len(args)),
	)

	for {
		pc := m.R[PC]
		if pc == ReturnAddress {
			m.logger.Debug("sim return", zap.Int("steps", m.steps))
			return nil
		}

		if fn, ok := m.host[pc&^1]; ok {
			m.callHost(fn)
			continue
		}

		if pc&1 != 0 {
			return m.fault(&Fault{Kind: FaultThumb, PC: pc, Addr: pc})
		}

		if m.steps >= m.maxSteps {
			return m.fault(&Fault{Kind: FaultStepLimit, PC: pc})
		}
		m.steps++

		if err := m.Step(); err != nil {
			return m.fault(err)
		}
	}
}

func (m *Machine) callHost(fn HostFunc) {
	args := [4]uint32{m.R[0], m.R[1], m.R[2], m.R[3]}
	ret := fn(m, args)
	m.R[0] = ret
	m.R[1], m.R[2], m.R[3], m.R[12] = scratchPoison, scratchPoison, scratchPoison, scratchPoison
	m.R[PC] = m.R[LR]
}

func (m *Machine) fault(err error) error {
	m.logger.Warn("sim fault", zap.Error(err))
	return err
}
