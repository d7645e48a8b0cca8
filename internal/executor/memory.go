package executor

import (
	"fmt"
	"sort"

	"github.com/muurk/writeseq/internal/argblock"
)

// EventKind distinguishes journal entries.
type EventKind int

const (
	EventStore EventKind = iota
	EventCall
)

// Event is one access recorded by Memory.
type Event struct {
	Kind    EventKind
	Address argblock.Word
	Value   argblock.Word    // EventStore only
	Args    [3]argblock.Word // EventCall only
}

// HostFunc is a host function reachable through Memory.Call.
type HostFunc func(args [3]argblock.Word)

// Region is a mapped address range [Base, Base+Size).
type Region struct {
	Name string
	Base argblock.Word
	Size argblock.Word
}

func (r Region) contains(addr argblock.Word) bool {
	return addr >= r.Base && addr-r.Base < r.Size
}

// UnmappedError is the fault Memory raises for an access outside every
// mapped region, or a call to an address with no host function.
type UnmappedError struct {
	Address argblock.Word
	Call    bool
}

func (e *UnmappedError) Error() string {
	if e.Call {
		return fmt.Sprintf("no function mapped at %s", e.Address.Hex())
	}
	return fmt.Sprintf("store to unmapped address %s", e.Address.Hex())
}

// Memory is a sparse word-addressed memory implementing Target. With no
// regions mapped every address is writable. It is not safe for
// concurrent use.
type Memory struct {
	words   map[argblock.Word]argblock.Word
	funcs   map[argblock.Word]HostFunc
	regions []Region
	journal []Event
}

// NewMemory returns an empty memory with every address writable.
func NewMemory() *Memory {
	return &Memory{
		words: make(map[argblock.Word]argblock.Word),
		funcs: make(map[argblock.Word]HostFunc),
	}
}

// Map restricts stores to the union of mapped regions.
func (m *Memory) Map(r Region) {
	m.regions = append(m.regions, r)
}

// Register makes fn callable at addr.
func (m *Memory) Register(addr argblock.Word, fn HostFunc) {
	m.funcs[addr] = fn
}

// StoreWord implements Target.
func (m *Memory) StoreWord(addr, value argblock.Word) error {
	if !m.mapped(addr) {
		return &UnmappedError{Address: addr}
	}
	m.words[addr] = value
	m.journal = append(m.journal, Event{Kind: EventStore, Address: addr, Value: value})
	return nil
}

// Call implements Target.
func (m *Memory) Call(addr argblock.Word, args [3]argblock.Word) error {
	fn, ok := m.funcs[addr]
	if !ok {
		return &UnmappedError{Address: addr, Call: true}
	}
	m.journal = append(m.journal, Event{Kind: EventCall, Address: addr, Args: args})
	fn(args)
	return nil
}

// Load returns the word at addr and whether it was ever stored.
func (m *Memory) Load(addr argblock.Word) (argblock.Word, bool) {
	v, ok := m.words[addr]
	return v, ok
}

// Journal returns the recorded accesses in order.
func (m *Memory) Journal() []Event {
	return m.journal
}

// ResetJournal clears the journal, keeping memory contents.
func (m *Memory) ResetJournal() {
	m.journal = nil
}

// Snapshot copies the current contents.
func (m *Memory) Snapshot() map[argblock.Word]argblock.Word {
	snap := make(map[argblock.Word]argblock.Word, len(m.words))
	for k, v := range m.words {
		snap[k] = v
	}
	return snap
}

// Addresses returns every written address in ascending order.
func (m *Memory) Addresses() []argblock.Word {
	addrs := make([]argblock.Word, 0, len(m.words))
	for a := range m.words {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

func (m *Memory) mapped(addr argblock.Word) bool {
	if len(m.regions) == 0 {
		return true
	}
	for _, r := range m.regions {
		if r.contains(addr) {
			return true
		}
	}
	return false
}
