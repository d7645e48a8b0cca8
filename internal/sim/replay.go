package sim

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/executor"
	"github.com/muurk/writeseq/internal/image"
)

// Default placement for Replay.
const (
	DefaultBase     uint32 = 0x0020_0000
	DefaultStackTop uint32 = 0x0030_0000
	stackSize       uint32 = 0x1000
)

// Setup places a replay on a fresh machine.
type Setup struct {
	// Base is the image load address; 0 means DefaultBase.
	Base uint32
	// StackTop is the initial SP; 0 means DefaultStackTop.
	StackTop uint32
	// Options are applied to the machine.
	Options []Option
}

func (s Setup) withDefaults() Setup {
	if s.Base == 0 {
		s.Base = DefaultBase
	}
	if s.StackTop == 0 {
		s.StackTop = DefaultStackTop
	}
	return s
}

// Outcome is what a replay left behind.
type Outcome struct {
	// Acks holds the arguments of every callback invocation.
	Acks [][3]uint32
	// Addresses lists the touched addresses in first-store order.
	Addresses []uint32
	// Final maps each touched address to the word it holds afterwards.
	Final map[uint32]uint32
	// Steps is the number of guest instructions executed.
	Steps int
	// Clobbered lists callee-saved registers the routine failed to restore.
	Clobbered []int
}

// machineFor maps the image, the stack and every page block stores to,
// and registers a recording host function at the callback address.
func machineFor(block *argblock.Block, s Setup, imgSize int) (*Machine, *Outcome, error) {
	m := New(s.Options...)
	out := &Outcome{Final: make(map[uint32]uint32)}

	if err := m.Map("image", s.Base, uint32(imgSize)); err != nil {
		return nil, nil, err
	}
	if err := m.Map("stack", s.StackTop-stackSize, stackSize); err != nil {
		return nil, nil, err
	}

	pages := make(map[uint32]bool)
	for _, op := range block.Ops {
		if op.Address > 0xFFFF_FFFF {
			return nil, nil, fmt.Errorf("store address %s is outside the 32-bit address space", op.Address.Hex())
		}
		p := uint32(op.Address) &^ pageMask
		if pages[p] {
			continue
		}
		pages[p] = true
		if err := m.Map(fmt.Sprintf("store@0x%08x", p), p, pageSize); err != nil {
			return nil, nil, err
		}
	}

	if block.Callback != 0 {
		if uint32(block.Callback)&^1 == ReturnAddress || block.Callback > 0xFFFF_FFFF {
			return nil, nil, fmt.Errorf("callback %s cannot be simulated", block.Callback.Hex())
		}
		m.Register(uint32(block.Callback), func(_ *Machine, args [4]uint32) uint32 {
			out.Acks = append(out.Acks, [3]uint32{args[0], args[1], args[2]})
			return 0
		})
	}
	return m, out, nil
}

func (o *Outcome) collect(m *Machine, block *argblock.Block) error {
	addrs, _ := block.FinalState()
	for _, a := range addrs {
		v, err := m.Read32(uint32(a))
		if err != nil {
			return err
		}
		o.Addresses = append(o.Addresses, uint32(a))
		o.Final[uint32(a)] = v
	}
	return nil
}

// Replay builds the image for block, loads it and calls its entry point,
// as a target CPU would run it.
func Replay(block *argblock.Block, s Setup) (*Outcome, error) {
	s = s.withDefaults()
	img, err := image.Build(block)
	if err != nil {
		return nil, err
	}
	m, out, err := machineFor(block, s, len(img))
	if err != nil {
		return nil, err
	}
	if err := m.Load(s.Base, img); err != nil {
		return nil, err
	}

	m.R[SP] = s.StackTop
	before := m.Snapshot()
	if err := m.Call(image.Placement{Base: s.Base, Size: len(img)}.Entry()); err != nil {
		return out, err
	}
	out.Steps = m.Steps()
	out.Clobbered = before.Changed(m.Snapshot(), CalleeSaved...)
	return out, out.collect(m, block)
}

// ReplayHosted runs block through the Go executor against an identically
// mapped machine, for comparison with Replay.
func ReplayHosted(block *argblock.Block, s Setup, logger *zap.Logger) (*Outcome, error) {
	s = s.withDefaults()
	m, out, err := machineFor(block, s, image.Size(len(block.Ops)))
	if err != nil {
		return nil, err
	}
	m.R[SP] = s.StackTop
	if _, err := executor.New(m.AsTarget(), logger).Run(block); err != nil {
		return out, err
	}
	return out, out.collect(m, block)
}

// Difference is one disagreement between two outcomes.
type Difference struct {
	What string
	Want string
	Got  string
}

// Compare lists the ways got differs from want.
func Compare(want, got *Outcome) []Difference {
	var diffs []Difference
	if len(want.Acks) != len(got.Acks) {
		diffs = append(diffs, Difference{What: "callback invocations",
			Want: fmt.Sprint(len(want.Acks)), Got: fmt.Sprint(len(got.Acks))})
	} else {
		for i := range want.Acks {
			if want.Acks[i] != got.Acks[i] {
				diffs = append(diffs, Difference{What: fmt.Sprintf("callback %d args", i),
					Want: fmt.Sprint(want.Acks[i]), Got: fmt.Sprint(got.Acks[i])})
			}
		}
	}
	for _, a := range want.Addresses {
		w, g := want.Final[a], got.Final[a]
		if _, ok := got.Final[a]; !ok || w != g {
			diffs = append(diffs, Difference{What: fmt.Sprintf("[0x%08x]", a),
				Want: fmt.Sprintf("0x%08x", w), Got: fmt.Sprintf("0x%08x", g)})
		}
	}
	return diffs
}
