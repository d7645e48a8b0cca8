package plan

import (
	"encoding/binary"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/muurk/writeseq/internal/argblock"
)

// OpSpec is one store in a plan or patch set.
type OpSpec struct {
	Address Number `yaml:"address"`
	Value   Number `yaml:"value"`
	Comment string `yaml:"comment,omitempty"`
}

// Op converts to an argblock operation.
func (o OpSpec) Op() argblock.Op {
	return argblock.Op{Address: o.Address.Word(), Value: o.Value.Word()}
}

// Plan is a YAML description of one Argument Block.
type Plan struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Callback is the acknowledgment function address; 0 disables it
	Callback Number `yaml:"callback,omitempty"`

	// WordSize is 4 or 8; 0 means 4
	WordSize int `yaml:"word_size,omitempty"`

	// ByteOrder is "little" or "big"; empty means little
	ByteOrder string `yaml:"byte_order,omitempty"`

	// SoC selects a catalog profile, required when Patches is set
	SoC string `yaml:"soc,omitempty"`

	// Patches names SoC patch sets replayed before Ops
	Patches []string `yaml:"patches,omitempty"`

	// LoadBase is where a built image is placed; 0 means the SoC's SRAM base
	LoadBase Number `yaml:"load_base,omitempty"`

	Ops []OpSpec `yaml:"ops"`
}

// Load reads and parses a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, &PlanError{Path: path, Err: err}
	}
	return p, nil
}

// Parse parses a plan document and checks its layout fields.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if _, err := p.Layout(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Marshal renders the plan as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Layout returns the encoding described by WordSize and ByteOrder.
func (p *Plan) Layout() (argblock.Layout, error) {
	size := p.WordSize
	if size == 0 {
		size = 4
	}
	return argblock.ParseLayout(size, p.ByteOrder)
}

// Resolve returns the plan's SoC profile, or nil when none is named.
func (p *Plan) Resolve(cat *Catalog) (*SoC, error) {
	if p.SoC == "" {
		return nil, nil
	}
	return cat.Lookup(p.SoC)
}

// Block expands the plan into an Argument Block: patch sets first, in the
// order listed, then the explicit ops. The block is range checked against
// the plan's layout.
func (p *Plan) Block(cat *Catalog) (*argblock.Block, error) {
	layout, err := p.Layout()
	if err != nil {
		return nil, &PlanError{Err: err}
	}

	block := &argblock.Block{Callback: p.Callback.Word()}

	if len(p.Patches) > 0 {
		if p.SoC == "" {
			return nil, &PlanError{Err: fmt.Errorf("patches %v need a soc", p.Patches)}
		}
		soc, err := p.Resolve(cat)
		if err != nil {
			return nil, &PlanError{Err: err}
		}
		for _, name := range p.Patches {
			set, ok := soc.PatchSets[name]
			if !ok {
				return nil, &PlanError{Err: &UnknownPatchSetError{
					SoC:       soc.Name,
					PatchSet:  name,
					Available: soc.PatchSetNames(),
				}}
			}
			for _, o := range set {
				block.Ops = append(block.Ops, o.Op())
			}
		}
	}

	for _, o := range p.Ops {
		block.Ops = append(block.Ops, o.Op())
	}

	if err := layout.Check(block); err != nil {
		return nil, &PlanError{Err: err}
	}
	return block, nil
}

// FromBlock builds a plan that reproduces block with the given layout.
func FromBlock(block *argblock.Block, layout argblock.Layout) *Plan {
	p := &Plan{
		Callback: Number(block.Callback),
		WordSize: layout.WordSize,
		Ops:      make([]OpSpec, 0, len(block.Ops)),
	}
	if layout.Order == binary.BigEndian {
		p.ByteOrder = "big"
	} else {
		p.ByteOrder = "little"
	}
	for _, op := range block.Ops {
		p.Ops = append(p.Ops, OpSpec{Address: Number(op.Address), Value: Number(op.Value)})
	}
	return p
}
