package plan

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/image"
	"github.com/muurk/writeseq/internal/stub"
)

// InputKind says how an input file was interpreted.
type InputKind string

const (
	KindPlan  InputKind = "plan"
	KindImage InputKind = "image"
	KindBlock InputKind = "block"
)

// Input is a block read from disk along with how it was encoded.
type Input struct {
	Path   string
	Kind   InputKind
	Block  *argblock.Block
	Layout argblock.Layout
	// Plan is set for KindPlan.
	Plan *Plan
}

// LoadInput reads a block from a YAML plan (.yaml or .yml), a built
// image, or a raw encoded block. Raw blocks are decoded with layout and
// must be complete.
func LoadInput(path string, cat *Catalog, layout argblock.Layout) (*Input, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		p, err := Load(path)
		if err != nil {
			return nil, err
		}
		block, err := p.Block(cat)
		if err != nil {
			return nil, &PlanError{Path: path, Err: err}
		}
		l, _ := p.Layout()
		return &Input{Path: path, Kind: KindPlan, Block: block, Layout: l, Plan: p}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if code := stub.Code(); bytes.HasPrefix(data, code) {
		block, err := image.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("invalid image %s: %w", path, err)
		}
		return &Input{Path: path, Kind: KindImage, Block: block, Layout: stub.Layout}, nil
	}

	block, err := layout.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("invalid block %s (%s): %w", path, layout, err)
	}
	return &Input{Path: path, Kind: KindBlock, Block: block, Layout: layout}, nil
}
