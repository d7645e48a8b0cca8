package plan

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/muurk/writeseq/internal/argblock"
)

// Number is an unsigned integer that may be written in YAML as a plain
// integer or as a string in any Go base ("0x1000", "0o17", "0b101",
// "4096"). Underscore separators are accepted.
type Number uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Number) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number, got a %s", value.Line, kindName(value.Kind))
	}
	v, err := ParseNumber(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*n = v
	return nil
}

// MarshalYAML writes the number in hex.
func (n Number) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("0x%x", uint64(n)), nil
}

// Word converts to an argblock word.
func (n Number) Word() argblock.Word {
	return argblock.Word(n)
}

// ParseNumber parses s using Go integer literal syntax.
func ParseNumber(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return Number(v), nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "scalar"
	}
}
