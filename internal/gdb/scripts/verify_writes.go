package scripts

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/muurk/writeseq/internal/argblock"
)

//go:embed templates/verify_writes.gdb.tmpl
var verifyWritesTemplate string

// examinePattern matches `x/1wx` and `x/1gx` output lines:
//
//	0x1000:	0x000000aa
//	0x10007000 <wdt>:	0x22000000
var examinePattern = regexp.MustCompile(`(?m)^\s*(0x[0-9a-fA-F]+)(?:\s*<[^>]*>)?:\s+(0x[0-9a-fA-F]+)`)

// Mismatch is an address whose value differs from the last store to it.
type Mismatch struct {
	Address  uint64
	Expected uint64
	Actual   uint64
	// Missing is set when GDB printed no value for the address.
	Missing bool
}

func (m Mismatch) String() string {
	if m.Missing {
		return fmt.Sprintf("%s: not read (expected %s)", hex(m.Address), hex(m.Expected))
	}
	return fmt.Sprintf("%s: got %s, expected %s", hex(m.Address), hex(m.Actual), hex(m.Expected))
}

// VerifyWritesScript reads back every address a sequence touches and
// compares it with the value of the last store to that address.
type VerifyWritesScript struct {
	openocdHost string
	openocdPort int
	order       []argblock.Word
	expected    map[argblock.Word]argblock.Word
	wordSize    int
}

// NewVerifyWritesScript creates a verify script for block.
func NewVerifyWritesScript(openocdHost string, openocdPort int, block *argblock.Block, wordSize int) *VerifyWritesScript {
	order, expected := block.FinalState()
	return &VerifyWritesScript{
		openocdHost: openocdHost,
		openocdPort: openocdPort,
		order:       order,
		expected:    expected,
		wordSize:    wordSize,
	}
}

// Name implements Script.Name
func (s *VerifyWritesScript) Name() string {
	return "verify_writes"
}

// Template implements Script.Template
func (s *VerifyWritesScript) Template() string {
	return verifyWritesTemplate
}

type checkParam struct {
	Address string
}

// Params implements Script.Params
func (s *VerifyWritesScript) Params() map[string]interface{} {
	checks := make([]checkParam, len(s.order))
	for i, addr := range s.order {
		checks[i] = checkParam{Address: hex(uint64(addr))}
	}
	unit := "w"
	if s.wordSize == 8 {
		unit = "g"
	}
	return map[string]interface{}{
		"OpenOCDHost": s.openocdHost,
		"OpenOCDPort": s.openocdPort,
		"Checks":      checks,
		"Unit":        unit,
	}
}

// Parse implements Script.Parse
func (s *VerifyWritesScript) Parse(output string) (*Result, error) {
	result := NewResult()
	result.Steps = parseSteps(output)

	read := ParseExamine(output)
	mismatches := make([]Mismatch, 0)
	for _, addr := range s.order {
		want := uint64(s.expected[addr])
		got, ok := read[uint64(addr)]
		switch {
		case !ok:
			mismatches = append(mismatches, Mismatch{Address: uint64(addr), Expected: want, Missing: true})
		case got != want:
			mismatches = append(mismatches, Mismatch{Address: uint64(addr), Expected: want, Actual: got})
		}
	}

	result.SetData("mismatches", mismatches)
	result.SetData("verified", len(s.order)-len(mismatches))
	result.BytesRead = len(read) * s.wordSize

	switch {
	case !succeeded(output):
		result.Error = failure("verify", output)
	case len(mismatches) > 0:
		result.Error = fmt.Errorf("%d of %d addresses differ", len(mismatches), len(s.order))
	default:
		result.Success = true
	}
	return result, nil
}

// ParseExamine extracts address/value pairs from GDB examine output.
func ParseExamine(output string) map[uint64]uint64 {
	values := make(map[uint64]uint64)
	for _, m := range examinePattern.FindAllStringSubmatch(output, -1) {
		addr, err := strconv.ParseUint(strings.TrimPrefix(m[1], "0x"), 16, 64)
		if err != nil {
			continue
		}
		val, err := strconv.ParseUint(strings.TrimPrefix(m[2], "0x"), 16, 64)
		if err != nil {
			continue
		}
		values[addr] = val
	}
	return values
}
