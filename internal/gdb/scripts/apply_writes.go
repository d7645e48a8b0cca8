package scripts

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/muurk/writeseq/internal/argblock"
)

//go:embed templates/apply_writes.gdb.tmpl
var applyWritesTemplate string

// ApplyWritesScript replays a write sequence through GDB memory writes:
// an optional acknowledgment call, then one store per op, in order.
type ApplyWritesScript struct {
	openocdHost string
	openocdPort int
	callback    argblock.Word
	ops         []argblock.Op
	wordSize    int
	resume      bool
}

// NewApplyWritesScript creates an apply script. wordSize is 4 or 8.
// When resume is set the target is resumed after the last store.
func NewApplyWritesScript(openocdHost string, openocdPort int, callback argblock.Word, ops []argblock.Op, wordSize int, resume bool) *ApplyWritesScript {
	return &ApplyWritesScript{
		openocdHost: openocdHost,
		openocdPort: openocdPort,
		callback:    callback,
		ops:         ops,
		wordSize:    wordSize,
		resume:      resume,
	}
}

// Name implements Script.Name
func (s *ApplyWritesScript) Name() string {
	return "apply_writes"
}

// Template implements Script.Template
func (s *ApplyWritesScript) Template() string {
	return applyWritesTemplate
}

type opParam struct {
	Index   int
	Address string
	Value   string
}

// Params implements Script.Params
func (s *ApplyWritesScript) Params() map[string]interface{} {
	ops := make([]opParam, len(s.ops))
	for i, op := range s.ops {
		ops[i] = opParam{Index: i, Address: hex(uint64(op.Address)), Value: hex(uint64(op.Value))}
	}

	callback := ""
	steps, writeStep := 2, 2
	if s.callback != 0 {
		callback = hex(uint64(s.callback))
		steps, writeStep = 3, 3
	}

	// The acknowledgment arguments are passed at native word width.
	ctype, argType := "unsigned int", "unsigned int"
	if s.wordSize == 8 {
		ctype, argType = "unsigned long long", "unsigned long"
	}

	return map[string]interface{}{
		"OpenOCDHost": s.openocdHost,
		"OpenOCDPort": s.openocdPort,
		"Callback":    callback,
		"Count":       len(s.ops),
		"Steps":       steps,
		"WriteStep":   writeStep,
		"Ops":         ops,
		"CType":       ctype,
		"ArgType":     argType,
		"Resume":      s.resume,
	}
}

// Parse implements Script.Parse. It counts the WROTE markers, so a run
// that stopped part way reports how many stores landed.
func (s *ApplyWritesScript) Parse(output string) (*Result, error) {
	result := NewResult()
	result.Steps = parseSteps(output)

	acked, written := ParseApplyMarkers(output)
	result.WordsWritten = written
	result.SetData("acknowledged", acked)
	result.SetData("written", written)

	result.Success = succeeded(output) && written == len(s.ops) && (s.callback == 0 || acked)
	if !result.Success {
		result.Error = failure("write sequence", output)
	}
	return result, nil
}

// ParseApplyMarkers reports whether the ACK marker was printed and how
// many consecutive WROTE markers, starting at index 0, were printed.
func ParseApplyMarkers(output string) (acked bool, written int) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "ACK":
			acked = true
		case strings.HasPrefix(line, "WROTE "):
			i, err := strconv.Atoi(strings.TrimPrefix(line, "WROTE "))
			if err == nil && i == written {
				written++
			}
		}
	}
	return acked, written
}
