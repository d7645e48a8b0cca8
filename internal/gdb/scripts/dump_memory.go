package scripts

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed templates/dump_memory.gdb.tmpl
var dumpMemoryTemplate string

// DumpMemoryScript copies a memory range to a local file.
type DumpMemoryScript struct {
	openocdHost  string
	openocdPort  int
	startAddress uint64
	size         int
	outputFile   string
}

// NewDumpMemoryScript creates a new memory dump script
func NewDumpMemoryScript(openocdHost string, openocdPort int, startAddress uint64, size int, outputFile string) *DumpMemoryScript {
	return &DumpMemoryScript{
		openocdHost:  openocdHost,
		openocdPort:  openocdPort,
		startAddress: startAddress,
		size:         size,
		outputFile:   outputFile,
	}
}

// Name returns the script name
func (s *DumpMemoryScript) Name() string {
	return "dump_memory"
}

// Template returns the embedded GDB script template
func (s *DumpMemoryScript) Template() string {
	return dumpMemoryTemplate
}

// Params returns the template parameters
func (s *DumpMemoryScript) Params() map[string]interface{} {
	return map[string]interface{}{
		"OpenOCDHost":  s.openocdHost,
		"OpenOCDPort":  s.openocdPort,
		"StartAddress": hex(s.startAddress),
		"EndAddress":   hex(s.startAddress + uint64(s.size)),
		"Size":         s.size,
		"OutputFile":   s.outputFile,
	}
}

// Parse parses the GDB output
func (s *DumpMemoryScript) Parse(output string) (*Result, error) {
	result := NewResult()
	result.Steps = parseSteps(output)

	if !succeeded(output) {
		result.Error = failure("memory dump", output)
		if strings.Contains(output, "Cannot access memory") {
			result.Error = fmt.Errorf("cannot access memory at %s: address may be invalid or not accessible", hex(s.startAddress))
		}
		return result, nil
	}

	result.Success = true
	result.BytesRead = s.size
	result.SetData("output_file", s.outputFile)
	return result, nil
}
