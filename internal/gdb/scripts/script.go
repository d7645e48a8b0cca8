package scripts

import (
	"fmt"
	"time"
)

// Script represents one GDB batch run. Each operation (apply, verify,
// dump, load) renders its own template and knows how to read the output.
type Script interface {
	// Name identifies the script in logs, errors and temp file names.
	// Example: "apply_writes", "dump_memory"
	Name() string

	// Template returns the text/template source of the GDB script.
	Template() string

	// Params returns the values substituted into the template.
	Params() map[string]interface{}

	// Parse extracts a Result from GDB stdout.
	Parse(output string) (*Result, error)
}

// Result represents the outcome of executing a GDB script.
type Result struct {
	// Success indicates whether the overall operation succeeded.
	Success bool

	// Duration is how long the GDB script took to execute.
	Duration time.Duration

	// WordsWritten counts stores confirmed by WROTE markers.
	WordsWritten int

	// BytesWritten is the size of a restored image.
	BytesWritten int

	// BytesRead is the size of a memory dump.
	BytesRead int

	// Steps contains progress information for multi-step operations.
	Steps []Step

	// Data contains operation-specific parsed data, such as
	// "acknowledged" (bool) or "mismatches" ([]Mismatch).
	Data map[string]interface{}

	// Error contains the error if the operation failed.
	Error error

	// RawOutput contains the complete stdout from GDB.
	RawOutput string

	// RawStderr contains the complete stderr from GDB.
	RawStderr string
}

// Step represents a single step in a multi-step GDB operation.
// Steps are extracted from echo statements in the GDB script:
//
//	echo [1/3] Halting target...\n
type Step struct {
	// Name is the step description, e.g. "[2/3] Writing 4 words"
	Name string

	// Status is "success", "failed" or "skipped"
	Status string

	// Message provides additional context about the step.
	Message string
}

// NewResult creates a new Result with default values.
func NewResult() *Result {
	return &Result{
		Steps: make([]Step, 0),
		Data:  make(map[string]interface{}),
	}
}

// AddStep adds a step to the result.
func (r *Result) AddStep(name, status, message string) {
	r.Steps = append(r.Steps, Step{
		Name:    name,
		Status:  status,
		Message: message,
	})
}

// SetData sets a data value in the result.
func (r *Result) SetData(key string, value interface{}) {
	r.Data[key] = value
}

// GetData gets a data value from the result.
func (r *Result) GetData(key string) interface{} {
	return r.Data[key]
}

// GetDataBool gets a bool data value, false if missing.
func (r *Result) GetDataBool(key string) bool {
	v, _ := r.Data[key].(bool)
	return v
}

// GetDataString gets a string data value, empty if missing.
func (r *Result) GetDataString(key string) string {
	v, _ := r.Data[key].(string)
	return v
}

// SuccessSteps returns the count of successful steps.
func (r *Result) SuccessSteps() int {
	return r.countSteps("success")
}

// FailedSteps returns the count of failed steps.
func (r *Result) FailedSteps() int {
	return r.countSteps("failed")
}

// TotalSteps returns the total number of steps.
func (r *Result) TotalSteps() int {
	return len(r.Steps)
}

func (r *Result) countSteps(status string) int {
	count := 0
	for _, step := range r.Steps {
		if step.Status == status {
			count++
		}
	}
	return count
}

// hex formats an address or value the way the templates print them.
func hex(v uint64) string {
	return fmt.Sprintf("0x%08x", v)
}
