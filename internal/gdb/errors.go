package gdb

import (
	"fmt"
	"strings"

	"github.com/muurk/writeseq/internal/gdb/scripts"
)

// GDBExecutionError represents a failure during GDB script execution:
// a non-zero exit, a failed start or a timeout.
type GDBExecutionError struct {
	// Script is the name of the script that failed
	Script string
	// ExitCode is the GDB process exit code
	ExitCode int
	// Stderr is the GDB stderr output
	Stderr string
	// Stdout is the GDB stdout output, including any progress markers
	Stdout string
	// Underlying error if any
	Err error
}

func (e *GDBExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gdb execution failed for script %q (exit code %d): %v\nstderr: %s",
			e.Script, e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("gdb execution failed for script %q (exit code %d)\nstderr: %s",
		e.Script, e.ExitCode, e.Stderr)
}

func (e *GDBExecutionError) Unwrap() error {
	return e.Err
}

// GDBConnectionError represents a failure to connect to OpenOCD.
// This typically means OpenOCD is not running, the port is wrong, or the device is not connected.
type GDBConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *GDBConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to OpenOCD at %s:%d: %v\n"+
		"Hint: Ensure OpenOCD is running and the device is connected via JTAG.\n"+
		"Start OpenOCD with: openocd -f <your-config.cfg>",
		e.Host, e.Port, e.Err)
}

func (e *GDBConnectionError) Unwrap() error {
	return e.Err
}

// GDBParseError represents a failure to parse GDB output.
type GDBParseError struct {
	Script string
	Output string
	Err    error
}

func (e *GDBParseError) Error() string {
	return fmt.Sprintf("failed to parse GDB output for script %q: %v", e.Script, e.Err)
}

func (e *GDBParseError) Unwrap() error {
	return e.Err
}

// PrerequisiteError represents a missing prerequisite (GDB binary, OpenOCD, etc.).
type PrerequisiteError struct {
	Prerequisite string
	Details      string
	Err          error
}

func (e *PrerequisiteError) Error() string {
	msg := fmt.Sprintf("missing prerequisite: %s", e.Prerequisite)
	if e.Details != "" {
		msg += "\n" + e.Details
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\nError: %v", e.Err)
	}
	return msg
}

func (e *PrerequisiteError) Unwrap() error {
	return e.Err
}

// TemplateError represents a template rendering error.
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("failed to render template %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// TimeoutError represents a timeout during GDB operation.
type TimeoutError struct {
	Script  string
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gdb operation timed out for script %q after %s\n"+
		"Hint: Increase timeout with --timeout flag or check device connection",
		e.Script, e.Timeout)
}

// WriteSequenceError reports a sequence that stopped before its last
// store. Stores already made are not undone.
type WriteSequenceError struct {
	// Acknowledged is true when the callback returned.
	Acknowledged bool
	// Written is the number of stores GDB confirmed.
	Written int
	// Total is the number of stores in the sequence.
	Total int
	Err   error
}

func (e *WriteSequenceError) Error() string {
	return fmt.Sprintf("write sequence stopped after %d of %d stores: %v", e.Written, e.Total, e.Err)
}

func (e *WriteSequenceError) Unwrap() error {
	return e.Err
}

// VerifyError lists addresses whose read-back value differs from the
// last store to them.
type VerifyError struct {
	Mismatches []scripts.Mismatch
}

func (e *VerifyError) Error() string {
	lines := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		lines = append(lines, "  "+m.String())
	}
	return fmt.Sprintf("%d addresses do not hold their final value:\n%s",
		len(e.Mismatches), strings.Join(lines, "\n"))
}
