package gdb

import (
	"fmt"
	"strings"
)

// DetectErrors scans GDB output for well known failures and returns the
// first one as a typed error, or nil.
func DetectErrors(output, host string, port int) error {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.Contains(line, "Cannot access memory at address"):
			return fmt.Errorf("GDB memory access error: %s", line)

		case strings.Contains(line, "Connection refused"),
			strings.Contains(line, "Connection timed out"):
			return &GDBConnectionError{
				Host: host,
				Port: port,
				Err:  fmt.Errorf("%s", line),
			}

		case strings.Contains(line, "No such file or directory"):
			return fmt.Errorf("GDB file not found: %s", line)

		case strings.Contains(line, "Remote communication error"):
			return fmt.Errorf("GDB communication error: %s", line)

		case strings.Contains(line, "was signaled while in a function called from GDB"):
			return fmt.Errorf("target faulted in called function: %s", line)
		}
	}
	return nil
}
