package scripts

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	stepPattern    = regexp.MustCompile(`^\[(\d+)/(\d+)\]\s+(.+?)(?:\.\.\.)?\s*$`)
	successPattern = regexp.MustCompile(`(?m)^\[SUCCESS\]`)
)

// parseSteps collects the [n/m] markers GDB echoed. Every step before the
// last one reached succeeded; the last one succeeded only if the script
// printed its [SUCCESS] marker.
func parseSteps(output string) []Step {
	steps := make([]Step, 0)
	for _, line := range strings.Split(output, "\n") {
		m := stepPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		steps = append(steps, Step{
			Name:   fmt.Sprintf("[%s/%s] %s", m[1], m[2], m[3]),
			Status: "success",
		})
	}
	if len(steps) > 0 && !succeeded(output) {
		last := &steps[len(steps)-1]
		last.Status = "failed"
		last.Message = firstError(output)
	}
	return steps
}

func succeeded(output string) bool {
	return successPattern.MatchString(output)
}

// firstError returns the first line that looks like a GDB error.
func firstError(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "Cannot access memory") ||
			strings.Contains(line, "Connection refused") ||
			strings.Contains(strings.ToLower(line), "error") {
			return line
		}
	}
	return ""
}

// failure builds the error for a run without a success marker.
func failure(op string, output string) error {
	if msg := firstError(output); msg != "" {
		return fmt.Errorf("%s failed: %s", op, msg)
	}
	return fmt.Errorf("%s failed: success marker not found", op)
}
