package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// OutputBox shows raw tool output (GDB stdout, a BROM wire trace) in
// verbose mode.
type OutputBox struct {
	Title    string
	Lines    []string
	Width    int
	MaxLines int // keep only the last MaxLines lines; 0 keeps all
}

// NewOutputBox creates an output box.
func NewOutputBox(title, content string) *OutputBox {
	return &OutputBox{
		Title: title,
		Lines: strings.Split(strings.TrimRight(content, "\n"), "\n"),
		Width: GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (o *OutputBox) SetWidth(width int) *OutputBox {
	o.Width = width
	return o
}

// SetMaxLines limits the box to the tail of the output.
func (o *OutputBox) SetMaxLines(n int) *OutputBox {
	o.MaxLines = n
	return o
}

// FilterPrefix keeps only lines starting with one of prefixes, ignoring
// leading space.
func (o *OutputBox) FilterPrefix(prefixes ...string) *OutputBox {
	var kept []string
	for _, line := range o.Lines {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range prefixes {
			if strings.HasPrefix(trimmed, prefix) {
				kept = append(kept, line)
				break
			}
		}
	}
	o.Lines = kept
	return o
}

// Render returns the styled box.
func (o *OutputBox) Render() string {
	width := clampWidth(o.Width)

	lines := o.Lines
	if o.MaxLines > 0 && len(lines) > o.MaxLines {
		lines = append([]string{"... (earlier output omitted)"}, lines[len(lines)-o.MaxLines:]...)
	}

	inner := lipgloss.JoinVertical(lipgloss.Left,
		OutputTitleStyle.Render(o.Title),
		"",
		OutputContentStyle.Render(strings.Join(lines, "\n")),
	)

	boxWidth := width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(boxWidth).
		Padding(0, 1).
		MarginLeft(2).
		Render(inner)
}

// String implements fmt.Stringer
func (o *OutputBox) String() string {
	return o.Render()
}
