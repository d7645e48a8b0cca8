package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Skipped
)

// Step represents a single step in a multi-step operation
type Step struct {
	Number  int        // 1-based
	Name    string     // Step description
	Status  StepStatus // Current status
	Message string     // Optional note, e.g. "3 of 12 stores"
}

// Progress is a bar plus a step list.
type Progress struct {
	Label     string
	Steps     []Step
	Current   int     // Current step (1-based)
	Total     int     // Total steps
	Percent   float64 // 0.0 - 1.0
	Width     int
	ShowBar   bool
	ShowSteps bool
	bar       progress.Model
}

// NewProgress creates a new progress display
func NewProgress(label string, totalSteps int) *Progress {
	steps := make([]Step, totalSteps)
	for i := range steps {
		steps[i] = Step{Number: i + 1, Status: StepPending}
	}

	return &Progress{
		Label:     label,
		Steps:     steps,
		Total:     totalSteps,
		Width:     GetTerminalWidth(),
		ShowBar:   true,
		ShowSteps: true,
		bar:       newBar(40),
	}
}

func newBar(width int) progress.Model {
	return progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(width),
	)
}

func barWidthFor(width int) int {
	w := width - 20 // room for percentage and counter
	if w < 20 {
		w = 20
	}
	if w > 50 {
		w = 50
	}
	return w
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	p.bar = newBar(barWidthFor(width))
	return p
}

// SetStepNames sets the names for all steps
func (p *Progress) SetStepNames(names []string) *Progress {
	for i, name := range names {
		if i < len(p.Steps) {
			p.Steps[i].Name = name
		}
	}
	return p
}

// UpdateStep updates a specific step's status and optional message
func (p *Progress) UpdateStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(p.Steps) {
		return
	}
	idx := stepNumber - 1
	p.Steps[idx].Status = status
	p.Steps[idx].Message = message

	switch status {
	case StepRunning:
		p.Current = stepNumber
	case StepComplete, StepFailed, StepSkipped:
		completed := 0
		for _, s := range p.Steps {
			if s.Status == StepComplete || s.Status == StepSkipped {
				completed++
			}
		}
		p.Percent = float64(completed) / float64(p.Total)
	}
}

// StartStep marks a step as running
func (p *Progress) StartStep(stepNumber int, message string) {
	p.UpdateStep(stepNumber, StepRunning, message)
}

// CompleteStep marks a step as complete
func (p *Progress) CompleteStep(stepNumber int, message string) {
	p.UpdateStep(stepNumber, StepComplete, message)
}

// FailStep marks a step as failed
func (p *Progress) FailStep(stepNumber int, message string) {
	p.UpdateStep(stepNumber, StepFailed, message)
}

// Render returns the styled progress display as a string
func (p *Progress) Render() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}
	if p.ShowBar {
		b.WriteString(renderBar(p.bar, p.Percent, fmt.Sprintf("[%d/%d]", p.Current, p.Total)))
		b.WriteString("\n\n")
	}
	if p.ShowSteps {
		lines := make([]string, 0, len(p.Steps))
		for _, step := range p.Steps {
			lines = append(lines, p.renderStepLine(step))
		}
		b.WriteString(strings.Join(lines, "\n"))
	}

	return b.String()
}

func renderBar(bar progress.Model, percent float64, counter string) string {
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  %s", bar.ViewAs(percent), percent*100, counter))
}

func (p *Progress) renderStepLine(step Step) string {
	var (
		marker    string
		nameStyle lipgloss.Style
	)
	switch step.Status {
	case StepComplete:
		marker, nameStyle = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, nameStyle = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, nameStyle = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, nameStyle = StepMarkerSkipped, StepPendingStyle
	default:
		marker, nameStyle = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  [%d/%d] ", step.Number, p.Total))
	b.WriteString(nameStyle.Render(step.Name))

	// marker column
	padding := 45 - lipgloss.Width(step.Name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(nameStyle.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}

	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}

// StepCallback is how operations report step progress to a Runner.
type StepCallback func(stepNumber int, name string, status StepStatus, message string)

// Counter is a bar for a single long operation measured in units, such
// as stores written or bytes dumped.
type Counter struct {
	Label string
	Unit  string
	Done  int
	Total int
	bar   progress.Model
}

// NewCounter creates a counter for total units.
func NewCounter(label, unit string, total int, width int) *Counter {
	return &Counter{Label: label, Unit: unit, Total: total, bar: newBar(barWidthFor(width))}
}

// Set records progress and returns the rendered line.
func (c *Counter) Set(done int) string {
	c.Done = done
	return c.Render()
}

// Percent is Done/Total, 1 when Total is 0.
func (c *Counter) Percent() float64 {
	if c.Total <= 0 {
		return 1
	}
	return float64(c.Done) / float64(c.Total)
}

// Render returns the label and bar on one line.
func (c *Counter) Render() string {
	counter := fmt.Sprintf("%d/%d %s", c.Done, c.Total, c.Unit)
	line := renderBar(c.bar, c.Percent(), counter)
	if c.Label == "" {
		return line
	}
	return ProgressLabelStyle.Render(c.Label) + "\n" + line
}
