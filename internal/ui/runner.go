package ui

import (
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes one command run.
type RunnerConfig struct {
	Title      string            // e.g., "Apply Write Sequence"
	Command    string            // e.g., "writeseq-jtag apply"
	Params     map[string]string // Shown in the header
	TotalSteps int
	StepNames  []string
	Verbose    bool      // Show the raw output box
	OutputName string    // Title of the raw output box, default "GDB Output"
	Tips       []string  // Troubleshooting tips on failure
	Output     io.Writer // default: os.Stdout
}

// Runner prints header, progress and result around an operation.
type Runner struct {
	config    RunnerConfig
	header    *Header
	progress  *Progress
	output    io.Writer
	rawOutput string
	width     int
}

// NewRunner creates a runner.
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.OutputName == "" {
		config.OutputName = "GDB Output"
	}

	width := GetTerminalWidth()
	header := NewHeader(config.Title, config.Command, config.Params).SetWidth(width)

	var prog *Progress
	if config.TotalSteps > 0 {
		prog = NewProgress("", config.TotalSteps).SetWidth(width)
		prog.SetStepNames(config.StepNames)
	}

	return &Runner{
		config:   config,
		header:   header,
		progress: prog,
		output:   config.Output,
		width:    width,
	}
}

// Operation does the work, reporting steps through onStep, and returns
// details for the success box.
type Operation func(onStep StepCallback) (map[string]string, error)

// Run prints the header, runs op and prints the result box.
func (r *Runner) Run(op Operation) (map[string]string, error) {
	start := time.Now()

	fmt.Fprintln(r.output, r.header.Render())
	fmt.Fprintln(r.output)

	details, err := op(r.onStep)
	duration := time.Since(start)

	fmt.Fprintln(r.output)
	if err != nil {
		fmt.Fprintln(r.output, NewFailureResult(r.config.Title+" failed", err, r.config.Tips).SetWidth(r.width).Render())
	} else {
		if details == nil {
			details = make(map[string]string)
		}
		details["Duration"] = duration.Round(time.Millisecond).String()
		fmt.Fprintln(r.output, NewSuccessResult(r.config.Title+" complete", details).SetWidth(r.width).Render())
	}

	if r.config.Verbose && r.rawOutput != "" {
		fmt.Fprintln(r.output)
		fmt.Fprintln(r.output, NewOutputBox(r.config.OutputName, r.rawOutput).SetWidth(r.width).Render())
	}

	return details, err
}

// SetRawOutput stores tool output for the verbose box.
func (r *Runner) SetRawOutput(output string) {
	r.rawOutput = output
}

// Counter returns a counter bar sized for this runner's terminal.
func (r *Runner) Counter(label, unit string, total int) *Counter {
	return NewCounter(label, unit, total, r.width)
}

// Writer is where the runner prints.
func (r *Runner) Writer() io.Writer {
	return r.output
}

func (r *Runner) onStep(stepNumber int, name string, status StepStatus, message string) {
	if r.progress == nil || stepNumber < 1 || stepNumber > len(r.progress.Steps) {
		return
	}
	if name != "" {
		r.progress.Steps[stepNumber-1].Name = name
	}
	r.progress.UpdateStep(stepNumber, status, message)

	line := r.progress.renderStepLine(r.progress.Steps[stepNumber-1])
	if status == StepRunning {
		// overwritten when the step finishes
		fmt.Fprint(r.output, line+"\r")
		return
	}
	fmt.Fprintln(r.output, line)
}
