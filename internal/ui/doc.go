// Package ui renders terminal output for the writeseq commands.
//
// Components follow a "run once and exit" pattern: they render with
// Lipgloss (and Bubble Tea for one-shot rendering) but never wait for
// input, except ConfirmDangerousOperation.
//
//   - Header: command banner with parameters
//   - Progress / Counter: step list and unit bars (bubbles/progress)
//   - Result: success, failure and warning boxes
//   - OutputBox: raw GDB output or BROM wire trace for --verbose
//   - RenderBlock: a block as a table of stores
//
// Runner ties them together:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:      "Apply Write Sequence",
//	    Command:    "writeseq-jtag apply",
//	    Params:     map[string]string{"Target": "localhost:3333"},
//	    TotalSteps: 2,
//	})
//	_, err := runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
//	    onStep(1, "Replaying stores", ui.StepRunning, "")
//	    ...
//	})
//
// Logging is controlled by WRITESEQ_LOG_LEVEL. When unset, zap is silent
// and only this package's output is shown.
package ui
