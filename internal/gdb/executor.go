package gdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/writeseq/internal/gdb/scripts"
)

// Config holds the configuration for GDB execution.
type Config struct {
	// GDBPath is the path to the arm-none-eabi-gdb binary.
	// Default: "arm-none-eabi-gdb" (searches PATH)
	GDBPath string

	// OpenOCDHost is the hostname/IP where OpenOCD is running.
	// Default: "localhost"
	OpenOCDHost string

	// OpenOCDPort is the GDB server port OpenOCD listens on.
	// Default: 3333
	OpenOCDPort int

	// Timeout is the maximum time to wait for GDB to complete.
	// Default: 5 minutes
	Timeout time.Duration

	// WorkDir is the working directory for temporary files.
	// Default: os.TempDir()
	WorkDir string

	// Echo, when set, receives GDB stdout as it is produced in addition
	// to the captured copy.
	Echo io.Writer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GDBPath:     "arm-none-eabi-gdb",
		OpenOCDHost: "localhost",
		OpenOCDPort: 3333,
		Timeout:     5 * time.Minute,
		WorkDir:     os.TempDir(),
	}
}

// Executor executes GDB scripts via os/exec.
type Executor struct {
	config Config
	logger *zap.Logger
}

// NewExecutor creates a new GDB executor with the given configuration.
func NewExecutor(config Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		config: config,
		logger: logger,
	}
}

// Config returns the executor configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Execute runs a GDB script and returns the parsed result.
//
// Steps:
//  1. Render script template with parameters
//  2. Write rendered script to a temporary file
//  3. Run GDB in batch mode on the file
//  4. Parse stdout using script.Parse()
//
// A non-zero exit is returned as *GDBExecutionError carrying the output,
// so callers can still read the progress markers GDB printed.
func (e *Executor) Execute(ctx context.Context, script scripts.Script) (*scripts.Result, error) {
	startTime := time.Now()

	e.logger.Info("executing GDB script",
		zap.String("script", script.Name()),
		zap.String("gdb_path", e.config.GDBPath),
		zap.String("openocd", fmt.Sprintf("%s:%d", e.config.OpenOCDHost, e.config.OpenOCDPort)),
		zap.Duration("timeout", e.config.Timeout),
	)

	rendered, err := e.renderTemplate(script)
	if err != nil {
		return nil, &TemplateError{
			Template: script.Name(),
			Err:      err,
		}
	}

	e.logger.Debug("rendered GDB script template",
		zap.String("script", script.Name()),
		zap.Int("size", len(rendered)),
		zap.String("content", rendered),
	)

	scriptFile, err := e.writeScriptFile(script.Name(), rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to write script file: %w", err)
	}
	defer os.Remove(scriptFile)

	stdout, stderr, exitCode, err := e.executeGDB(ctx, scriptFile)
	duration := time.Since(startTime)

	e.logger.Debug("GDB execution complete",
		zap.String("script", script.Name()),
		zap.Duration("duration", duration),
		zap.Int("exit_code", exitCode),
		zap.String("stdout", stdout),
		zap.String("stderr", stderr),
	)

	if err != nil || exitCode != 0 {
		return nil, &GDBExecutionError{
			Script:   script.Name(),
			ExitCode: exitCode,
			Stderr:   stderr,
			Stdout:   stdout,
			Err:      err,
		}
	}

	result, err := script.Parse(stdout)
	if err != nil {
		return nil, &GDBParseError{Script: script.Name(), Output: stdout, Err: err}
	}

	result.Duration = duration
	result.RawOutput = stdout
	result.RawStderr = stderr

	e.logger.Info("GDB script executed",
		zap.String("script", script.Name()),
		zap.Duration("duration", duration),
		zap.Bool("success", result.Success),
		zap.Int("steps", result.TotalSteps()),
		zap.Int("words_written", result.WordsWritten),
		zap.Int("bytes_read", result.BytesRead),
	)

	return result, nil
}

// renderTemplate renders the script template with parameters.
func (e *Executor) renderTemplate(script scripts.Script) (string, error) {
	tmpl, err := template.New(script.Name()).Parse(script.Template())
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, script.Params()); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// writeScriptFile writes the rendered script to a temporary file.
func (e *Executor) writeScriptFile(name, content string) (string, error) {
	return e.writeTemp(fmt.Sprintf("writeseq-gdb-%s-*.gdb", name), []byte(content))
}

// writeTemp creates a file in WorkDir holding data and returns its path.
func (e *Executor) writeTemp(pattern string, data []byte) (string, error) {
	file, err := os.CreateTemp(e.config.WorkDir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	return file.Name(), nil
}

// executeGDB runs arm-none-eabi-gdb on scriptFile.
//
//	-batch: exit after processing the script
//	-nx:    don't execute .gdbinit
//	-x:     execute commands from file
func (e *Executor) executeGDB(ctx context.Context, scriptFile string) (stdout, stderr string, exitCode int, err error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, e.config.GDBPath,
		"-batch",
		"-nx",
		"-x", scriptFile,
	)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	if e.config.Echo != nil {
		cmd.Stdout = io.MultiWriter(&stdoutBuf, e.config.Echo)
	}
	cmd.Stderr = &stderrBuf

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if timeoutCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = &TimeoutError{
			Script:  filepath.Base(scriptFile),
			Timeout: e.config.Timeout.String(),
		}
	}

	return stdout, stderr, exitCode, err
}

// ValidateConfig checks the GDB binary and, as a warning only, the
// OpenOCD connection.
func (e *Executor) ValidateConfig(ctx context.Context) error {
	if err := ValidateGDBPath(ctx, e.config.GDBPath); err != nil {
		return err
	}

	if err := ValidateOpenOCDConnection(ctx, e.config.OpenOCDHost, e.config.OpenOCDPort); err != nil {
		e.logger.Warn("OpenOCD connection check failed (this is not fatal)",
			zap.String("host", e.config.OpenOCDHost),
			zap.Int("port", e.config.OpenOCDPort),
			zap.Error(err),
		)
	}

	return nil
}
