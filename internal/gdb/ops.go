package gdb

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/muurk/writeseq/internal/argblock"
	"github.com/muurk/writeseq/internal/executor"
	"github.com/muurk/writeseq/internal/gdb/scripts"
	"github.com/muurk/writeseq/internal/image"
)

// ApplyOptions control Apply.
type ApplyOptions struct {
	// WordSize is 4 or 8; 0 means 4.
	WordSize int
	// Resume lets the target run after the last store.
	Resume bool
	// Verify reads every touched address back after the run.
	Verify bool
}

// ApplyResult describes a completed Apply.
type ApplyResult struct {
	Report *executor.Report
	Result *scripts.Result
	// Verify is the read-back result when ApplyOptions.Verify was set.
	Verify *scripts.Result
}

// Apply replays block on the target through GDB. The sequence is first
// walked with an executor into a Batch, so the acknowledgment comes first
// and a truncated block is rejected before anything reaches the target.
// When GDB stops part way the returned *WriteSequenceError says how many
// stores landed.
func (e *Executor) Apply(ctx context.Context, block argblock.Reader, opts ApplyOptions) (*ApplyResult, error) {
	wordSize := opts.WordSize
	if wordSize == 0 {
		wordSize = 4
	}

	batch := NewBatch(wordSize)
	report, err := executor.New(batch, e.logger.Named("batch")).Run(block)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare write sequence: %w", err)
	}

	script := scripts.NewApplyWritesScript(e.config.OpenOCDHost, e.config.OpenOCDPort,
		batch.Callback, batch.Ops, wordSize, opts.Resume)

	result, err := e.Execute(ctx, script)
	if err != nil {
		var execErr *GDBExecutionError
		if errors.As(err, &execErr) {
			acked, written := scripts.ParseApplyMarkers(execErr.Stdout)
			cause := DetectErrors(execErr.Stdout+execErr.Stderr, e.config.OpenOCDHost, e.config.OpenOCDPort)
			if cause == nil {
				cause = err
			}
			return nil, &WriteSequenceError{Acknowledged: acked, Written: written, Total: len(batch.Ops), Err: cause}
		}
		return nil, err
	}
	if !result.Success {
		return nil, &WriteSequenceError{
			Acknowledged: result.GetDataBool("acknowledged"),
			Written:      result.WordsWritten,
			Total:        len(batch.Ops),
			Err:          result.Error,
		}
	}

	out := &ApplyResult{Report: report, Result: result}
	if opts.Verify {
		final := &argblock.Block{Callback: batch.Callback, Ops: batch.Ops}
		v, err := e.Verify(ctx, final, wordSize)
		out.Verify = v
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Verify reads back every address block stores to and compares it with
// the last value stored there. Differences are returned as *VerifyError.
func (e *Executor) Verify(ctx context.Context, block *argblock.Block, wordSize int) (*scripts.Result, error) {
	if wordSize == 0 {
		wordSize = 4
	}
	script := scripts.NewVerifyWritesScript(e.config.OpenOCDHost, e.config.OpenOCDPort, block, wordSize)
	result, err := e.Execute(ctx, script)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		if mm, ok := result.GetData("mismatches").([]scripts.Mismatch); ok && len(mm) > 0 {
			return result, &VerifyError{Mismatches: mm}
		}
		return result, result.Error
	}
	return result, nil
}

// Dump copies size bytes at addr into outputFile.
func (e *Executor) Dump(ctx context.Context, addr uint64, size int, outputFile string) (*scripts.Result, error) {
	if size <= 0 {
		return nil, fmt.Errorf("dump size must be positive, got %d", size)
	}
	script := scripts.NewDumpMemoryScript(e.config.OpenOCDHost, e.config.OpenOCDPort, addr, size, outputFile)
	result, err := e.Execute(ctx, script)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return result, result.Error
	}
	return result, nil
}

// LoadImage builds the replay image for block, restores it at base and
// calls its entry point. The routine itself performs the acknowledgment
// and the stores on the target CPU.
func (e *Executor) LoadImage(ctx context.Context, block *argblock.Block, base uint32, resume bool) (*scripts.Result, image.Placement, error) {
	img, err := image.Build(block)
	if err != nil {
		return nil, image.Placement{}, err
	}
	placement := image.Placement{Base: base, Size: len(img)}
	if base%4 != 0 {
		return nil, placement, fmt.Errorf("load address 0x%08x is not word aligned", base)
	}

	file, err := e.writeTemp("writeseq-image-*.bin", img)
	if err != nil {
		return nil, placement, err
	}
	defer os.Remove(file)

	e.logger.Info("loading replay image",
		zap.String("base", fmt.Sprintf("0x%08x", base)),
		zap.Int("size", len(img)),
		zap.Int("ops", len(block.Ops)),
	)

	script := scripts.NewLoadImageScript(e.config.OpenOCDHost, e.config.OpenOCDPort, file, base, len(img), resume)
	result, err := e.Execute(ctx, script)
	if err != nil {
		return nil, placement, err
	}
	if !result.Success {
		return result, placement, result.Error
	}
	return result, placement, nil
}
