package executor

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/writeseq/internal/argblock"
)

// AckArgs are the fixed arguments of the acknowledgment call.
var AckArgs = [3]argblock.Word{0, 0, 1}

// ErrReentered is returned when Run is called while a run is in progress.
var ErrReentered = errors.New("executor: run already in progress")

// Target is the memory and call surface a block is replayed against.
type Target interface {
	// StoreWord performs one full-word store.
	StoreWord(addr, value argblock.Word) error

	// Call invokes the function at addr with three word arguments. Any
	// return value is discarded by the executor.
	Call(addr argblock.Word, args [3]argblock.Word) error
}

// Hooks receive progress notifications. Nil fields are skipped.
type Hooks struct {
	// OnState is called on every state transition.
	OnState func(State)

	// OnWrite is called after each successful store.
	OnWrite func(index argblock.Word, op argblock.Op)
}

// Option configures an Executor.
type Option func(*Executor)

// WithHooks installs progress hooks.
func WithHooks(h Hooks) Option {
	return func(e *Executor) {
		e.hooks = h
	}
}

// Report summarises a completed run.
type Report struct {
	// Acknowledged is true when the callback was invoked.
	Acknowledged bool
	// Writes is the number of stores performed.
	Writes argblock.Word
	// Duration is the wall time of the run.
	Duration time.Duration
}

// Executor replays Argument Blocks against a Target.
type Executor struct {
	target Target
	logger *zap.Logger
	hooks  Hooks
	state  State
}

// New creates an executor for target. A nil logger disables logging.
func New(target Target, logger *zap.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		target: target,
		logger: logger,
		state:  Idle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state.
func (e *Executor) State() State {
	return e.state
}

// Run performs the acknowledgment (if requested) and every store in
// block, in order. The opCount is trusted; an entry that cannot be read
// faults the run like any other bad access. The report is returned with
// the fault and covers the work done up to it.
func (e *Executor) Run(block argblock.Reader) (*Report, error) {
	if e.state != Idle {
		return nil, ErrReentered
	}
	defer e.enter(Idle)

	start := time.Now()
	report := &Report{}
	err := e.run(block, report)
	report.Duration = time.Since(start)
	if err != nil {
		return report, err
	}

	e.logger.Info("block replayed",
		zap.Bool("acknowledged", report.Acknowledged),
		zap.Uint64("writes", uint64(report.Writes)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (e *Executor) run(block argblock.Reader, report *Report) error {
	if cb := block.CallbackAddress(); cb != 0 {
		e.enter(Acknowledging)
		e.logger.Debug("acknowledging block",
			zap.String("callback", cb.Hex()),
		)
		if err := e.target.Call(cb, AckArgs); err != nil {
			return &FaultError{Stage: Acknowledging, Address: cb, Err: err}
		}
		report.Acknowledged = true
	}

	e.enter(Writing)
	count := block.OpCount()
	e.logger.Debug("replaying writes", zap.Uint64("op_count", uint64(count)))

	for i := argblock.Word(0); i < count; i++ {
		op, err := block.OpAt(i)
		if err != nil {
			return &FaultError{Stage: Writing, Index: i, Err: err}
		}
		if err := e.target.StoreWord(op.Address, op.Value); err != nil {
			return &FaultError{Stage: Writing, Index: i, Address: op.Address, Err: err}
		}
		report.Writes++
		if e.hooks.OnWrite != nil {
			e.hooks.OnWrite(i, op)
		}
	}
	return nil
}

func (e *Executor) enter(s State) {
	e.state = s
	if e.hooks.OnState != nil {
		e.hooks.OnState(s)
	}
}
