// Package executor replays an Argument Block against a target memory.
//
// The Executor is the hosted form of the device routine in internal/stub:
// it reads the block through argblock.Reader, optionally acknowledges
// receipt by calling the host callback with (0, 0, 1), then performs
// every store in list order. Targets decide what a store means. Memory
// is an in-process sparse word memory; the gdb and usbdl packages adapt
// real devices.
//
// # State machine
//
//	Idle -> Acknowledging (only when callback != 0) -> Writing -> Idle
//
// There is no failure state. A target error is treated like a hardware
// fault: the run stops where it is and Run returns a *FaultError. Stores
// already made stay made; nothing is retried or rolled back.
//
// # Usage
//
//	mem := executor.NewMemory()
//	exec := executor.New(mem, logger)
//	report, err := exec.Run(block)
//
// An Executor is not safe for concurrent use and refuses to be entered
// again from inside its own callback.
package executor
