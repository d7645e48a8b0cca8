// Package gdb replays write sequences on a halted target through
// arm-none-eabi-gdb and OpenOCD.
//
// # Architecture
//
// Every operation is a template script rendered, written to a temp file
// and run with gdb -batch:
//
//	┌─────────────────┐
//	│ CLI Command     │
//	│ (writeseq-jtag) │
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Executor.Apply  │  Walks the block into a Batch (executor.Target)
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Script          │  Implements: Name(), Template(), Params(), Parse()
//	│ (ApplyWrites)   │
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Executor        │  Renders template, executes GDB, cleans up
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Result          │  Steps, WROTE count, mismatches
//	└─────────────────┘
//
// # Operations
//
// Apply issues the acknowledgment call (if the block has a callback) and
// then one `set {unsigned int}ADDR = VALUE` per op, echoing a marker after
// each so a run that dies part way reports how many stores landed:
//
//	executor := gdb.NewExecutor(gdb.DefaultConfig(), logger)
//	out, err := executor.Apply(ctx, block, gdb.ApplyOptions{Verify: true})
//
// Verify reads back every address the block touches and compares it with
// the last value stored there. Dump saves a memory range to a file.
// LoadImage restores the position-independent replay image and calls its
// entry point, so the stores are performed by the target CPU itself.
//
// # Error Handling
//
//   - GDBExecutionError: GDB exited non-zero (stdout kept for markers)
//   - GDBConnectionError: cannot connect to OpenOCD
//   - WriteSequenceError: the sequence stopped after N stores
//   - VerifyError: read-back values differ
//
// Stores that completed before a failure are never rolled back.
//
// # Prerequisites
//
// The package requires arm-none-eabi-gdb (or gdb-multiarch) and a running
// OpenOCD connected to the device over JTAG. Use ValidatePrerequisites()
// to check before operations.
//
// # Thread Safety
//
// Each operation takes exclusive control of the target through OpenOCD.
// Concurrent operations will fail when connecting.
package gdb
