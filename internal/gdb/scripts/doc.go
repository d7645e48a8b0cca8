// Package scripts holds the GDB script templates used by package gdb and
// the parsers that turn their output into a Result.
//
// Templates print progress markers with echo:
//
//	echo [1/3] Halting target...\n
//	echo ACK\n
//	echo WROTE 0\n
//	echo [SUCCESS] wrote 1 words\n
//
// The [n/m] markers become Steps, ACK and WROTE lines record the
// acknowledgment and each completed store, and [SUCCESS] marks the end of
// a run that finished.
package scripts
