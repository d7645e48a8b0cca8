// Package stub holds the position-independent ARM routine that replays an
// Argument Block on the device.
//
// The routine is A32, little-endian, AAPCS. It takes no arguments: it
// finds the block with a PC-relative add, so the block must sit exactly
// BlockOffset bytes after the entry point wherever the pair is loaded.
//
//	push  {r4, r5, r6, lr}
//	add   r6, pc, #0x38        ; r6 = &block
//	ldr   r3, [r6]             ; callback
//	cmp   r3, #0
//	movne r0, #0
//	movne r1, #0
//	movne r2, #1
//	blxne r3                   ; callback(0, 0, 1)
//	ldr   r4, [r6, #4]         ; opCount
//	add   r5, r6, #8           ; &ops[0]
//	loop:
//	cmp   r4, #0
//	beq   done
//	ldmia r5!, {r0, r1}        ; address, value
//	str   r1, [r0]
//	sub   r4, r4, #1
//	b     loop
//	done:
//	pop   {r4, r5, r6, pc}
package stub

import (
	"encoding/binary"

	"github.com/muurk/writeseq/internal/argblock"
)

// Layout is the only block layout the routine understands.
var Layout = argblock.Layout32LE

// words is the routine, one instruction per word.
var words = [...]uint32{
	0xE92D4070, // push  {r4, r5, r6, lr}
	0xE28F6038, // add   r6, pc, #0x38
	0xE5963000, // ldr   r3, [r6]
	0xE3530000, // cmp   r3, #0
	0x13A00000, // movne r0, #0
	0x13A01000, // movne r1, #0
	0x13A02001, // movne r2, #1
	0x112FFF33, // blxne r3
	0xE5964004, // ldr   r4, [r6, #4]
	0xE2865008, // add   r5, r6, #8
	0xE3540000, // cmp   r4, #0
	0x0A000003, // beq   done
	0xE8B50003, // ldmia r5!, {r0, r1}
	0xE5801000, // str   r1, [r0]
	0xE2444001, // sub   r4, r4, #1
	0xEAFFFFF9, // b     loop
	0xE8BD8070, // pop   {r4, r5, r6, pc}
}

// BlockOffset is the distance in bytes from the entry point to the
// Argument Block.
const BlockOffset = len(words) * 4

// Code returns a fresh copy of the routine's bytes.
func Code() []byte {
	code := make([]byte, BlockOffset)
	for i, w := range words {
		binary.LittleEndian.PutUint32(code[i*4:], w)
	}
	return code
}

// Words returns a copy of the routine's instruction words.
func Words() []uint32 {
	out := make([]uint32, len(words))
	copy(out, words[:])
	return out
}
