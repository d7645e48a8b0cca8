package stub

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/arm/armasm"
)

// Line is one disassembled instruction.
type Line struct {
	Offset int
	Word   uint32
	Text   string
	Inst   armasm.Inst
}

func (l Line) String() string {
	return fmt.Sprintf("%04x:  %08x  %s", l.Offset, l.Word, l.Text)
}

// Disassemble decodes A32 code, calling fn for every instruction. A
// trailing partial word is ignored.
func Disassemble(code []byte, fn func(Line) error) error {
	for off := 0; off+4 <= len(code); off += 4 {
		inst, err := armasm.Decode(code[off:], armasm.ModeARM)
		if err != nil {
			return fmt.Errorf("failed to decode instruction at 0x%04x (%08x): %w",
				off, binary.LittleEndian.Uint32(code[off:]), err)
		}

		line := Line{
			Offset: off,
			Word:   binary.LittleEndian.Uint32(code[off:]),
			Text:   armasm.GNUSyntax(inst),
			Inst:   inst,
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return nil
}

// Listing disassembles the routine itself.
func Listing() ([]Line, error) {
	lines := make([]Line, 0, len(words))
	err := Disassemble(Code(), func(l Line) error {
		lines = append(lines, l)
		return nil
	})
	return lines, err
}
