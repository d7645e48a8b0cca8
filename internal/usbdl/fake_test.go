package usbdl

import (
	"bytes"
	"encoding/binary"
	"io"
)

// fakeBROM emulates the device side of the protocol over an in-memory
// pipe. Host writes are echoed immediately and complete commands are
// answered in order.
type fakeBROM struct {
	out bytes.Buffer
	in  []byte

	hwCode  uint16
	version HWSWVersion
	config  uint32
	c8Data  byte
	mem     map[uint32]uint32

	cqdmaBase uint32

	// status overrides the reply status per command
	status map[Command]uint16
	// corruptEcho flips the first echoed byte of the next write
	corruptEcho bool
	// protected addresses refuse WRITE32; only a DMA copy reaches them
	protected map[uint32]bool
	c8Subs    []byte

	wrote32   int
	read32    int
	jumps     []uint32
	headerAck bool
}

func newFakeBROM(hwCode uint16) *fakeBROM {
	return &fakeBROM{
		hwCode:    hwCode,
		mem:       make(map[uint32]uint32),
		status:    make(map[Command]uint16),
		protected: make(map[uint32]bool),
		cqdmaBase: 0x10217C00,
	}
}

func (f *fakeBROM) Write(b []byte) (int, error) {
	echo := append([]byte{}, b...)
	if f.corruptEcho && len(echo) > 0 {
		echo[0] ^= 0xFF
		f.corruptEcho = false
	}
	f.out.Write(echo)
	f.in = append(f.in, b...)
	f.process()
	return len(b), nil
}

func (f *fakeBROM) Read(b []byte) (int, error) {
	if f.out.Len() == 0 {
		return 0, io.EOF
	}
	return f.out.Read(b)
}

func (f *fakeBROM) word(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	f.out.Write(b[:])
}

func (f *fakeBROM) dword(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	f.out.Write(b[:])
}

func (f *fakeBROM) replyStatus(cmd Command) {
	f.word(f.status[cmd])
}

func (f *fakeBROM) consume(n int) {
	f.in = f.in[n:]
}

func (f *fakeBROM) process() {
	for len(f.in) > 0 {
		cmd := Command(f.in[0])
		switch cmd {
		case CmdGetHWCode:
			f.consume(1)
			f.word(f.hwCode)
			f.replyStatus(cmd)
		case CmdGetHWSWVer:
			f.consume(1)
			f.word(f.version.HWSubcode)
			f.word(f.version.HWVersion)
			f.word(f.version.SWVersion)
			f.replyStatus(cmd)
		case CmdGetTargetConfig:
			f.consume(1)
			f.dword(f.config)
			f.replyStatus(cmd)
		case CmdUART1LogEnable:
			f.consume(1)
			f.replyStatus(cmd)
		case CmdC8:
			if len(f.in) < 2 {
				return
			}
			f.c8Subs = append(f.c8Subs, f.in[1])
			f.consume(2)
			f.out.WriteByte(f.c8Data)
			f.replyStatus(cmd)
		case CmdJumpDA:
			if len(f.in) < 5 {
				return
			}
			f.jumps = append(f.jumps, binary.BigEndian.Uint32(f.in[1:5]))
			f.consume(5)
			f.replyStatus(cmd)
		case CmdRead32:
			if len(f.in) < 9 {
				return
			}
			addr := binary.BigEndian.Uint32(f.in[1:5])
			count := binary.BigEndian.Uint32(f.in[5:9])
			f.consume(9)
			f.read32++
			f.replyStatus(cmd)
			for i := uint32(0); i < count; i++ {
				f.dword(f.mem[addr+4*i])
			}
			f.replyStatus(cmd)
		case CmdWrite32:
			if len(f.in) < 9 {
				return
			}
			addr := binary.BigEndian.Uint32(f.in[1:5])
			count := int(binary.BigEndian.Uint32(f.in[5:9]))
			if !f.headerAck {
				f.replyStatus(cmd)
				f.headerAck = true
			}
			if len(f.in) < 9+4*count {
				return
			}
			refused := false
			for i := 0; i < count; i++ {
				if f.protected[addr+uint32(4*i)] {
					refused = true
					continue
				}
				f.store(addr+uint32(4*i), binary.BigEndian.Uint32(f.in[9+4*i:]))
			}
			f.consume(9 + 4*count)
			f.headerAck = false
			f.wrote32++
			if refused {
				f.word(0x1D0C)
			} else {
				f.replyStatus(cmd)
			}
		default:
			f.consume(1)
		}
	}
}

// store applies a word write, running a DMA copy when the CQDMA start
// register is written.
func (f *fakeBROM) store(addr, value uint32) {
	f.mem[addr] = value
	if addr == f.cqdmaBase+cqdmaStart && value == 1 {
		src := f.mem[f.cqdmaBase+cqdmaSrc]
		dst := f.mem[f.cqdmaBase+cqdmaDst]
		f.mem[dst] = f.mem[src]
	}
}
