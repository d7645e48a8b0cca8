package sim

import (
	"math/bits"
)

// Condition codes.
const (
	condEQ = iota
	condNE
	condCS
	condCC
	condMI
	condPL
	condVS
	condVC
	condHI
	condLS
	condGE
	condLT
	condGT
	condLE
	condAL
)

// Data processing opcodes.
const (
	opAND = iota
	opEOR
	opSUB
	opRSB
	opADD
	opADC
	opSBC
	opRSC
	opTST
	opTEQ
	opCMP
	opCMN
	opORR
	opMOV
	opBIC
	opMVN
)

// Step executes the instruction at pc.
func (m *Machine) Step() error {
	pc := m.R[PC]
	if pc&3 != 0 {
		return &Fault{Kind: FaultFetch, PC: pc, Addr: pc}
	}
	inst, ok := m.mem.read32(pc)
	if !ok {
		return &Fault{Kind: FaultFetch, PC: pc, Addr: pc}
	}
	if m.trace != nil {
		m.trace(pc, inst)
	}

	cond := inst >> 28
	if cond == 0xF {
		return &Fault{Kind: FaultUndefined, PC: pc, Inst: inst}
	}
	if !m.passed(cond) {
		m.R[PC] = pc + 4
		return nil
	}

	var (
		branched bool
		err      error
	)
	switch (inst >> 25) & 7 {
	case 0, 1:
		branched, err = m.execDataOrBranchExchange(pc, inst)
	case 2, 3:
		branched, err = m.execLoadStore(pc, inst)
	case 4:
		branched, err = m.execBlockTransfer(pc, inst)
	case 5:
		m.execBranch(pc, inst)
		branched = true
	default:
		err = &Fault{Kind: FaultUndefined, PC: pc, Inst: inst}
	}
	if err != nil {
		return err
	}
	if !branched {
		m.R[PC] = pc + 4
	}
	return nil
}

func (m *Machine) passed(cond uint32) bool {
	switch cond {
	case condEQ:
		return m.z
	case condNE:
		return !m.z
	case condCS:
		return m.c
	case condCC:
		return !m.c
	case condMI:
		return m.n
	case condPL:
		return !m.n
	case condVS:
		return m.v
	case condVC:
		return !m.v
	case condHI:
		return m.c && !m.z
	case condLS:
		return !m.c || m.z
	case condGE:
		return m.n == m.v
	case condLT:
		return m.n != m.v
	case condGT:
		return !m.z && m.n == m.v
	case condLE:
		return m.z || m.n != m.v
	default:
		return true
	}
}

// reg reads a register as an operand; pc reads as the instruction
// address plus 8.
func (m *Machine) reg(pc uint32, n uint32) uint32 {
	if n == PC {
		return pc + 8
	}
	return m.R[n]
}

// branchTo writes pc. The interworking bit is kept so a Thumb target
// faults on the next fetch unless it is a host function.
func (m *Machine) branchTo(target uint32) {
	m.R[PC] = target
}

func (m *Machine) execDataOrBranchExchange(pc, inst uint32) (bool, error) {
	// BX / BLX (register)
	if inst&0x0FFFFFD0 == 0x012FFF10 {
		target := m.reg(pc, inst&0xF)
		if inst&(1<<5) != 0 {
			m.R[LR] = pc + 4
		}
		m.branchTo(target)
		return true, nil
	}

	immediate := inst&(1<<25) != 0
	if !immediate && inst&(1<<4) != 0 {
		// register-shifted operands, multiplies, extra load/stores
		return false, &Fault{Kind: FaultUndefined, PC: pc, Inst: inst}
	}

	opcode := (inst >> 21) & 0xF
	setFlags := inst&(1<<20) != 0
	if opcode >= opTST && opcode <= opCMN && !setFlags {
		return false, &Fault{Kind: FaultUndefined, PC: pc, Inst: inst}
	}

	rn := (inst >> 16) & 0xF
	rd := (inst >> 12) & 0xF
	if rd == PC && setFlags {
		return false, &Fault{Kind: FaultUndefined, PC: pc, Inst: inst}
	}

	var op2 uint32
	var shiftCarry bool
	if immediate {
		op2, shiftCarry = m.expandImmediate(inst)
	} else {
		op2, shiftCarry = m.shiftImmediate(pc, inst)
	}
	a := m.reg(pc, rn)

	var (
		result  uint32
		carry   = shiftCarry
		over    = m.v
		logical = true
		write   = true
	)
	switch opcode {
	case opAND:
		result = a & op2
	case opEOR:
		result = a ^ op2
	case opSUB:
		result, carry, over = addWithCarry(a, ^op2, true)
		logical = false
	case opRSB:
		result, carry, over = addWithCarry(^a, op2, true)
		logical = false
	case opADD:
		result, carry, over = addWithCarry(a, op2, false)
		logical = false
	case opADC:
		result, carry, over = addWithCarry(a, op2, m.c)
		logical = false
	case opSBC:
		result, carry, over = addWithCarry(a, ^op2, m.c)
		logical = false
	case opRSC:
		result, carry, over = addWithCarry(^a, op2, m.c)
		logical = false
	case opTST:
		result = a & op2
		write = false
	case opTEQ:
		result = a ^ op2
		write = false
	case opCMP:
		result, carry, over = addWithCarry(a, ^op2, true)
		logical = false
		write = false
	case opCMN:
		result, carry, over = addWithCarry(a, op2, false)
		logical = false
		write = false
	case opORR:
		result = a | op2
	case opMOV:
		result = op2
	case opBIC:
		result = a &^ op2
	case opMVN:
		result = ^op2
	}

	if setFlags {
		m.n = result&(1<<31) != 0
		m.z = result == 0
		m.c = carry
		if !logical {
			m.v = over
		}
	}

	if !write {
		return false, nil
	}
	if rd == PC {
		m.branchTo(result)
		return true, nil
	}
	m.R[rd] = result
	return false, nil
}

// expandImmediate decodes a rotated 8-bit immediate.
func (m *Machine) expandImmediate(inst uint32) (uint32, bool) {
	rot := int((inst>>8)&0xF) * 2
	val := bits.RotateLeft32(inst&0xFF, -rot)
	if rot == 0 {
		return val, m.c
	}
	return val, val&(1<<31) != 0
}

// shiftImmediate decodes a register operand shifted by an immediate.
func (m *Machine) shiftImmediate(pc, inst uint32) (uint32, bool) {
	rm := m.reg(pc, inst&0xF)
	amount := (inst >> 7) & 0x1F
	switch (inst >> 5) & 3 {
	case 0: // LSL
		if amount == 0 {
			return rm, m.c
		}
		return rm << amount, (rm>>(32-amount))&1 != 0
	case 1: // LSR
		if amount == 0 {
			return 0, rm&(1<<31) != 0
		}
		return rm >> amount, (rm>>(amount-1))&1 != 0
	case 2: // ASR
		if amount == 0 {
			if rm&(1<<31) != 0 {
				return 0xFFFFFFFF, true
			}
			return 0, false
		}
		return uint32(int32(rm) >> amount), (rm>>(amount-1))&1 != 0
	default: // ROR, RRX
		if amount == 0 {
			var in uint32
			if m.c {
				in = 1 << 31
			}
			return in | rm>>1, rm&1 != 0
		}
		val := bits.RotateLeft32(rm, -int(amount))
		return val, val&(1<<31) != 0
	}
}

func addWithCarry(x, y uint32, carryIn bool) (uint32, bool, bool) {
	var cin uint64
	if carryIn {
		cin = 1
	}
	unsigned := uint64(x) + uint64(y) + cin
	signed := int64(int32(x)) + int64(int32(y)) + int64(cin)
	result := uint32(unsigned)
	return result, uint64(result) != unsigned, int64(int32(result)) != signed
}

func (m *Machine) execLoadStore(pc, inst uint32) (bool, error) {
	registerOffset := inst&(1<<25) != 0
	if registerOffset && inst&(1<<4) != 0 {
		return false, &Fault{Kind: FaultUndefined, PC: pc, Inst: inst}
	}

	pre := inst&(1<<24) != 0
	up := inst&(1<<23) != 0
	byteAccess := inst&(1<<22) != 0
	writeBack := inst&(1<<21) != 0
	load := inst&(1<<20) != 0
	rn := (inst >> 16) & 0xF
	rd := (inst >> 12) & 0xF

	var offset uint32
	if registerOffset {
		offset, _ = m.shiftImmediate(pc, inst)
	} else {
		offset = inst & 0xFFF
	}

	base := m.reg(pc, rn)
	updated := base - offset
	if up {
		updated = base + offset
	}
	addr := base
	if pre {
		addr = updated
	}

	var loaded uint32
	if load {
		if byteAccess {
			b, ok := m.mem.read8(addr)
			if !ok {
				return false, &Fault{Kind: FaultRead, PC: pc, Addr: addr, Inst: inst}
			}
			loaded = uint32(b)
		} else {
			w, ok := m.mem.read32(addr)
			if !ok {
				return false, &Fault{Kind: FaultRead, PC: pc, Addr: addr, Inst: inst}
			}
			loaded = w
		}
	} else {
		val := m.reg(pc, rd)
		var ok bool
		if byteAccess {
			ok = m.mem.write8(addr, byte(val))
		} else {
			ok = m.mem.write32(addr, val)
		}
		if !ok {
			return false, &Fault{Kind: FaultWrite, PC: pc, Addr: addr, Inst: inst}
		}
	}

	if (!pre || writeBack) && rn != PC {
		m.R[rn] = updated
	}

	if load {
		if rd == PC {
			m.branchTo(loaded)
			return true, nil
		}
		m.R[rd] = loaded
	}
	return false, nil
}

func (m *Machine) execBlockTransfer(pc, inst uint32) (bool, error) {
	if inst&(1<<22) != 0 {
		// user-bank transfers and exception return
		return false, &Fault{Kind: FaultUndefined, PC: pc, Inst: inst}
	}

	pre := inst&(1<<24) != 0
	up := inst&(1<<23) != 0
	writeBack := inst&(1<<21) != 0
	load := inst&(1<<20) != 0
	rn := (inst >> 16) & 0xF
	list := inst & 0xFFFF

	count := uint32(bits.OnesCount32(list))
	base := m.R[rn]

	var addr, updated uint32
	if up {
		addr = base
		if pre {
			addr += 4
		}
		updated = base + 4*count
	} else {
		addr = base - 4*count
		if !pre {
			addr += 4
		}
		updated = base - 4*count
	}

	branched := false
	if load {
		values := make([]uint32, 0, count)
		a := addr
		for r := 0; r < 16; r++ {
			if list&(1<<r) == 0 {
				continue
			}
			w, ok := m.mem.read32(a)
			if !ok {
				return false, &Fault{Kind: FaultRead, PC: pc, Addr: a, Inst: inst}
			}
			values = append(values, w)
			a += 4
		}
		if writeBack {
			m.R[rn] = updated
		}
		i := 0
		for r := 0; r < 16; r++ {
			if list&(1<<r) == 0 {
				continue
			}
			if r == PC {
				m.branchTo(values[i])
				branched = true
			} else {
				m.R[r] = values[i]
			}
			i++
		}
		return branched, nil
	}

	a := addr
	for r := uint32(0); r < 16; r++ {
		if list&(1<<r) == 0 {
			continue
		}
		if !m.mem.write32(a, m.reg(pc, r)) {
			return false, &Fault{Kind: FaultWrite, PC: pc, Addr: a, Inst: inst}
		}
		a += 4
	}
	if writeBack {
		m.R[rn] = updated
	}
	return false, nil
}

func (m *Machine) execBranch(pc, inst uint32) {
	offset := uint32(int32(inst<<8) >> 6)
	if inst&(1<<24) != 0 {
		m.R[LR] = pc + 4
	}
	m.branchTo(pc + 8 + offset)
}
