// Package cpu implements the SM83 fetch/execute interpreter: the 256-entry
// primary opcode table, the CB-prefixed bit/rotate/shift table, and the
// register file. Every memory access goes through the bus, which is what
// actually advances time; this package only adds the handful of internal
// (non-memory) cycles real SM83 opcodes spend on address computation,
// branch decisions, and stack-pointer adjustment.
package cpu

import (
	"github.com/kestrelbit/gbcore/internal/bus"
	"github.com/kestrelbit/gbcore/internal/irq"
)

// CPU is the SM83 interpreter: registers, flags, IME, and HALT state.
type CPU struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	ime    bool
	halted bool

	bus  *bus.Bus
	irqc *irq.Controller
}

// New returns a CPU wired to bus and irqc. Registers start at zero except
// SP, which starts at 0xFFFE; call
// ResetNoBoot for the typical DMG post-boot register state when no boot
// ROM is loaded.
func New(b *bus.Bus, irqc *irq.Controller) *CPU {
	return &CPU{bus: b, irqc: irqc, SP: 0xFFFE, PC: 0x0000}
}

// SetPC allows a boot stub or test to set the program counter directly.
func (c *CPU) SetPC(pc uint16) { c.PC = pc }

// Bus exposes the underlying bus for tests/tools.
func (c *CPU) Bus() *bus.Bus { return c.bus }

// IME reports whether the interrupt master enable flag is set. Satisfies
// irq.CPU.
func (c *CPU) IME() bool { return c.ime }

// RaiseIRQ is called by the IRQ controller once it decides to dispatch an
// interrupt: it pulls the CPU out of HALT, clears IME, and pushes PC before
// jumping to vector. Real hardware spends 3 internal M-cycles on interrupt
// dispatch before the 2 push writes; that figure isn't in the retrieved
// original-source extract, so it follows the well-documented SM83 latency
// (5 M-cycles total) rather than the spec's literal memory-access-only text.
func (c *CPU) RaiseIRQ(vector uint16) {
	c.halted = false
	c.ime = false
	c.delay()
	c.delay()
	c.push16(c.PC) // third internal cycle is push16's SP decrement
	c.PC = vector
}

// ResetNoBoot sets registers to typical DMG post-boot state, for running
// without a boot ROM.
func (c *CPU) ResetNoBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.ime = false
	c.halted = false
}

const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

func (c *CPU) setZNHC(z, n, h, carry bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if carry {
		f |= flagC
	}
	c.F = f
}

func (c *CPU) add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	z = res == 0
	n = false
	h = ((a & 0x0F) + (b & 0x0F)) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) adc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	z = res == 0
	n = false
	h = ((a & 0x0F) + (b & 0x0F) + ci) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) sub8(a, b byte) (res byte, z, n, h, cy bool) {
	r := int16(a) - int16(b)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < (b & 0x0F)
	cy = int16(a) < int16(b)
	return
}

func (c *CPU) sbc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := int16(a) - int16(b) - int16(ci)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < ((b & 0x0F) + ci)
	cy = int16(a) < int16(b)+int16(ci)
	return
}

func (c *CPU) and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	z = res == 0
	h = true
	return
}

func (c *CPU) xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	z = res == 0
	return
}

func (c *CPU) or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	z = res == 0
	return
}

func (c *CPU) cp8(a, b byte) (z, n, h, cy bool) {
	_, z, n, h, cy = c.sub8(a, b)
	return
}

func (c *CPU) read8(addr uint16) byte     { return c.bus.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.bus.Write(addr, v) }

// delay spends one internal M-cycle with no address access, for the SM83
// opcodes that take longer than their actual memory-access count: stack
// pointer adjustment, taken branches, and 16-bit ALU ops.
func (c *CPU) delay() { c.bus.InternalCycle() }

func (c *CPU) fetch8() byte {
	b := c.read8(c.PC)
	c.PC++
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | (hi << 8)
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.read8(addr))
	hi := uint16(c.read8(addr + 1))
	return lo | (hi << 8)
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v&0x00FF))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) getAF() uint16  { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) getBC() uint16  { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) getDE() uint16  { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) getHL() uint16  { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

// push16 matches real hardware's extra internal cycle for the SP
// decrement, ahead of the two writes.
func (c *CPU) push16(v uint16) {
	c.delay()
	c.SP -= 2
	c.write16(c.SP, v)
}

func (c *CPU) pop16() uint16 {
	v := c.read16(c.SP)
	c.SP += 2
	return v
}

var regIdx8 = func(c *CPU, idx byte) *byte {
	switch idx {
	case 0:
		return &c.B
	case 1:
		return &c.C
	case 2:
		return &c.D
	case 3:
		return &c.E
	case 4:
		return &c.H
	case 5:
		return &c.L
	case 7:
		return &c.A
	}
	return nil
}

func (c *CPU) getReg(idx byte) byte {
	if idx == 6 {
		return c.read8(c.getHL())
	}
	return *regIdx8(c, idx)
}

func (c *CPU) setReg(idx byte, v byte) {
	if idx == 6 {
		c.write8(c.getHL(), v)
		return
	}
	*regIdx8(c, idx) = v
}

// Step executes one instruction. It is a no-op while halted, except that
// HALT still spends one M-cycle and keeps checking the wake condition:
// any pending-and-enabled interrupt, regardless of IME.
func (c *CPU) Step() {
	if c.halted {
		c.delay()
		if c.irqc.Pending() != 0 {
			c.halted = false
		}
		return
	}
	op := c.fetch8()
	c.execute(op)
}

func (c *CPU) execute(op byte) {
	switch op {
	case 0x00: // NOP

	case 0x10: // STOP, treated as HALT
		c.fetch8()
		c.halted = true

	// LD r,d8
	case 0x06:
		c.B = c.fetch8()
	case 0x0E:
		c.C = c.fetch8()
	case 0x16:
		c.D = c.fetch8()
	case 0x1E:
		c.E = c.fetch8()
	case 0x26:
		c.H = c.fetch8()
	case 0x2E:
		c.L = c.fetch8()
	case 0x3E:
		c.A = c.fetch8()

	// LD r,r' and LD (HL),r / LD r,(HL)
	case 0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x47,
		0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4F,
		0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x57,
		0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5F,
		0x60, 0x61, 0x62, 0x63, 0x64, 0x65, 0x67,
		0x68, 0x69, 0x6A, 0x6B, 0x6C, 0x6D, 0x6F,
		0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x77,
		0x78, 0x79, 0x7A, 0x7B, 0x7C, 0x7D, 0x7F,
		0x46, 0x4E, 0x56, 0x5E, 0x66, 0x6E, 0x7E:
		d := (op >> 3) & 7
		s := op & 7
		c.setReg(d, c.getReg(s))

	// 16-bit loads
	case 0x01:
		c.setBC(c.fetch16())
	case 0x11:
		c.setDE(c.fetch16())
	case 0x21:
		c.setHL(c.fetch16())
	case 0x31:
		c.SP = c.fetch16()
	case 0x08: // LD (a16),SP
		addr := c.fetch16()
		c.write16(addr, c.SP)

	case 0x36: // LD (HL),d8
		c.write8(c.getHL(), c.fetch8())

	case 0x02:
		c.write8(c.getBC(), c.A)
	case 0x12:
		c.write8(c.getDE(), c.A)
	case 0x0A:
		c.A = c.read8(c.getBC())
	case 0x1A:
		c.A = c.read8(c.getDE())

	case 0x22: // LD (HL+),A
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl + 1)
	case 0x2A: // LD A,(HL+)
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl + 1)
	case 0x32: // LD (HL-),A
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl - 1)
	case 0x3A: // LD A,(HL-)
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl - 1)

	case 0xE0: // LDH (FF00+n),A
		n := uint16(c.fetch8())
		c.write8(0xFF00+n, c.A)
	case 0xF0: // LDH A,(FF00+n)
		n := uint16(c.fetch8())
		c.A = c.read8(0xFF00 + n)
	case 0xE2: // LD (FF00+C),A
		c.write8(0xFF00+uint16(c.C), c.A)
	case 0xF2: // LD A,(FF00+C)
		c.A = c.read8(0xFF00 + uint16(c.C))
	case 0xEA: // LD (a16),A
		c.write8(c.fetch16(), c.A)
	case 0xFA: // LD A,(a16)
		c.A = c.read8(c.fetch16())

	// Rotates and flag ops
	case 0x07: // RLCA
		cval := (c.A >> 7) & 1
		c.A = (c.A << 1) | cval
		c.setZNHC(false, false, false, cval == 1)
	case 0x0F: // RRCA
		cval := c.A & 1
		c.A = (c.A >> 1) | (cval << 7)
		c.setZNHC(false, false, false, cval == 1)
	case 0x17: // RLA
		cval := (c.A >> 7) & 1
		carry := byte(0)
		if c.F&flagC != 0 {
			carry = 1
		}
		c.A = (c.A << 1) | carry
		c.setZNHC(false, false, false, cval == 1)
	case 0x1F: // RRA
		cval := c.A & 1
		carry := byte(0)
		if c.F&flagC != 0 {
			carry = 1
		}
		c.A = (c.A >> 1) | (carry << 7)
		c.setZNHC(false, false, false, cval == 1)
	case 0x27: // DAA
		a := c.A
		cf := c.F&flagC != 0
		if c.F&flagN == 0 {
			if cf || a > 0x99 {
				a += 0x60
				cf = true
			}
			if c.F&flagH != 0 || (a&0x0F) > 9 {
				a += 0x06
			}
		} else {
			if cf {
				a -= 0x60
			}
			if c.F&flagH != 0 {
				a -= 0x06
			}
		}
		c.A = a
		c.setZNHC(c.A == 0, c.F&flagN != 0, false, cf)
	case 0x2F: // CPL
		c.A = ^c.A
		c.F = (c.F & (flagZ | flagC)) | flagN | flagH
	case 0x37: // SCF
		c.F = (c.F & flagZ) | flagC
	case 0x3F: // CCF
		if c.F&flagC != 0 {
			c.F = c.F &^ flagC
		} else {
			c.F |= flagC
		}
		c.F &^= flagN | flagH
		c.F &= flagZ | flagC

	// INC r / DEC r / INC (HL) / DEC (HL)
	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x3C:
		idx := (op >> 3) & 7
		old := c.getReg(idx)
		v := old + 1
		c.setReg(idx, v)
		c.setZNHC(v == 0, false, old&0x0F == 0x0F, c.F&flagC != 0)
	case 0x34:
		addr := c.getHL()
		old := c.read8(addr)
		v := old + 1
		c.write8(addr, v)
		c.setZNHC(v == 0, false, old&0x0F == 0x0F, c.F&flagC != 0)
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x3D:
		idx := (op >> 3) & 7
		old := c.getReg(idx)
		v := old - 1
		c.setReg(idx, v)
		c.setZNHC(v == 0, true, old&0x0F == 0x00, c.F&flagC != 0)
	case 0x35:
		addr := c.getHL()
		old := c.read8(addr)
		v := old - 1
		c.write8(addr, v)
		c.setZNHC(v == 0, true, old&0x0F == 0x00, c.F&flagC != 0)

	// ALU with registers
	case 0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87:
		r, z, n, h, cy := c.add8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0x88, 0x89, 0x8A, 0x8B, 0x8C, 0x8D, 0x8E, 0x8F:
		r, z, n, h, cy := c.adc8(c.A, c.getReg(op&7), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0x90, 0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97:
		r, z, n, h, cy := c.sub8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0x98, 0x99, 0x9A, 0x9B, 0x9C, 0x9D, 0x9E, 0x9F:
		r, z, n, h, cy := c.sbc8(c.A, c.getReg(op&7), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7:
		r, z, n, h, cy := c.and8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xA8, 0xA9, 0xAA, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF:
		r, z, n, h, cy := c.xor8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7:
		r, z, n, h, cy := c.or8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBE, 0xBF:
		z, n, h, cy := c.cp8(c.A, c.getReg(op&7))
		c.setZNHC(z, n, h, cy)

	// ALU immediate
	case 0xC6:
		r, z, n, h, cy := c.add8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xCE:
		r, z, n, h, cy := c.adc8(c.A, c.fetch8(), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xD6:
		r, z, n, h, cy := c.sub8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xDE:
		r, z, n, h, cy := c.sbc8(c.A, c.fetch8(), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xE6:
		r, z, n, h, cy := c.and8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xEE:
		r, z, n, h, cy := c.xor8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xF6:
		r, z, n, h, cy := c.or8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xFE:
		z, n, h, cy := c.cp8(c.A, c.fetch8())
		c.setZNHC(z, n, h, cy)

	// Jumps
	case 0xC3: // JP a16
		addr := c.fetch16()
		c.PC = addr
		c.delay()
	case 0xE9: // JP (HL) -- no internal delay, famously doesn't read memory
		c.PC = c.getHL()
	case 0x18: // JR r8
		off := int8(c.fetch8())
		c.PC = uint16(int32(c.PC) + int32(off))
		c.delay()
	case 0x20, 0x28, 0x30, 0x38: // JR cc,r8
		off := int8(c.fetch8())
		if c.condition(op) {
			c.PC = uint16(int32(c.PC) + int32(off))
			c.delay()
		}
	case 0xC2, 0xCA, 0xD2, 0xDA: // JP cc,a16
		addr := c.fetch16()
		if c.condition(op) {
			c.PC = addr
			c.delay()
		}

	// CALL/RET
	case 0xCD: // CALL a16
		addr := c.fetch16()
		c.push16(c.PC)
		c.PC = addr
	case 0xC4, 0xCC, 0xD4, 0xDC: // CALL cc,a16
		addr := c.fetch16()
		if c.condition(op) {
			c.push16(c.PC)
			c.PC = addr
		}
	case 0xC9: // RET
		c.PC = c.pop16()
		c.delay()
	case 0xD9: // RETI
		c.PC = c.pop16()
		c.ime = true
		c.delay()
	case 0xC0, 0xC8, 0xD0, 0xD8: // RET cc
		c.delay()
		if c.condition(op) {
			c.PC = c.pop16()
			c.delay()
		}

	// RST t
	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF:
		c.push16(c.PC)
		c.PC = uint16(op & 0x38)

	// 16-bit INC/DEC and ADD HL,rr
	case 0x03:
		c.setBC(c.getBC() + 1)
		c.delay()
	case 0x13:
		c.setDE(c.getDE() + 1)
		c.delay()
	case 0x23:
		c.setHL(c.getHL() + 1)
		c.delay()
	case 0x33:
		c.SP++
		c.delay()
	case 0x0B:
		c.setBC(c.getBC() - 1)
		c.delay()
	case 0x1B:
		c.setDE(c.getDE() - 1)
		c.delay()
	case 0x2B:
		c.setHL(c.getHL() - 1)
		c.delay()
	case 0x3B:
		c.SP--
		c.delay()
	case 0x09, 0x19, 0x29, 0x39:
		hl := c.getHL()
		var rhs uint16
		switch op {
		case 0x09:
			rhs = c.getBC()
		case 0x19:
			rhs = c.getDE()
		case 0x29:
			rhs = hl
		case 0x39:
			rhs = c.SP
		}
		r := uint32(hl) + uint32(rhs)
		h := (hl&0x0FFF)+(rhs&0x0FFF) > 0x0FFF
		c.setHL(uint16(r))
		c.setZNHC(c.F&flagZ != 0, false, h, r > 0xFFFF)
		c.delay()

	// Stack/SP ops
	case 0xF8: // LD HL,SP+r8
		off := int8(c.fetch8())
		res := uint16(int32(int16(c.SP)) + int32(off))
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := c.add8(low, byte(off))
		c.setHL(res)
		c.setZNHC(false, false, h, cy)
		c.delay()
	case 0xF9: // LD SP,HL
		c.SP = c.getHL()
		c.delay()
	case 0xE8: // ADD SP,r8
		off := int8(c.fetch8())
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := c.add8(low, byte(off))
		res := uint16(int32(int16(c.SP)) + int32(off))
		c.SP = res
		c.setZNHC(false, false, h, cy)
		c.delay()
		c.delay()

	case 0xF3: // DI
		c.ime = false
	case 0xFB: // EI, immediate enable (1-instruction delay not emulated)
		c.ime = true

	case 0xCB:
		c.executeCB(c.fetch8())

	// PUSH/POP
	case 0xF5:
		c.push16(c.getAF())
	case 0xC5:
		c.push16(c.getBC())
	case 0xD5:
		c.push16(c.getDE())
	case 0xE5:
		c.push16(c.getHL())
	case 0xF1:
		c.setAF(c.pop16())
	case 0xC1:
		c.setBC(c.pop16())
	case 0xD1:
		c.setDE(c.pop16())
	case 0xE1:
		c.setHL(c.pop16())

	case 0x76: // HALT
		c.halted = true

	default:
		// Unrecognized opcode: treated as NOP. No ROM in the spec's target
		// set issues one of these (the primary table above is complete).
	}
}

// condition evaluates the cc field of a JR/JP/CALL/RET cc opcode from its
// two condition bits (bits 3-4 of the opcode).
func (c *CPU) condition(op byte) bool {
	switch (op >> 3) & 3 {
	case 0:
		return c.F&flagZ == 0
	case 1:
		return c.F&flagZ != 0
	case 2:
		return c.F&flagC == 0
	default:
		return c.F&flagC != 0
	}
}

func (c *CPU) executeCB(cb byte) {
	reg := cb & 7
	group := (cb >> 6) & 3
	y := (cb >> 3) & 7

	switch group {
	case 0: // rotate/shift/swap
		v := c.getReg(reg)
		var cflag byte
		switch y {
		case 0: // RLC
			cflag = (v >> 7) & 1
			v = (v << 1) | cflag
		case 1: // RRC
			cflag = v & 1
			v = (v >> 1) | (cflag << 7)
		case 2: // RL
			cflag = (v >> 7) & 1
			cin := byte(0)
			if c.F&flagC != 0 {
				cin = 1
			}
			v = (v << 1) | cin
		case 3: // RR
			cflag = v & 1
			cin := byte(0)
			if c.F&flagC != 0 {
				cin = 1
			}
			v = (v >> 1) | (cin << 7)
		case 4: // SLA
			cflag = (v >> 7) & 1
			v <<= 1
		case 5: // SRA
			cflag = v & 1
			v = (v >> 1) | (v & 0x80)
		case 6: // SWAP
			v = (v << 4) | (v >> 4)
		case 7: // SRL
			cflag = v & 1
			v >>= 1
		}
		c.setReg(reg, v)
		c.setZNHC(v == 0, false, false, cflag == 1 && y != 6)
	case 1: // BIT y,r -- no write-back, so no (HL) write cost
		v := c.getReg(reg)
		bit := (v >> y) & 1
		c.F = (c.F & flagC) | flagH
		if bit == 0 {
			c.F |= flagZ
		}
	case 2: // RES y,r
		c.setReg(reg, c.getReg(reg)&^(1<<y))
	case 3: // SET y,r
		c.setReg(reg, c.getReg(reg)|(1<<y))
	}
}
