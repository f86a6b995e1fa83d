package cpu

import (
	"testing"

	"github.com/kestrelbit/gbcore/internal/bus"
)

func newCPUWithROM(code []byte) (*CPU, *bus.Bus) {
	rom := make([]byte, 0x8000)
	copy(rom, code)
	b := bus.New(rom)
	c := New(b, b.IRQ())
	b.IRQ().Attach(c)
	return c, b
}

// stepCycles runs one CPU step and returns how many T-cycles it consumed,
// read off the shared scheduler rather than a per-opcode return value.
func stepCycles(c *CPU, b *bus.Bus) int {
	before := b.Scheduler().Now()
	c.Step()
	return int(b.Scheduler().Now() - before)
}

func TestCPU_NopAndPC(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x00}) // NOP
	if cycles := stepCycles(c, b); cycles != 4 {
		t.Fatalf("NOP cycles got %d want 4", cycles)
	}
	if c.PC != 1 {
		t.Fatalf("PC after NOP got %#04x want 0x0001", c.PC)
	}
}

func TestCPU_LD_A_d8_And_XOR_A(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0x3E, 0x12, 0xAF}) // LD A,0x12; XOR A
	c.Step()                                        // LD
	if c.A != 0x12 {
		t.Fatalf("A after LD got %02x want 12", c.A)
	}
	c.Step() // XOR A
	if c.A != 0x00 {
		t.Fatalf("A after XOR got %02x want 00", c.A)
	}
	if (c.F & 0x80) == 0 { // Z flag
		t.Fatalf("Z flag not set after XOR A")
	}
}

func TestCPU_LD_a16_A_and_LD_A_a16(t *testing.T) {
	// Program: LD A,0x77; LD (0xC000),A; LD A,0x00; LD A,(0xC000)
	prog := []byte{0x3E, 0x77, 0xEA, 0x00, 0xC0, 0x3E, 0x00, 0xFA, 0x00, 0xC0}
	c, b := newCPUWithROM(prog)
	c.Step() // LD A,77
	c.Step() // LD (C000),A
	if a := b.Read(0xC000); a != 0x77 {
		t.Fatalf("WRAM at C000 got %02x want 77", a)
	}
	c.Step() // LD A,00
	c.Step() // LD A,(C000)
	if c.A != 0x77 {
		t.Fatalf("A after LD A,(C000) got %02x want 77", c.A)
	}
}

func TestCPU_JP_and_JR(t *testing.T) {
	// JP to 0x0010 then JR -2 to loop
	prog := []byte{0xC3, 0x10, 0x00} // at 0x0000: JP 0x0010
	rom := make([]byte, 0x8000)
	copy(rom, prog)
	for i := 0x0003; i < 0x0010; i++ {
		rom[i] = 0x00
	}
	// at 0x0010: JR -2 (0xFE), which will hop back to 0x0010 itself (infinite)
	rom[0x0010] = 0x18
	rom[0x0011] = 0xFE
	b := bus.New(rom)
	c := New(b, b.IRQ())
	b.IRQ().Attach(c)

	cycles := stepCycles(c, b) // JP
	if cycles != 16 || c.PC != 0x0010 {
		t.Fatalf("JP cycles=%d PC=%#04x want cycles=16 PC=0x0010", cycles, c.PC)
	}
	pcBefore := c.PC
	cycles = stepCycles(c, b) // JR -2
	if cycles != 12 {
		t.Fatalf("JR cycles got %d want 12", cycles)
	}
	if c.PC != pcBefore { // stays at 0x0010
		t.Fatalf("JR -2 PC got %#04x want %#04x", c.PC, pcBefore)
	}
}

func TestCPU_INC_B_Flags(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0x04, 0x04}) // INC B twice
	c.B = 0x0F
	c.F = 0x10 // carry set initially
	c.Step()
	if c.B != 0x10 {
		t.Fatalf("INC B result got %02x want 10", c.B)
	}
	if (c.F & 0x20) == 0 { // H set
		t.Fatalf("INC B should set H flag")
	}
	if (c.F & 0x10) == 0 { // C preserved
		t.Fatalf("INC B should preserve C flag")
	}
	c.B = 0xFF
	c.Step()
	if c.B != 0x00 || (c.F&0x80) == 0 { // Z set
		t.Fatalf("INC B to 0 should set Z flag, B=%02x, F=%02x", c.B, c.F)
	}
}

func TestCPU_LD_16bit_and_LDH(t *testing.T) {
	// Program:
	// LD HL,0xC000; LD (HL),0x5A; LD A,0x00; LD A,(0xFF00+0x00); LD (0xFF00+1),A
	prog := []byte{
		0x21, 0x00, 0xC0, // LD HL, C000
		0x36, 0x5A, // LD (HL), 5A
		0x3E, 0x00, // LD A, 00
		0xF0, 0x00, // LD A, (FF00+0)
		0xE0, 0x01, // LD (FF00+1), A
	}
	c, b := newCPUWithROM(prog)
	// Select no joypad columns so the lower nibble reads back as 0x0F.
	b.Write(0xFF00, 0x30)
	b.Write(0xFF80, 0xA7) // HRAM base

	c.Step()
	c.Step()
	c.Step()
	c.Step()
	c.Step()
	if v := b.Read(0xC000); v != 0x5A {
		t.Fatalf("WRAM C000 got %02x want 5A", v)
	}
	if v := b.Read(0xFF01); v != c.A {
		t.Fatalf("LDH (FF00+1),A expected write to FF01 with A=%02x got %02x", c.A, v)
	}
}

func TestCPU_CALL_RET(t *testing.T) {
	// 0000: CALL 0005; NOP; NOP; NOP; NOP; RET
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xCD
	rom[0x0001] = 0x05
	rom[0x0002] = 0x00
	for i := 0x0003; i < 0x0005; i++ {
		rom[i] = 0x00
	}
	rom[0x0005] = 0xC9 // RET
	b := bus.New(rom)
	c := New(b, b.IRQ())
	b.IRQ().Attach(c)

	callCycles := stepCycles(c, b) // CALL
	if c.PC != 0x0005 || callCycles != 24 {
		t.Fatalf("PC after CALL got %04x cyc=%d want 0005/24", c.PC, callCycles)
	}
	retCycles := stepCycles(c, b)
	if c.PC != 0x0003 || retCycles != 16 {
		t.Fatalf("RET did not return to 0003; PC=%04x cyc=%d", c.PC, retCycles)
	}
}

func TestCPU_HaltWakesOnPendingInterruptRegardlessOfIME(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x76}) // HALT
	c.ime = false
	c.Step()
	if !c.halted {
		t.Fatalf("expected CPU to be halted after HALT")
	}
	b.IRQ().WriteMMIO(0xFF, byte(1)) // IE: VBlank enabled
	b.IRQ().Raise(1)                 // VBlank pending
	c.Step()
	if c.halted {
		t.Fatalf("expected CPU to wake from HALT once IE&IF != 0, even with IME clear")
	}
}

func TestCPU_EIEnablesIMEImmediately(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0xFB, 0x00}) // EI; NOP
	if c.IME() {
		t.Fatalf("IME should start clear")
	}
	c.Step() // EI
	if !c.IME() {
		t.Fatalf("EI should enable IME immediately, no one-instruction delay")
	}
}

func TestCPU_PushPop(t *testing.T) {
	c, b := newCPUWithROM([]byte{0xC5, 0xD1}) // PUSH BC; POP DE
	c.B, c.C = 0x12, 0x34
	c.SP = 0xFFFE
	pushCycles := stepCycles(c, b)
	if pushCycles != 16 {
		t.Fatalf("PUSH BC cycles got %d want 16", pushCycles)
	}
	if c.SP != 0xFFFC {
		t.Fatalf("SP after PUSH got %#04x want 0xFFFC", c.SP)
	}
	popCycles := stepCycles(c, b)
	if popCycles != 12 {
		t.Fatalf("POP DE cycles got %d want 12", popCycles)
	}
	if c.D != 0x12 || c.E != 0x34 {
		t.Fatalf("POP DE got D=%02x E=%02x want 12/34", c.D, c.E)
	}
}

func TestCPU_ResetNoBootStartsAtCartridgeEntryPoint(t *testing.T) {
	c, _ := newCPUWithROM(nil)
	c.PC = 0x1234 // disturb the zero-value default New() leaves it at
	c.ResetNoBoot()
	if c.PC != 0x0100 {
		t.Fatalf("PC after ResetNoBoot got %#04x want 0x0100", c.PC)
	}
}
