// Package bus implements the memory bus: address decode across cartridge,
// VRAM/OAM (via the PPU), WRAM, HRAM, and the MMIO register window, and the
// scheduler tick that every read/write drives.
package bus

import (
	"fmt"
	"io"

	"github.com/kestrelbit/gbcore/internal/apu"
	"github.com/kestrelbit/gbcore/internal/cart"
	"github.com/kestrelbit/gbcore/internal/irq"
	"github.com/kestrelbit/gbcore/internal/joypad"
	"github.com/kestrelbit/gbcore/internal/ppu"
	"github.com/kestrelbit/gbcore/internal/scheduler"
	"github.com/kestrelbit/gbcore/internal/timer"
)

// Bus wires the CPU-visible address space to the cartridge and every
// scheduler-driven component. Every Read/Write advances time by 4 T-cycles
// (scheduler.AddCycles, scheduler.Step, apu.Step) before returning, which is
// how the rest of the system stays in step with the CPU.
type Bus struct {
	sched *scheduler.Scheduler
	irqc  *irq.Controller
	timer *timer.Timer
	joyp  *joypad.Joypad
	apu   *apu.APU
	ppu   *ppu.PPU
	cart  cart.Mapper

	wram [0x2000]byte // 0xC000-0xDFFF, single bank (WRAM bank select is a stub)
	hram [0x7F]byte   // 0xFF80-0xFFFE

	wramBank byte // 0xFF70, CGB stub: latched only, bank 0 reads back as 1
	vramBank byte // 0xFF4F, CGB stub: latched only, no second VRAM bank exists

	bootROM     []byte
	bootEnabled bool

	sb           byte // 0xFF01
	sc           byte // 0xFF02
	serialWriter io.Writer
}

// New constructs a Bus around rom, selecting its mapper from the cartridge
// header.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.New(rom))
}

// NewWithCartridge wires a Bus around an already-constructed mapper, used
// when the caller wants to control cartridge selection directly.
func NewWithCartridge(c cart.Mapper) *Bus {
	sched := scheduler.New()
	b := &Bus{cart: c, sched: sched}
	b.irqc = irq.New(nil)
	b.timer = timer.New(sched, b.irqc)
	b.joyp = joypad.New()
	b.apu = apu.New(sched)
	b.ppu = ppu.New(sched, b.irqc)
	return b
}

// Scheduler returns the shared scheduler, so the CPU and the top-level
// emulator loop can drive it.
func (b *Bus) Scheduler() *scheduler.Scheduler { return b.sched }

// IRQ returns the interrupt controller, so the CPU can be attached to it
// and the top-level loop can call Step after every CPU instruction.
func (b *Bus) IRQ() *irq.Controller { return b.irqc }

// PPU returns the picture processing unit, for framebuffer wiring.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// APU returns the sound unit, for audio device wiring.
func (b *Bus) APU() *apu.APU { return b.apu }

// Cart returns the cartridge mapper, for save-RAM persistence.
func (b *Bus) Cart() cart.Mapper { return b.cart }

// SetKeyState presses or releases a joypad button.
func (b *Bus) SetKeyState(key joypad.Key, pressed bool) { b.joyp.SetKeyState(key, pressed) }

// SetSerialWriter installs a sink for bytes sent out over the serial port.
// The port is a stub (SPEC_FULL.md §7): no real link-cable timing or IRQ,
// just an immediate latch-and-clear.
func (b *Bus) SetSerialWriter(w io.Writer) { b.serialWriter = w }

// LoadBootROM installs data as the boot ROM overlay. Classic boot ROMs are
// 256 bytes overlaying 0x0000-0x00FF; the CGB boot ROM additionally
// overlays 0x0200-0x08FF once in cart header space.
func (b *Bus) LoadBootROM(data []byte) error {
	if len(data) < 0x100 {
		return fmt.Errorf("bus: boot ROM too short: %d bytes", len(data))
	}
	b.bootROM = data
	b.bootEnabled = true
	return nil
}

func (b *Bus) bootROMOverlay(addr uint16) (byte, bool) {
	if !b.bootEnabled {
		return 0, false
	}
	if addr < 0x100 {
		return b.bootROM[addr], true
	}
	if addr >= 0x200 && addr <= 0x8FF && int(addr) < len(b.bootROM) {
		return b.bootROM[addr], true
	}
	return 0, false
}

// tick advances time by one memory-bus beat: 4 T-cycles of scheduler time,
// draining any due scheduler events, then stepping the APU's mixer.
func (b *Bus) tick() {
	b.sched.AddCycles(4)
	b.sched.Step()
	b.apu.Step()
}

// InternalCycle spends 4 T-cycles with no address access, for the CPU's
// internal-only M-cycles (stack pointer adjustment, taken branches, 16-bit
// register ALU ops) that real SM83 opcodes spend beyond their actual
// memory-access count.
func (b *Bus) InternalCycle() { b.tick() }

// Read reads one byte from addr, then ticks 4 T-cycles.
func (b *Bus) Read(addr uint16) byte {
	v := b.read(addr)
	b.tick()
	return v
}

func (b *Bus) read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if v, ok := b.bootROMOverlay(addr); ok {
			return v
		}
		return b.cart.Read(addr)
	case addr <= 0x9FFF:
		return b.ppu.ReadVRAM(addr - 0x8000)
	case addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr <= 0xFDFF:
		return b.wram[addr-0xE000]
	case addr <= 0xFE9F:
		return b.ppu.ReadOAM(byte(addr - 0xFE00))
	case addr <= 0xFEFF:
		return 0
	case addr == 0xFFFF:
		return b.irqc.ReadMMIO(0xFF)
	case addr >= 0xFF80:
		return b.hram[addr-0xFF80]
	default:
		return b.readMMIO(addr)
	}
}

func (b *Bus) readMMIO(addr uint16) byte {
	low := byte(addr)
	switch {
	case low == 0x00:
		return b.joyp.Read()
	case low == 0x01:
		return b.sb
	case low == 0x02:
		return 0x7E | b.sc
	case low >= 0x04 && low <= 0x07:
		return b.timer.ReadMMIO(low)
	case low == 0x0F:
		return b.irqc.ReadMMIO(low)
	case low >= 0x10 && low <= 0x3F:
		return b.apu.ReadMMIO(addr)
	case low >= 0x40 && low <= 0x4B:
		return b.ppu.ReadMMIO(addr)
	case low == 0x4F:
		return 0xFE | b.vramBank
	case low == 0x70:
		return 0xF8 | b.wramBank
	default:
		return 0xFF
	}
}

// Write writes value to addr, then ticks 4 T-cycles.
func (b *Bus) Write(addr uint16, value byte) {
	b.write(addr, value)
	b.tick()
}

func (b *Bus) write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr <= 0x9FFF:
		b.ppu.WriteVRAM(addr-0x8000, value)
	case addr <= 0xBFFF:
		b.cart.Write(addr, value)
	case addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
	case addr <= 0xFDFF:
		b.wram[addr-0xE000] = value
	case addr <= 0xFE9F:
		b.ppu.WriteOAM(byte(addr-0xFE00), value)
	case addr <= 0xFEFF:
		// unused region, writes ignored
	case addr == 0xFFFF:
		b.irqc.WriteMMIO(0xFF, value)
	case addr >= 0xFF80:
		b.hram[addr-0xFF80] = value
	default:
		b.writeMMIO(addr, value)
	}
}

func (b *Bus) writeMMIO(addr uint16, value byte) {
	low := byte(addr)
	switch {
	case low == 0x00:
		b.joyp.Write(value)
	case low == 0x01:
		b.sb = value
	case low == 0x02:
		b.sc = value
		b.transferSerial()
	case low >= 0x04 && low <= 0x07:
		b.timer.WriteMMIO(low, value)
	case low == 0x0F:
		b.irqc.WriteMMIO(low, value)
	case low >= 0x10 && low <= 0x3F:
		b.apu.WriteMMIO(addr, value)
	case low == 0x46:
		b.dmaTransfer(value)
	case low >= 0x40 && low <= 0x4B:
		b.ppu.WriteMMIO(addr, value)
	case low == 0x4F:
		b.vramBank = value & 1
	case low == 0x50:
		if value&1 != 0 {
			b.bootEnabled = false
		}
	case low == 0x70:
		b.wramBank = value & 7
		if b.wramBank == 0 {
			b.wramBank = 1
		}
	}
}

// transferSerial is a stub (SPEC_FULL.md §7): a real transfer-start bit
// triggers an immediate byte hand-off to the writer, if any, and clears
// itself the same instant. No clock timing, no IRQ.
func (b *Bus) transferSerial() {
	if b.sc&0x80 == 0 {
		return
	}
	if b.serialWriter != nil {
		b.serialWriter.Write([]byte{b.sb})
	}
	b.sc &^= 0x80
}

// dmaTransfer copies 160 bytes from (value<<8) into OAM. The source bytes
// are fetched via ordinary bus reads, which tick cycles the normal way;
// the OAM side of the copy bypasses Write since it isn't a CPU-visible bus
// access.
func (b *Bus) dmaTransfer(value byte) {
	src := uint16(value) << 8
	for i := uint16(0); i < 0xA0; i++ {
		v := b.Read(src + i)
		b.ppu.WriteOAM(byte(i), v)
	}
}
