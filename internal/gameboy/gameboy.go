// Package gameboy wires the scheduler, CPU, bus, and every MMIO-mapped
// component into the top-level Emulator: the one type the host shell
// (cmd/gbemu) and any other embedder talks to.
package gameboy

import (
	"fmt"
	"os"

	"github.com/kestrelbit/gbcore/internal/audiodev"
	"github.com/kestrelbit/gbcore/internal/bus"
	"github.com/kestrelbit/gbcore/internal/cart"
	"github.com/kestrelbit/gbcore/internal/cpu"
	"github.com/kestrelbit/gbcore/internal/joypad"
)

// cyclesPerFrame is the DMG T-cycle count of one 59.7 Hz video frame
// (154 scanlines x 456 cycles).
const cyclesPerFrame = 70224

// Emulator wires a CPU, bus, and the bus's components around one loaded
// cartridge. It is unusable until LoadGame succeeds.
type Emulator struct {
	bus *bus.Bus
	cpu *cpu.CPU

	savePath string

	pendingBoot []byte
}

// New returns an Emulator with nothing loaded yet.
func New() *Emulator {
	return &Emulator{}
}

// LoadBootROM installs a boot ROM image: 256 bytes (classic) or 2,304
// bytes (CGB, occupying 0x0000-0x00FF and 0x0200-0x08FF). Any other size
// is an error. May be called before or after LoadGame.
func (e *Emulator) LoadBootROM(data []byte) error {
	if len(data) != 0x100 && len(data) != 0x900 {
		return fmt.Errorf("gameboy: boot ROM must be 256 or 2304 bytes, got %d", len(data))
	}
	if e.bus == nil {
		e.pendingBoot = data
		return nil
	}
	return e.bus.LoadBootROM(data)
}

// LoadGame validates rom, selects its mapper, loads savePath's battery RAM
// if the mapper supports it, and wires a fresh CPU and bus around it. Any
// previously loaded game is discarded.
func (e *Emulator) LoadGame(rom []byte, savePath string) error {
	if len(rom) == 0 || len(rom)%0x4000 != 0 {
		return fmt.Errorf("gameboy: ROM size %d is not a non-zero multiple of 16 KiB", len(rom))
	}
	if len(rom) > 4*1024*1024 {
		return fmt.Errorf("gameboy: ROM size %d exceeds 4 MiB", len(rom))
	}

	mapper := cart.New(rom)
	if bb, ok := mapper.(cart.BatteryBacked); ok && savePath != "" {
		if data, err := os.ReadFile(savePath); err == nil {
			bb.LoadRAM(data)
		}
	}

	b := bus.NewWithCartridge(mapper)
	c := cpu.New(b, b.IRQ())
	b.IRQ().Attach(c)
	c.ResetNoBoot()

	e.bus = b
	e.cpu = c
	e.savePath = savePath

	if e.pendingBoot != nil {
		if err := b.LoadBootROM(e.pendingBoot); err != nil {
			return err
		}
		c.SetPC(0x0000)
		e.pendingBoot = nil
	}
	return nil
}

// SetAudioDevice attaches the audio sink the APU pulls samples into. No-op
// until a game is loaded.
func (e *Emulator) SetAudioDevice(d audiodev.Device) {
	if e.bus != nil {
		e.bus.APU().SetAudioDevice(d)
	}
}

// SetKeyState presses or releases a joypad button. No-op until a game is
// loaded.
func (e *Emulator) SetKeyState(key joypad.Key, pressed bool) {
	if e.bus != nil {
		e.bus.SetKeyState(key, pressed)
	}
}

// Frame runs exactly 70,224 T-cycles (one instruction of slop allowed,
// since an instruction's bus accesses are indivisible), writing ARGB8888
// pixels into buffer, which must be at least 160x144 long. No-op until a
// game is loaded.
func (e *Emulator) Frame(buffer []uint32) {
	if e.bus == nil || e.cpu == nil {
		return
	}
	e.bus.PPU().SetBuffer(buffer)
	target := e.bus.Scheduler().Now() + cyclesPerFrame
	for e.bus.Scheduler().Now() < target {
		e.cpu.Step()
		e.bus.IRQ().Step()
	}
}

// Close flushes battery RAM to the save path passed to LoadGame, if the
// loaded mapper is battery-backed. Safe to call with nothing loaded.
func (e *Emulator) Close() error {
	if e.bus == nil || e.savePath == "" {
		return nil
	}
	bb, ok := e.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil
	}
	return os.WriteFile(e.savePath, bb.SaveRAM(), 0o644)
}
