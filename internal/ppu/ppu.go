// Package ppu implements the DMG picture generation unit: VRAM/OAM storage,
// the LCDC/STAT/LY/LYC/palette/scroll registers, the scanline mode state
// machine (Search/Transfer/HBlank/VBlank) driven by the shared scheduler,
// and atomic end-of-Transfer scanline rendering into an ARGB8888 buffer.
package ppu

import (
	"github.com/kestrelbit/gbcore/internal/irq"
	"github.com/kestrelbit/gbcore/internal/scheduler"
)

// Mode is the current scanline mode, stored in STAT bits 0-1.
type Mode byte

const (
	ModeHBlank Mode = iota
	ModeVBlank
	ModeSearch
	ModeTransfer
)

var colorPalette = [4]uint32{0xFFFFFFFF, 0xFF606060, 0xFF202020, 0xFF000000}

type lcdc struct {
	enableBG      bool
	enableOBJ     bool
	objDoubleSize bool
	bgMapSelect   int
	bgWinTileSel  int
	enableWin     bool
	winMapSelect  int
	enableDisplay bool
}

type stat struct {
	mode            Mode
	coincidence     bool
	hblankIRQ       bool
	vblankIRQ       bool
	searchIRQ       bool
	coincidenceIRQ  bool
}

type sprite struct {
	x, y      byte
	tile      byte
	palette   int
	flipX     bool
	flipY     bool
	behindBG  bool
}

// PPU owns VRAM, OAM, the mode FSM, and scanline rendering.
type PPU struct {
	sched *scheduler.Scheduler
	irqc  *irq.Controller

	vram [0x2000]byte
	oam  [0xA0]byte

	lcdc lcdc
	stat stat

	scy, scx byte
	bgp      byte
	obp      [2]byte
	ly, lyc  byte
	wy, wx   byte

	bgIsColor0 [160]bool

	oamDirty bool
	objs     [40]sprite
	buckets  [256]struct {
		count int
		list  [10]*sprite
	}
	sortedObjs [144]struct {
		count int
		list  [10]*sprite
	}

	hblankIRQOld, vblankIRQOld, searchIRQOld, coincidenceIRQOld bool

	buffer []uint32 // 160*144 ARGB8888, set by SetBuffer

	handle scheduler.Handle
}

func New(sched *scheduler.Scheduler, irqc *irq.Controller) *PPU {
	p := &PPU{sched: sched, irqc: irqc}
	p.Reset()
	return p
}

// SetBuffer installs the 160x144 ARGB8888 destination buffer that
// RenderScanline writes into. Call before the first Schedule-driven frame.
func (p *PPU) SetBuffer(buf []uint32) { p.buffer = buf }

func (p *PPU) Reset() {
	p.vram = [0x2000]byte{}
	p.oam = [0xA0]byte{}
	p.lcdc = lcdc{}
	p.stat = stat{mode: ModeSearch}
	p.scy, p.scx, p.bgp = 0, 0, 0
	p.obp = [2]byte{}
	p.ly, p.lyc = 0, 0
	p.wy, p.wx = 0, 0
	p.hblankIRQOld, p.vblankIRQOld, p.searchIRQOld, p.coincidenceIRQOld = false, false, false, false
	p.oamDirty = true
	p.sched.Cancel(p.handle)
	p.schedule(ModeTransfer, 0)
	p.searchAndPrioritizeOBJs()
}

func (p *PPU) ReadVRAM(offset uint16) byte { return p.vram[offset] }
func (p *PPU) WriteVRAM(offset uint16, value byte) { p.vram[offset] = value }
func (p *PPU) ReadOAM(offset byte) byte { return p.oam[offset] }

func (p *PPU) WriteOAM(offset byte, value byte) {
	p.oam[offset] = value
	s := &p.objs[offset>>2]
	switch offset & 3 {
	case 0:
		if s.y != value {
			p.oamDirty = true
		}
		s.y = value
	case 1:
		if s.x != value {
			p.oamDirty = true
		}
		s.x = value
	case 2:
		s.tile = value
	case 3:
		s.palette = int((value >> 4) & 1)
		s.flipX = value&(1<<5) != 0
		s.flipY = value&(1<<6) != 0
		s.behindBG = value&(1<<7) != 0
	}
}

// ReadMMIO reads an LCD register at its absolute address (0xFF40-0xFF4B).
func (p *PPU) ReadMMIO(addr uint16) byte {
	switch addr {
	case 0xFF40:
		return p.readLCDC()
	case 0xFF41:
		return p.readSTAT()
	case 0xFF42:
		return p.scy
	case 0xFF43:
		return p.scx
	case 0xFF44:
		return p.ly
	case 0xFF45:
		return p.lyc
	case 0xFF47:
		return p.bgp
	case 0xFF48:
		return p.obp[0]
	case 0xFF49:
		return p.obp[1]
	case 0xFF4A:
		return p.wy
	case 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// WriteMMIO writes an LCD register.
func (p *PPU) WriteMMIO(addr uint16, value byte) {
	switch addr {
	case 0xFF40:
		p.writeLCDC(value)
	case 0xFF41:
		p.stat.hblankIRQ = value&8 != 0
		p.stat.vblankIRQ = value&16 != 0
		p.stat.searchIRQ = value&32 != 0
		p.stat.coincidenceIRQ = value&64 != 0
		p.checkSTATInterrupt()
	case 0xFF42:
		p.scy = value
	case 0xFF43:
		p.scx = value
	case 0xFF45:
		p.lyc = value
		p.updateLYC()
	case 0xFF47:
		p.bgp = value
	case 0xFF48:
		p.obp[0] = value
	case 0xFF49:
		p.obp[1] = value
	case 0xFF4A:
		p.wy = value
	case 0xFF4B:
		p.wx = value
	}
}

func (p *PPU) readLCDC() byte {
	var v byte
	if p.lcdc.enableBG {
		v |= 1
	}
	if p.lcdc.enableOBJ {
		v |= 2
	}
	if p.lcdc.objDoubleSize {
		v |= 4
	}
	v |= byte(p.lcdc.bgMapSelect) << 3
	v |= byte(p.lcdc.bgWinTileSel) << 4
	if p.lcdc.enableWin {
		v |= 32
	}
	v |= byte(p.lcdc.winMapSelect) << 6
	if p.lcdc.enableDisplay {
		v |= 128
	}
	return v
}

func (p *PPU) writeLCDC(value byte) {
	p.lcdc.enableBG = value&1 != 0
	p.lcdc.enableOBJ = value&2 != 0
	p.lcdc.objDoubleSize = value&4 != 0
	p.lcdc.bgMapSelect = int((value >> 3) & 1)
	p.lcdc.bgWinTileSel = int((value >> 4) & 1)
	p.lcdc.enableWin = value&32 != 0
	p.lcdc.winMapSelect = int((value >> 6) & 1)
	p.lcdc.enableDisplay = value&128 != 0
}

func (p *PPU) readSTAT() byte {
	v := byte(p.stat.mode)
	if p.stat.coincidence {
		v |= 4
	}
	if p.stat.hblankIRQ {
		v |= 8
	}
	if p.stat.vblankIRQ {
		v |= 16
	}
	if p.stat.searchIRQ {
		v |= 32
	}
	if p.stat.coincidenceIRQ {
		v |= 64
	}
	return 0x80 | v
}

// LY/BGP/etc. accessors for the renderer and for debugging frontends.
func (p *PPU) LY() byte   { return p.ly }
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp[0] }
func (p *PPU) OBP1() byte { return p.obp[1] }
