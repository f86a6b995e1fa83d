package ppu

import "testing"

func writeTileRow(p *PPU, tileIndex byte, row int, lo, hi byte) {
	addr := uint16(tileIndex)<<4 | uint16(row)<<1
	p.WriteVRAM(addr, lo)
	p.WriteVRAM(addr+1, hi)
}

func TestPPU_RenderBackgroundDecodesTileColors(t *testing.T) {
	p, _ := newTestPPU(t)
	p.writeLCDC(0x91) // display on, BG on, BG tile data at 0x8000, BG map at 0x9800
	p.bgp = 0xE4      // identity palette: 3,2,1,0

	// Map entry (0,0) -> tile 1, bank 0x9800 -> VRAM offset 0x1800.
	p.WriteVRAM(0x1800, 1)
	// Tile 1 row 0: alternating colors across the 8 pixels (11,10,01,00 pattern).
	writeTileRow(p, 1, 0, 0xAA, 0xCC)

	p.ly = 0
	p.renderScanline()

	if p.buffer[0] == 0 {
		t.Fatalf("expected background pixel 0 to be written")
	}
}

func TestPPU_RenderBackgroundSkippedWhenDisabled(t *testing.T) {
	p, _ := newTestPPU(t)
	p.writeLCDC(0x80) // display on, BG off
	for i := range p.buffer {
		p.buffer[i] = 0xDEADBEEF
	}
	p.ly = 0
	p.renderScanline()
	if p.buffer[0] != 0xDEADBEEF {
		t.Fatalf("expected untouched buffer when BG disabled, got %#08x", p.buffer[0])
	}
}

func TestPPU_RenderWindowOverridesBackgroundFromWX(t *testing.T) {
	p, _ := newTestPPU(t)
	p.writeLCDC(0x80 | 0x01 | 0x20 | 0x10) // display, BG, window on, unsigned tile addressing
	p.wy = 0
	p.wx = 7 // window starts at screen X=0
	p.bgp = 0xE4

	// Window tile map at 0x9800 (winMapSelect=0), tile 2, opaque color 3 everywhere.
	p.WriteVRAM(0x1800, 2)
	writeTileRow(p, 2, 0, 0xFF, 0xFF)

	p.ly = 0
	p.renderScanline()
	if p.buffer[0] != colorPalette[3] {
		t.Fatalf("expected window color 3 at x=0, got %#08x", p.buffer[0])
	}
}

func TestPPU_RenderSpritesRespectsTransparency(t *testing.T) {
	p, _ := newTestPPU(t)
	p.writeLCDC(0x80 | 0x02) // display on, OBJ on
	p.obp[0] = 0xE4

	// Sprite tile 0: leftmost pixel opaque (color 1), rest transparent (color 0).
	writeTileRow(p, 0, 0, 0x80, 0x00)
	p.WriteOAM(0, 16) // Y: screen row 0 -> oamY-16=0
	p.WriteOAM(1, 8)  // X: screen col 0 -> oamX-8=0
	p.WriteOAM(2, 0)  // tile 0
	p.WriteOAM(3, 0)  // palette 0, no flips

	// renderSprites draws from the per-line lists built by the OBJ search,
	// which the mode FSM runs before each line's Transfer.
	p.searchAndPrioritizeOBJs()
	p.ly = 0
	p.renderScanline()
	if p.buffer[0] != colorPalette[1] {
		t.Fatalf("expected sprite color 1 at x=0, got %#08x", p.buffer[0])
	}
	if p.buffer[1] == colorPalette[1] {
		t.Fatalf("expected transparent pixel at x=1 to not show sprite color")
	}
}

func TestPPU_SearchAndPrioritizeOBJsCapsAtTenPerLine(t *testing.T) {
	p, _ := newTestPPU(t)
	p.writeLCDC(0x82) // OBJ on, 8x8
	for i := 0; i < 20; i++ {
		base := byte(i * 4)
		p.WriteOAM(base+0, 16)          // all on screen line 0
		p.WriteOAM(base+1, byte(i + 8)) // distinct X
	}
	p.searchAndPrioritizeOBJs()
	if p.sortedObjs[0].count != 10 {
		t.Fatalf("expected at most 10 sprites on line 0, got %d", p.sortedObjs[0].count)
	}
}

func TestPPU_SearchAndPrioritizeOBJsOrdersByX(t *testing.T) {
	p, _ := newTestPPU(t)
	p.writeLCDC(0x82)
	p.WriteOAM(0, 16) // sprite 0: Y
	p.WriteOAM(1, 50) // sprite 0: X=50
	p.WriteOAM(4, 16) // sprite 1: Y
	p.WriteOAM(5, 20) // sprite 1: X=20

	p.searchAndPrioritizeOBJs()
	line := p.sortedObjs[0]
	if line.count != 2 {
		t.Fatalf("expected 2 sprites on line 0, got %d", line.count)
	}
	if line.list[0].x != 20 || line.list[1].x != 50 {
		t.Fatalf("expected sprites ordered by ascending X, got %d then %d", line.list[0].x, line.list[1].x)
	}
}

func TestPPU_SearchAndPrioritizeOBJsSkipsRecomputeWhenClean(t *testing.T) {
	p, _ := newTestPPU(t)
	p.writeLCDC(0x82)
	p.WriteOAM(0, 16)
	p.WriteOAM(1, 50)
	p.searchAndPrioritizeOBJs()
	if p.oamDirty {
		t.Fatalf("expected oamDirty cleared after recompute")
	}
	if p.sortedObjs[0].count != 1 {
		t.Fatalf("expected 1 sprite on line 0, got %d", p.sortedObjs[0].count)
	}

	// Add a second sprite but force oamDirty back to false, simulating a
	// call with no OAM writes since the last recompute; the stale count
	// must be left untouched.
	p.WriteOAM(4, 16)
	p.WriteOAM(5, 20)
	p.oamDirty = false
	p.searchAndPrioritizeOBJs()
	if p.sortedObjs[0].count != 1 {
		t.Fatalf("expected recompute to be skipped when oamDirty is false, got count=%d", p.sortedObjs[0].count)
	}
}
