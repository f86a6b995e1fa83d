package ppu

// renderScanline draws the current line (p.ly) into the destination
// buffer in one shot, at the moment Transfer ends. The real PPU streams
// pixels out over the 172-cycle Transfer window; this emulator instead
// renders the whole line atomically, which every consumer of the pixel
// buffer (a full-frame callback) cannot tell apart from the real timing.
func (p *PPU) renderScanline() {
	if p.buffer == nil || p.ly >= 144 {
		return
	}
	for x := range p.bgIsColor0 {
		p.bgIsColor0[x] = true
	}
	if p.lcdc.enableBG {
		p.renderBackground()
	}
	if p.lcdc.enableWin && p.ly >= p.wy {
		p.renderWindow()
	}
	if p.lcdc.enableOBJ {
		p.renderSprites()
	}
}

func (p *PPU) tileRowAddr(tile byte, tileY int, signedMode bool) uint16 {
	if signedMode {
		return uint16(0x1000 + int(int8(tile))*16 + tileY*2)
	}
	return uint16(tile)<<4 | uint16(tileY)<<1
}

func (p *PPU) decodeTileRow(rowAddr uint16) [8]byte {
	lo := p.vram[rowAddr]
	hi := p.vram[rowAddr+1]
	var px [8]byte
	for bit := 0; bit < 8; bit++ {
		shift := uint(7 - bit)
		px[bit] = (lo>>shift)&1 | ((hi>>shift)&1)<<1
	}
	return px
}

func (p *PPU) renderBackground() {
	line := p.buffer[int(p.ly)*160 : int(p.ly)*160+160 : int(p.ly)*160+160]
	mapBase := uint16(0x1800)
	if p.lcdc.bgMapSelect == 1 {
		mapBase = 0x1C00
	}
	signedMode := p.lcdc.bgWinTileSel == 0

	mapY := int(p.scy) + int(p.ly)
	tileRow := (mapY / 8) & 31
	tileY := mapY & 7

	for screenX := 0; screenX < 160; screenX++ {
		mapX := (int(p.scx) + screenX) & 255
		tileCol := (mapX / 8) & 31
		tileIdx := p.vram[mapBase+uint16(tileRow)*32+uint16(tileCol)]
		rowAddr := p.tileRowAddr(tileIdx, tileY, signedMode)
		px := p.decodeTileRow(rowAddr)
		colorIdx := px[mapX&7]
		if colorIdx == 0 {
			p.bgIsColor0[screenX] = true
		} else {
			p.bgIsColor0[screenX] = false
		}
		line[screenX] = colorPalette[(p.bgp>>(colorIdx*2))&3]
	}
}

func (p *PPU) renderWindow() {
	screenXStart := int(p.wx) - 7
	if screenXStart >= 160 {
		return
	}
	line := p.buffer[int(p.ly)*160 : int(p.ly)*160+160 : int(p.ly)*160+160]
	mapBase := uint16(0x1800)
	if p.lcdc.winMapSelect == 1 {
		mapBase = 0x1C00
	}
	signedMode := p.lcdc.bgWinTileSel == 0

	mapY := int(p.ly) - int(p.wy)
	tileRow := (mapY / 8) & 31
	tileY := mapY & 7

	for mapX := 0; mapX+screenXStart < 160; mapX++ {
		screenX := mapX + screenXStart
		if screenX < 0 {
			continue
		}
		tileCol := (mapX / 8) & 31
		tileIdx := p.vram[mapBase+uint16(tileRow)*32+uint16(tileCol)]
		rowAddr := p.tileRowAddr(tileIdx, tileY, signedMode)
		px := p.decodeTileRow(rowAddr)
		colorIdx := px[mapX&7]
		p.bgIsColor0[screenX] = colorIdx == 0
		line[screenX] = colorPalette[(p.bgp>>(colorIdx*2))&3]
	}
}

func (p *PPU) renderSprites() {
	line := p.buffer[int(p.ly)*160 : int(p.ly)*160+160 : int(p.ly)*160+160]
	bucket := &p.sortedObjs[p.ly]
	height := 8
	if p.lcdc.objDoubleSize {
		height = 16
	}

	// Draw lowest-priority sprite first so higher-priority sprites
	// (earlier in the bucket list) overwrite them, per the bucket-sort
	// ordering already resolved by searchAndPrioritizeOBJs.
	for i := bucket.count - 1; i >= 0; i-- {
		s := bucket.list[i]
		spriteY := int(p.ly) - (int(s.y) - 16)
		if s.flipY {
			spriteY = height - 1 - spriteY
		}
		tile := s.tile
		if height == 16 {
			tile &^= 1
			if spriteY >= 8 {
				tile |= 1
				spriteY -= 8
			}
		}
		rowAddr := uint16(tile)<<4 | uint16(spriteY)<<1
		px := p.decodeTileRow(rowAddr)

		palette := p.obp[s.palette]
		for col := 0; col < 8; col++ {
			screenX := int(s.x) - 8 + col
			if screenX < 0 || screenX >= 160 {
				continue
			}
			srcCol := col
			if s.flipX {
				srcCol = 7 - col
			}
			colorIdx := px[srcCol]
			if colorIdx == 0 {
				continue
			}
			if s.behindBG && !p.bgIsColor0[screenX] {
				continue
			}
			line[screenX] = colorPalette[(palette>>(colorIdx*2))&3]
		}
	}
}

// searchAndPrioritizeOBJs rebuilds, for every scanline, the list of up to
// ten sprites visible on that line, ordered by X coordinate with OAM
// index as the tie-break (lower OAM index wins). It only reruns when OAM
// has been written to since the last call.
func (p *PPU) searchAndPrioritizeOBJs() {
	if !p.oamDirty {
		return
	}
	p.oamDirty = false

	height := 8
	if p.lcdc.objDoubleSize {
		height = 16
	}
	for line := 0; line < 144; line++ {
		for i := range p.buckets {
			p.buckets[i].count = 0
		}
		for oamIdx := range p.objs {
			s := &p.objs[oamIdx]
			topY := int(s.y) - 16
			if line < topY || line >= topY+height {
				continue
			}
			b := &p.buckets[s.x]
			if b.count >= 10 {
				continue
			}
			b.list[b.count] = s
			b.count++
		}
		dst := &p.sortedObjs[line]
		dst.count = 0
		for bx := 0; bx < 256 && dst.count < 10; bx++ {
			b := &p.buckets[bx]
			for i := 0; i < b.count && dst.count < 10; i++ {
				dst.list[dst.count] = b.list[i]
				dst.count++
			}
		}
	}
}
