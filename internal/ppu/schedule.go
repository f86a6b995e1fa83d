package ppu

import "github.com/kestrelbit/gbcore/internal/irq"

const (
	searchCycles   = 80
	transferCycles = 172
	hblankCycles   = 204
	vblankCycles   = 456
)

// schedule sets the current mode, checks for a STAT interrupt on the
// transition, then re-arms the scheduler for the next mode change.
// cyclesLate is how far past the ideal transition time this call landed;
// it is subtracted from the next period so drift does not accumulate.
func (p *PPU) schedule(mode Mode, cyclesLate int) {
	p.stat.mode = mode
	p.checkSTATInterrupt()

	switch mode {
	case ModeHBlank:
		p.handle = p.sched.Add(hblankCycles-cyclesLate, func(late int) {
			p.ly++
			p.updateLYC()
			if p.ly == 144 {
				p.irqc.Raise(irq.VBlank)
				p.schedule(ModeVBlank, late)
			} else {
				p.searchAndPrioritizeOBJs()
				p.schedule(ModeSearch, late)
			}
		})
	case ModeVBlank:
		p.handle = p.sched.Add(vblankCycles-cyclesLate, func(late int) {
			p.ly++
			p.updateLYC()
			if p.ly == 154 {
				p.ly = 0
				p.updateLYC()
				p.searchAndPrioritizeOBJs()
				p.schedule(ModeSearch, late)
			} else {
				p.schedule(ModeVBlank, late)
			}
		})
	case ModeSearch:
		p.handle = p.sched.Add(searchCycles-cyclesLate, func(late int) {
			p.schedule(ModeTransfer, late)
		})
	case ModeTransfer:
		p.handle = p.sched.Add(transferCycles-cyclesLate, func(late int) {
			p.renderScanline()
			p.schedule(ModeHBlank, late)
		})
	}
}

func (p *PPU) updateLYC() {
	p.stat.coincidence = p.ly == p.lyc
	p.checkSTATInterrupt()
}

// checkSTATInterrupt recomputes the four STAT IRQ lines and raises
// irq.LCDStat only on a false-to-true transition of their logical OR,
// matching the real hardware's edge-triggered STAT line.
func (p *PPU) checkSTATInterrupt() {
	hblank := p.stat.hblankIRQ && p.stat.mode == ModeHBlank
	vblank := p.stat.vblankIRQ && p.stat.mode == ModeVBlank
	search := p.stat.searchIRQ && p.stat.mode == ModeSearch
	coincidence := p.stat.coincidenceIRQ && p.stat.coincidence

	line := hblank || vblank || search || coincidence
	old := p.hblankIRQOld || p.vblankIRQOld || p.searchIRQOld || p.coincidenceIRQOld

	p.hblankIRQOld = hblank
	p.vblankIRQOld = vblank
	p.searchIRQOld = search
	p.coincidenceIRQOld = coincidence

	if line && !old {
		p.irqc.Raise(irq.LCDStat)
	}
}
