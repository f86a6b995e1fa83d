package apu

import "github.com/kestrelbit/gbcore/internal/scheduler"

// Noise is channel 4: a linear-feedback shift register clocked at a rate
// derived from a divisor ratio and shift, producing pseudo-random output.
type Noise struct {
	sched *scheduler.Scheduler

	env   envelope
	len   length
	lfsr  uint16

	shift  byte // 0-15
	ratio  byte // 0-7, dividing ratio code
	width7 bool // true selects the 7-bit LFSR mode

	lengthEnable bool
	sample       int8

	handle scheduler.Handle
}

func NewNoise(sched *scheduler.Scheduler) *Noise {
	n := &Noise{sched: sched}
	n.len.full = 64
	return n
}

func (n *Noise) Reset() {
	n.env = envelope{}
	n.len = length{full: 64}
	n.lfsr = 0x7FFF
	n.shift, n.ratio, n.width7 = 0, 0, false
	n.lengthEnable = false
	n.sample = 0
	n.sched.Cancel(n.handle)
	n.handle = n.sched.Add(n.synthesisInterval(), n.generate)
}

func (n *Noise) Enabled() bool {
	return n.env.dacEnabled() && !(n.lengthEnable && n.len.counter <= 0)
}

func (n *Noise) Sample() int8 { return n.sample }

// synthesisInterval matches the original's GetSynthesisInterval: a base
// period of 16<<shift T-cycles, halved when ratio is 0 and otherwise scaled
// by the dividing ratio.
func (n *Noise) synthesisInterval() int {
	interval := 16 << n.shift
	if n.ratio == 0 {
		interval /= 2
	} else {
		interval *= int(n.ratio)
	}
	return interval
}

func (n *Noise) generate(cyclesLate int) {
	bit := (n.lfsr ^ (n.lfsr >> 1)) & 1
	n.lfsr >>= 1
	n.lfsr |= bit << 14
	if n.width7 {
		n.lfsr &^= 1 << 6
		n.lfsr |= bit << 6
	}

	if !n.Enabled() {
		n.sample = 0
	} else if n.lfsr&1 == 0 {
		n.sample = int8(8 * int(n.env.currentVolume) / 8)
	} else {
		n.sample = -int8(8 * int(n.env.currentVolume) / 8)
	}
	n.handle = n.sched.Add(n.synthesisInterval()-cyclesLate, n.generate)
}

func (n *Noise) sequenced(step int) {
	if lengthClocks(step) {
		n.len.clock(n.lengthEnable)
	}
	if envelopeClocks(step) {
		n.env.clock()
	}
}

func (n *Noise) Read(offset int) byte {
	switch offset {
	case 1:
		return n.env.read()
	case 2:
		var w byte
		if n.width7 {
			w = 1
		}
		return (n.shift << 4) | (w << 3) | n.ratio
	case 3:
		v := byte(0xBF)
		if n.lengthEnable {
			v |= 0x40
		}
		return v
	}
	return 0xFF
}

func (n *Noise) Write(offset int, value byte) {
	switch offset {
	case 0:
		n.len.counter = 64 - int(value&0x3F)
	case 1:
		n.env.write(value)
		if !n.env.dacEnabled() {
			n.sample = 0
		}
	case 2:
		n.shift = (value >> 4) & 0x0F
		n.width7 = value&0x08 != 0
		n.ratio = value & 0x07
	case 3:
		n.lengthEnable = value&0x40 != 0
		if value&0x80 != 0 {
			n.trigger()
		}
	}
}

func (n *Noise) trigger() {
	n.len.trigger()
	n.env.trigger()
	n.lfsr = 0x7FFF
}
