package apu

import "github.com/kestrelbit/gbcore/internal/scheduler"

// dutyTable holds the four waveform patterns selectable via NRx1 bits 6-7,
// expressed as the +8/-8 swing the original generator uses directly as the
// channel's int8 sample contribution (scaled by envelope volume).
var dutyTable = [4][8]int8{
	{+8, -8, -8, -8, -8, -8, -8, -8},
	{+8, +8, -8, -8, -8, -8, -8, -8},
	{+8, +8, +8, +8, -8, -8, -8, -8},
	{+8, +8, +8, +8, +8, +8, -8, -8},
}

// Quad is a square-wave channel (channel 1 with sweep, channel 2 without).
type Quad struct {
	sched    *scheduler.Scheduler
	hasSweep bool

	env   envelope
	swp   sweep
	len   length
	duty  byte
	phase int
	freq  uint16

	lengthEnable bool
	sample       int8

	handle scheduler.Handle
}

func NewQuad(sched *scheduler.Scheduler, hasSweep bool) *Quad {
	q := &Quad{sched: sched, hasSweep: hasSweep}
	q.len.full = 64
	return q
}

func (q *Quad) Reset() {
	q.env = envelope{}
	q.swp = sweep{}
	q.len = length{full: 64}
	q.phase = 0
	q.duty = 0
	q.freq = 0
	q.lengthEnable = false
	q.sample = 0
	q.sched.Cancel(q.handle)
	q.handle = q.sched.Add(synthesisInterval(0), q.generate)
}

func (q *Quad) Enabled() bool {
	return q.env.dacEnabled() && !(q.lengthEnable && q.len.counter <= 0) && !(q.hasSweep && q.swp.disabled)
}

func (q *Quad) Sample() int8 { return q.sample }

func synthesisInterval(freq uint16) int { return 2 * (2048 - int(freq)) }

func (q *Quad) generate(cyclesLate int) {
	if !q.Enabled() {
		q.sample = 0
		q.handle = q.sched.Add(synthesisInterval(0)-cyclesLate, q.generate)
		return
	}
	q.sample = dutyTable[q.duty][q.phase] * int8(q.env.currentVolume)
	q.phase = (q.phase + 1) & 7
	q.handle = q.sched.Add(synthesisInterval(q.freq)-cyclesLate, q.generate)
}

// sequenced is this channel's hook into the shared frame sequencer.
func (q *Quad) sequenced(step int) {
	if lengthClocks(step) {
		q.len.clock(q.lengthEnable)
	}
	if q.hasSweep && sweepClocks(step) {
		if nf := q.swp.clock(); nf >= 0 {
			q.freq = uint16(nf)
		}
	}
	if envelopeClocks(step) {
		q.env.clock()
	}
}

func (q *Quad) Read(offset int) byte {
	switch offset {
	case 0:
		if !q.hasSweep {
			return 0xFF
		}
		return 0x80 | q.swp.read()
	case 1:
		return (q.duty << 6) | 0x3F
	case 2:
		return q.env.read()
	case 4:
		v := byte(0xBF)
		if q.lengthEnable {
			v |= 0x40
		}
		return v
	}
	return 0xFF
}

func (q *Quad) Write(offset int, value byte) {
	switch offset {
	case 0:
		if q.hasSweep {
			q.swp.write(value)
		}
	case 1:
		q.len.counter = 64 - int(value&0x3F)
		q.duty = (value >> 6) & 3
	case 2:
		q.env.write(value)
		if !q.env.dacEnabled() {
			q.sample = 0
		}
	case 3:
		q.freq = (q.freq & 0x0700) | uint16(value)
	case 4:
		q.lengthEnable = value&0x40 != 0
		q.freq = (q.freq & 0x00FF) | (uint16(value&7) << 8)
		if value&0x80 != 0 {
			q.trigger()
		}
	}
}

func (q *Quad) trigger() {
	q.len.trigger()
	q.phase = 0
	q.env.trigger()
	if q.hasSweep {
		q.swp.trigger(q.freq)
	}
}
