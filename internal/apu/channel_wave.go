package apu

import "github.com/kestrelbit/gbcore/internal/scheduler"

// waveVolumeScale maps the 2-bit NR32 volume code to the multiplier applied
// to each 4-bit wave sample's (nibble-8)*4 swing: 0 mutes, 1 is full volume,
// 2 is 50%, 3 is 25%. forceVolume (NR32 bit 7) overrides the code and fixes
// the scale at 3 (75%).
var waveVolumeScale = [4]int{0, 4, 2, 1}

// Wave is channel 3: an arbitrary 32-sample 4-bit waveform played back from
// wave RAM (0xFF30-0xFF3F).
type Wave struct {
	sched *scheduler.Scheduler

	dacEnabled  bool
	len         length
	volumeCode  byte
	forceVolume bool
	freq        uint16
	phase       int
	ram         [16]byte

	lengthEnable bool
	sample       int8

	handle scheduler.Handle
}

func NewWave(sched *scheduler.Scheduler) *Wave {
	w := &Wave{sched: sched}
	w.len.full = 256
	return w
}

func (w *Wave) Reset() {
	w.dacEnabled = false
	w.len = length{full: 256}
	w.volumeCode = 0
	w.forceVolume = false
	w.freq = 0
	w.phase = 0
	w.lengthEnable = false
	w.sample = 0
	w.ram = [16]byte{}
	w.sched.Cancel(w.handle)
	w.handle = w.sched.Add(synthesisInterval(0), w.generate)
}

func (w *Wave) Enabled() bool {
	return w.dacEnabled && !(w.lengthEnable && w.len.counter <= 0)
}

func (w *Wave) Sample() int8 { return w.sample }

func (w *Wave) generate(cyclesLate int) {
	if !w.Enabled() {
		w.sample = 0
		w.handle = w.sched.Add(synthesisInterval(0)-cyclesLate, w.generate)
		return
	}
	b := w.ram[w.phase/2]
	var nibble byte
	if w.phase%2 == 0 {
		nibble = b >> 4
	} else {
		nibble = b & 0x0F
	}
	scale := waveVolumeScale[w.volumeCode]
	if w.forceVolume {
		scale = 3
	}
	raw := (int(nibble) - 8) * 4 * scale
	if raw > 127 {
		raw = 127
	} else if raw < -128 {
		raw = -128
	}
	w.sample = int8(raw)
	w.phase = (w.phase + 1) % 32
	w.handle = w.sched.Add(synthesisInterval(w.freq)-cyclesLate, w.generate)
}

func (w *Wave) sequenced(step int) {
	if lengthClocks(step) {
		w.len.clock(w.lengthEnable)
	}
}

func (w *Wave) Read(offset int) byte {
	switch offset {
	case 0:
		if w.dacEnabled {
			return 0x80
		}
		return 0x00
	case 2:
		return (w.volumeCode << 5) | 0x9F
	case 4:
		v := byte(0xBF)
		if w.lengthEnable {
			v |= 0x40
		}
		return v
	}
	return 0xFF
}

func (w *Wave) Write(offset int, value byte) {
	switch offset {
	case 0:
		w.dacEnabled = value&0x80 != 0
		if !w.dacEnabled {
			w.sample = 0
		}
	case 1:
		w.len.counter = 256 - int(value)
	case 2:
		w.volumeCode = (value >> 5) & 3
		w.forceVolume = value&0x80 != 0
	case 3:
		w.freq = (w.freq & 0x0700) | uint16(value)
	case 4:
		w.lengthEnable = value&0x40 != 0
		w.freq = (w.freq & 0x00FF) | (uint16(value&7) << 8)
		if value&0x80 != 0 {
			w.trigger()
		}
	}
}

func (w *Wave) ReadSample(offset int) byte  { return w.ram[offset] }
func (w *Wave) WriteSample(offset int, v byte) { w.ram[offset] = v }

func (w *Wave) trigger() {
	w.len.trigger()
	w.phase = 0
}
