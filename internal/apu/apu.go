// Package apu implements the four DMG sound channels, the shared 512 Hz
// frame sequencer, the mixer/downsampler, and the windowed-sinc resampler
// that feeds a mutex-guarded ring buffer for a foreign audio thread to pull
// from.
package apu

import (
	"sync"

	"github.com/kestrelbit/gbcore/internal/scheduler"
)

// cpuHz is the DMG system clock, used to derive the frame sequencer period.
const cpuHz = 4194304

// internalSampleRate is the rate (Hz) at which the mixer emits frames to
// the resampler, before it converts to the host audio device's rate.
const internalSampleRate = 65536

// Device is the audio output the APU pulls samples into. Implementations
// live in internal/audiodev; tests use a null or recording stub.
type Device interface {
	SampleRate() int
	BlockSize() int
	// Open starts the device, which repeatedly calls pull to fill its
	// output buffer with interleaved stereo int16 samples.
	Open(pull func(out []int16)) error
	Close()
}

// NullDevice discards audio. It is the default device before SetAudioDevice
// is called, mirroring the original's NullAudioDevice fallback.
type NullDevice struct{}

func (NullDevice) SampleRate() int                  { return internalSampleRate }
func (NullDevice) BlockSize() int                   { return 2048 }
func (NullDevice) Open(pull func(out []int16)) error { return nil }
func (NullDevice) Close()                           {}

// APU owns the four sound channels and the mixing/resampling pipeline.
type APU struct {
	sched *scheduler.Scheduler

	ch1 *Quad // tone & sweep
	ch2 *Quad // tone
	ch3 *Wave
	ch4 *Noise

	seq *FrameSequencer

	nr50, nr51, nr52 byte
	powered          bool

	divider  int
	averageL float32
	averageR float32

	mu         sync.Mutex
	ring       *RingBuffer
	resampler  *Resampler
	device     Device
}

// New returns a powered-on APU with all channels silent, wired to sched and
// discarding audio until SetAudioDevice is called.
func New(sched *scheduler.Scheduler) *APU {
	a := &APU{sched: sched}
	a.seq = NewFrameSequencer(sched)
	a.ch1 = NewQuad(sched, true)
	a.ch2 = NewQuad(sched, false)
	a.ch3 = NewWave(sched)
	a.ch4 = NewNoise(sched)
	a.seq.Register(a.ch1.sequenced, a.ch2.sequenced, a.ch3.sequenced, a.ch4.sequenced)
	a.Reset()
	a.SetAudioDevice(NullDevice{})
	return a
}

func (a *APU) Reset() {
	a.powered = true
	a.divider = 0
	a.averageL, a.averageR = 0, 0
	a.ch1.Reset()
	a.ch2.Reset()
	a.ch3.Reset()
	a.ch4.Reset()
	a.seq.Reset()
}

// SetAudioDevice closes any previously attached device and opens the new
// one, sizing the ring buffer to 4x its block size and retuning the
// resampler for its sample rate, the way the original's APU::SetAudioDevice
// does. If the new device fails to open, NullDevice is attached instead.
func (a *APU) SetAudioDevice(dev Device) {
	if dev == nil {
		dev = NullDevice{}
	}
	a.mu.Lock()
	if a.device != nil {
		a.device.Close()
	}
	a.device = dev
	a.ring = NewRingBuffer(dev.BlockSize() * 4)
	a.resampler = NewResampler(32, internalSampleRate, float64(dev.SampleRate()))
	a.mu.Unlock()

	if err := dev.Open(a.pull); err != nil {
		a.SetAudioDevice(NullDevice{})
	}
}

// pull is the callback the audio device invokes on its own thread to drain
// the ring buffer. Underruns are filled with silence.
func (a *APU) pull(out []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(out) / 2
	for i := 0; i < n; i++ {
		l, r, ok := a.ring.Read()
		if !ok {
			l, r = 0, 0
		}
		out[i*2] = floatToInt16(l)
		out[i*2+1] = floatToInt16(r)
	}
}

func floatToInt16(f float32) int16 {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int16(f * 32767)
}

// Step advances the mixer by one memory-bus beat. It is called once per
// beat (every 4 T-cycles driven by the bus, so at the CPU's M-cycle rate).
// Every 16 calls it emits one stereo frame at 65,536 Hz into the resampler.
func (a *APU) Step() {
	if !a.powered {
		return
	}
	s := (float32(a.ch1.Sample()) + float32(a.ch2.Sample()) + float32(a.ch3.Sample()) + float32(a.ch4.Sample())) / 128.0 / 4.0
	a.averageL += s
	a.averageR += s

	a.divider++
	if a.divider == 16 {
		a.divider = 0
		l := a.averageL / 16.0
		r := a.averageR / 16.0
		a.averageL, a.averageR = 0, 0

		a.mu.Lock()
		a.resampler.Write(l, r, a.ring)
		a.mu.Unlock()
	}
}

// ReadMMIO reads a sound register at its absolute address (0xFF10-0xFF3F).
func (a *APU) ReadMMIO(addr uint16) byte {
	switch {
	case addr >= 0xFF10 && addr <= 0xFF14:
		return a.ch1.Read(int(addr - 0xFF10))
	case addr >= 0xFF16 && addr <= 0xFF19:
		return a.ch2.Read(int(addr - 0xFF15))
	case addr >= 0xFF1A && addr <= 0xFF1E:
		return a.ch3.Read(int(addr - 0xFF1A))
	case addr >= 0xFF20 && addr <= 0xFF23:
		return a.ch4.Read(int(addr - 0xFF20))
	case addr >= 0xFF30 && addr <= 0xFF3F:
		return a.ch3.ReadSample(int(addr - 0xFF30))
	case addr == 0xFF24:
		return a.nr50
	case addr == 0xFF25:
		return a.nr51
	case addr == 0xFF26:
		return a.readNR52()
	}
	return 0xFF
}

// WriteMMIO writes a sound register. Writes to channel registers while
// powered off are ignored, matching real hardware (and the original).
func (a *APU) WriteMMIO(addr uint16, value byte) {
	if addr == 0xFF26 {
		on := value&0x80 != 0
		if a.powered && !on {
			a.powerOff()
		} else if !a.powered && on {
			a.powered = true
		}
		return
	}
	if !a.powered {
		return
	}
	switch {
	case addr >= 0xFF10 && addr <= 0xFF14:
		a.ch1.Write(int(addr-0xFF10), value)
	case addr >= 0xFF16 && addr <= 0xFF19:
		a.ch2.Write(int(addr-0xFF15), value)
	case addr >= 0xFF1A && addr <= 0xFF1E:
		a.ch3.Write(int(addr-0xFF1A), value)
	case addr >= 0xFF20 && addr <= 0xFF23:
		a.ch4.Write(int(addr-0xFF20), value)
	case addr >= 0xFF30 && addr <= 0xFF3F:
		a.ch3.WriteSample(int(addr-0xFF30), value)
	case addr == 0xFF24:
		a.nr50 = value
	case addr == 0xFF25:
		a.nr51 = value
	}
}

func (a *APU) readNR52() byte {
	v := byte(0x70)
	if a.powered {
		v |= 0x80
	}
	if a.ch1.Enabled() {
		v |= 1 << 0
	}
	if a.ch2.Enabled() {
		v |= 1 << 1
	}
	if a.ch3.Enabled() {
		v |= 1 << 2
	}
	if a.ch4.Enabled() {
		v |= 1 << 3
	}
	return v
}

func (a *APU) powerOff() {
	a.powered = false
	a.nr50, a.nr51 = 0, 0
	a.ch1.Reset()
	a.ch2.Reset()
	a.ch3.Reset()
	a.ch4.Reset()
}
