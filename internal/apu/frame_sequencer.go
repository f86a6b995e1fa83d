package apu

import "github.com/kestrelbit/gbcore/internal/scheduler"

// sequencerPeriod is the number of T-cycles between frame sequencer steps:
// cpuHz / 512.
const sequencerPeriod = cpuHz / 512

// FrameSequencer clocks length, envelope and sweep timers for every channel
// at 512 Hz, on the canonical DMG step table: length on even steps, sweep
// on steps 2 and 6, envelope on step 7.
type FrameSequencer struct {
	sched *scheduler.Scheduler
	step  int
	fns   []func(step int)
	handle scheduler.Handle
}

func NewFrameSequencer(sched *scheduler.Scheduler) *FrameSequencer {
	return &FrameSequencer{sched: sched}
}

// Register subscribes channel callbacks; each is invoked with the current
// step index (0-7) every time the sequencer advances.
func (f *FrameSequencer) Register(fns ...func(step int)) {
	f.fns = append(f.fns, fns...)
}

func (f *FrameSequencer) Reset() {
	f.step = 0
	f.handle = f.sched.Add(sequencerPeriod, f.tick)
}

func (f *FrameSequencer) tick(cyclesLate int) {
	f.step = (f.step + 1) & 7
	for _, fn := range f.fns {
		fn(f.step)
	}
	f.handle = f.sched.Add(sequencerPeriod-cyclesLate, f.tick)
}

func lengthClocks(step int) bool { return step%2 == 0 }
func sweepClocks(step int) bool  { return step == 2 || step == 6 }
func envelopeClocks(step int) bool { return step == 7 }
