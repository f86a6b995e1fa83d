// Package timer implements the DIV/TIMA timer: a free-running 8-bit
// divider plus a programmable TIMA counter that overflows into TMA and
// raises a Timer interrupt.
package timer

import (
	"github.com/kestrelbit/gbcore/internal/irq"
	"github.com/kestrelbit/gbcore/internal/scheduler"
)

// clockDuty maps the 2-bit TAC clock-select field to its period in T-cycles.
var clockDuty = [4]int{1024, 16, 64, 256}

// Timer owns DIV, TIMA, TMA and TAC, and schedules its own recurring
// callbacks on the shared Scheduler the same way the PPU schedules its
// own mode transitions.
type Timer struct {
	sched *scheduler.Scheduler
	irqc  *irq.Controller

	div  byte
	tima byte
	tma  byte

	enabled     bool
	clockSelect byte

	divHandle   scheduler.Handle
	timerHandle scheduler.Handle
}

// New returns a Timer wired to sched and irqc, already running.
func New(sched *scheduler.Scheduler, irqc *irq.Controller) *Timer {
	t := &Timer{sched: sched, irqc: irqc}
	t.Reset()
	return t
}

// Reset mirrors the original's power-on quirk: DIV starts at 0xFF and
// the first DIV tick happens immediately.
func (t *Timer) Reset() {
	t.div = 0xFF
	t.tima = 0
	t.tma = 0
	t.enabled = false
	t.clockSelect = 0
	t.divHandle = -1
	t.timerHandle = -1
	t.stepDIV(0)
}

func (t *Timer) stepDIV(cyclesLate int) {
	t.div++
	t.divHandle = t.sched.Add(256-cyclesLate, t.stepDIV)
}

func (t *Timer) stepTimer(cyclesLate int) {
	if t.tima == 0xFF {
		t.tima = t.tma
		t.irqc.Raise(irq.Timer)
	} else {
		t.tima++
	}
	if t.enabled {
		t.scheduleTimer(cyclesLate)
	}
}

func (t *Timer) scheduleTimer(cyclesLate int) {
	cycles := clockDuty[t.clockSelect] - cyclesLate
	t.timerHandle = t.sched.Add(cycles, t.stepTimer)
}

// ReadMMIO reads DIV (0x04), TIMA (0x05), TMA (0x06) or TAC (0x07).
func (t *Timer) ReadMMIO(reg byte) byte {
	switch reg {
	case 0x04:
		return t.div
	case 0x05:
		return t.tima
	case 0x06:
		return t.tma
	case 0x07:
		v := t.clockSelect
		if t.enabled {
			v |= 4
		}
		return 0xF8 | v
	}
	return 0xFF
}

// WriteMMIO writes DIV, TIMA, TMA or TAC. Writing DIV resets it to 0;
// enabling/disabling or changing the clock select re-arms the recurring
// TIMA event the way ReBoy's Timer::WriteMMIO does.
func (t *Timer) WriteMMIO(reg byte, value byte) {
	switch reg {
	case 0x04:
		t.div = 0
	case 0x05:
		t.tima = value
	case 0x06:
		t.tma = value
	case 0x07:
		enabledOld := t.enabled
		clockOld := t.clockSelect
		t.clockSelect = value & 3
		t.enabled = value&4 != 0

		if t.clockSelect != clockOld && enabledOld && t.enabled {
			t.sched.Cancel(t.timerHandle)
			t.scheduleTimer(0)
		}
		if !enabledOld && t.enabled {
			t.tima = t.tma
			t.scheduleTimer(0)
		} else if enabledOld && !t.enabled {
			t.sched.Cancel(t.timerHandle)
		}
	}
}
