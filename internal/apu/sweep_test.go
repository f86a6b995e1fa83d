package apu

import "testing"

func TestSweep_OverflowDisablesChannel(t *testing.T) {
	var s sweep
	s.period = 1
	s.shift = 1
	s.negate = false
	s.trigger(2000) // 2000 + 2000>>1 = 3000 > 2047, overflows immediately
	if !s.disabled {
		t.Fatalf("expected immediate overflow to disable the channel")
	}
}

func TestSweep_ClockIncreasesFrequency(t *testing.T) {
	var s sweep
	s.period = 1
	s.shift = 2
	s.negate = false
	s.trigger(1000)
	nf := s.clock()
	want := 1000 + 1000/4
	if nf != want {
		t.Fatalf("got %d want %d", nf, want)
	}
}

func TestSweep_NoClockWhenPeriodZero(t *testing.T) {
	var s sweep
	s.period = 0
	s.shift = 1
	s.trigger(100)
	if nf := s.clock(); nf != -1 {
		t.Fatalf("expected no update with period 0, got %d", nf)
	}
}
