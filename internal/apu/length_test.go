package apu

import "testing"

func TestLength_ClockToZeroReportsExpired(t *testing.T) {
	l := length{full: 64, counter: 2}
	if l.clock(true) {
		t.Fatalf("expected not expired at counter=1")
	}
	if !l.clock(true) {
		t.Fatalf("expected expired when counter reaches 0")
	}
}

func TestLength_DisabledNeverClocks(t *testing.T) {
	l := length{full: 64, counter: 1}
	l.clock(false)
	if l.counter != 1 {
		t.Fatalf("expected counter untouched while disabled, got %d", l.counter)
	}
}

func TestLength_TriggerReloadsFromFullWhenZero(t *testing.T) {
	l := length{full: 64, counter: 0}
	l.trigger()
	if l.counter != 64 {
		t.Fatalf("got %d want 64", l.counter)
	}
}
