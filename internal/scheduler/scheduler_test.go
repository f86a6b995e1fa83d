package scheduler

import "testing"

func TestStepFiresDueEventsInOrder(t *testing.T) {
	s := New()

	var fired []string
	var lateB int

	s.Add(10, func(cyclesLate int) { fired = append(fired, "A") })
	s.Add(5, func(cyclesLate int) {
		fired = append(fired, "B")
		lateB = cyclesLate
	})

	s.AddCycles(6)
	s.Step()

	if len(fired) != 1 || fired[0] != "B" {
		t.Fatalf("expected only B to fire, got %v", fired)
	}
	if lateB != 1 {
		t.Fatalf("expected cyclesLate=1 for B, got %d", lateB)
	}

	s.AddCycles(10)
	s.Step()

	if len(fired) != 2 || fired[1] != "A" {
		t.Fatalf("expected A to fire second, got %v", fired)
	}
}

func TestNowNeverDecreases(t *testing.T) {
	s := New()
	prev := s.Now()
	for i := 0; i < 100; i++ {
		s.AddCycles(i % 7)
		s.Step()
		if s.Now() < prev {
			t.Fatalf("now decreased: %d -> %d", prev, s.Now())
		}
		prev = s.Now()
	}
}

func TestStepDrainsAllDueEvents(t *testing.T) {
	s := New()
	count := 0
	for i := 0; i < 5; i++ {
		s.Add(0, func(cyclesLate int) { count++ })
	}
	s.AddCycles(1)
	s.Step()
	if count != 5 {
		t.Fatalf("expected all 5 events to fire, got %d", count)
	}
	if s.Target() < s.Now() && len(s.heap) != 0 {
		t.Fatalf("heap should be empty after draining")
	}
}

func TestCancelPreventsInvocation(t *testing.T) {
	s := New()
	fired := false
	h := s.Add(5, func(cyclesLate int) { fired = true })
	s.Cancel(h)
	s.AddCycles(10)
	s.Step()
	if fired {
		t.Fatalf("cancelled event fired")
	}
}

func TestReentrantAdd(t *testing.T) {
	s := New()
	var fired []int
	var second Callback
	second = func(cyclesLate int) { fired = append(fired, 2) }
	first := func(cyclesLate int) {
		fired = append(fired, 1)
		s.Add(0, second)
	}
	s.Add(0, first)
	s.AddCycles(1)
	s.Step()
	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Fatalf("expected reentrant add to fire within same step, got %v", fired)
	}
}

func TestTargetIsRootTimestamp(t *testing.T) {
	s := New()
	s.Add(20, func(int) {})
	s.Add(5, func(int) {})
	if s.Target() != 5 {
		t.Fatalf("expected target 5, got %d", s.Target())
	}
}
