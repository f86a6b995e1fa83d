// Package scheduler implements the event scheduler that sequences every
// time-driven component of the emulator: PPU mode transitions, timer
// ticks, and APU channel synthesis all register future callbacks here
// instead of being polled on a fixed cadence.
package scheduler

import "container/heap"

// MaxEvents bounds the number of events the scheduler can hold at once.
// The real machine only ever has a handful of recurring events in flight
// (timer, four APU channels, one PPU mode transition), so this is a very
// generous ceiling; exceeding it is a programmer error.
const MaxEvents = 64

// Callback is invoked when its event fires. cyclesLate is how far past
// the event's target timestamp `now` had already advanced.
type Callback func(cyclesLate int)

// Handle identifies a previously scheduled event so it can be cancelled.
// A Handle is only valid for the event it was returned for; once that
// event fires or is cancelled the Handle must not be reused.
type Handle int

const invalidHandle Handle = -1

type event struct {
	timestamp uint64
	callback  Callback
	handle    Handle
}

// Scheduler is a binary min-heap of pending events ordered by timestamp,
// plus the monotonic cycle counter `now`. It owns no component state; it
// only holds non-owning callbacks that close over the component that
// registered them.
type Scheduler struct {
	heap       eventHeap
	now        uint64
	nextHandle Handle
}

// New returns a Scheduler reset to timestamp 0 with no pending events.
func New() *Scheduler {
	s := &Scheduler{}
	s.Reset()
	return s
}

// Reset clears all pending events and resets now to 0.
func (s *Scheduler) Reset() {
	s.heap = s.heap[:0]
	s.now = 0
}

// Now returns the current cycle count.
func (s *Scheduler) Now() uint64 { return s.now }

// Target returns the timestamp of the next due event, or Now() if the
// heap is empty (no event pending).
func (s *Scheduler) Target() uint64 {
	if len(s.heap) == 0 {
		return s.now
	}
	return s.heap[0].timestamp
}

// AddCycles advances now by n T-cycles. It never fires callbacks; call
// Step afterwards to drain anything that became due.
func (s *Scheduler) AddCycles(n int) {
	s.now += uint64(n)
}

// Add schedules callback to fire at now+delay and returns a handle that
// can be passed to Cancel. Delay may be 0, meaning "due immediately";
// such an event only fires on the next Step call, not synchronously.
func (s *Scheduler) Add(delay int, callback Callback) Handle {
	if len(s.heap) >= MaxEvents {
		panic("scheduler: event capacity exceeded")
	}
	// Handles start at 1, so a zero-value Handle matches no event.
	s.nextHandle++
	e := &event{
		timestamp: s.now + uint64(delay),
		callback:  callback,
		handle:    s.nextHandle,
	}
	heap.Push(&s.heap, e)
	return e.handle
}

// Cancel removes the event identified by h. Cancelling an already-fired
// or already-cancelled handle is a no-op.
func (s *Scheduler) Cancel(h Handle) {
	if h == invalidHandle {
		return
	}
	for i, e := range s.heap {
		if e.handle == h {
			heap.Remove(&s.heap, i)
			return
		}
	}
}

// Step fires every event whose timestamp has reached now, in timestamp
// order (ties broken arbitrarily). Callbacks may call Add reentrantly;
// whether a newly added event fires within this same Step depends only
// on whether its timestamp is already <= now.
func (s *Scheduler) Step() {
	for len(s.heap) > 0 && s.heap[0].timestamp <= s.now {
		e := heap.Pop(&s.heap).(*event)
		e.callback(int(s.now - e.timestamp))
	}
}

// eventHeap implements container/heap.Interface. Each event keeps the
// handle Add gave it, so a Handle remains valid no matter how the heap
// reshuffles.
type eventHeap []*event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].timestamp < h[j].timestamp }
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
