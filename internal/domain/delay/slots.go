package delay

import (
	"sync"
	"time"
)

type Slot string

// Slots holds the named timers of one accessory.
type Slots struct {
	clock   Clock
	mu      sync.Mutex
	handles map[Slot]*Handle
}

func NewSlots(c Clock) *Slots {
	if c == nil {
		c = Wall
	}
	return &Slots{
		clock:   c,
		handles: make(map[Slot]*Handle),
	}
}

// Start cancels the slot's previous handle and starts a new one.
func (s *Slots) Start(slot Slot, d time.Duration) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.handles[slot]; ok {
		prev.Cancel()
	}
	h := Start(s.clock, d)
	s.handles[slot] = h
	return h
}

func (s *Slots) Cancel(slot Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles[slot]; ok {
		h.Cancel()
		delete(s.handles, slot)
	}
}

// CancelAll cancels every slot. No handle is pending afterwards.
func (s *Slots) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for slot, h := range s.handles {
		h.Cancel()
		delete(s.handles, slot)
	}
}

// Pending counts handles that have neither elapsed nor been cancelled.
func (s *Slots) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, h := range s.handles {
		if !h.Resolved() {
			n++
		}
	}
	return n
}

// Active returns the unresolved handle held by slot, or nil.
func (s *Slots) Active(slot Slot) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles[slot]; ok && !h.Resolved() {
		return h
	}
	return nil
}

func (s *Slots) Clock() Clock {
	return s.clock
}
