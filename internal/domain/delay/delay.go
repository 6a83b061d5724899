// Package delay provides cancellable waits, the building block of every
// accessory timer.
//
// A Handle is started for a fixed duration and resolves exactly once: either
// the duration elapses or Cancel is called first. Waiting on a cancelled handle
// returns false without an error; a caller that sees false abandons the rest of
// its sequence.
//
// Slots groups the handles of one accessory by name. Starting a slot replaces
// (and cancels) whatever the slot held before, so there is at most one active
// timer per slot.
package delay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Stopper is satisfied by *time.Timer.
type Stopper interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Wall is the production clock.
var Wall Clock = wallClock{}

type Handle struct {
	done      chan struct{}
	once      sync.Once
	cancelled atomic.Bool
	stop      Stopper
}

// Start begins a wait of d on clock c. A non-positive duration resolves
// immediately as elapsed.
func Start(c Clock, d time.Duration) *Handle {
	h := &Handle{done: make(chan struct{})}
	if d <= 0 {
		h.resolve(false)
		return h
	}
	h.stop = c.AfterFunc(d, func() { h.resolve(false) })
	return h
}

func (h *Handle) resolve(cancelled bool) {
	h.once.Do(func() {
		h.cancelled.Store(cancelled)
		close(h.done)
	})
}

// Cancel is idempotent. Cancelling an elapsed handle has no effect.
func (h *Handle) Cancel() {
	if h.stop != nil {
		h.stop.Stop()
	}
	h.resolve(true)
}

// Wait blocks until the handle resolves and reports whether the duration
// elapsed. Context cancellation cancels the handle.
func (h *Handle) Wait(ctx context.Context) bool {
	select {
	case <-h.done:
		return !h.cancelled.Load()
	case <-ctx.Done():
		h.Cancel()
		return false
	}
}

func (h *Handle) Resolved() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) Cancelled() bool {
	return h.Resolved() && h.cancelled.Load()
}
