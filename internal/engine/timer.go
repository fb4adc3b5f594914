package engine

import (
	"sync"
	"time"
)

// Timer drives phase expiry. It holds at most one pending deadline.
//
// Every method must be called with lock held. The callback takes lock itself and
// runs fn only if no later Arm or Cancel happened in between, so a superseded timer
// is a no-op while a timer that already owns the lock cannot be undone.
type Timer struct {
	lock     sync.Locker
	gen      uint64
	t        *time.Timer
	deadline time.Time
}

// NewTimer creates a timer whose callbacks serialize on lock.
func NewTimer(lock sync.Locker) *Timer {
	return &Timer{lock: lock}
}

// Arm schedules fn after d, replacing any pending deadline.
func (t *Timer) Arm(d time.Duration, fn func()) {
	t.stop()
	t.gen++
	gen := t.gen
	t.deadline = time.Now().Add(d)
	t.t = time.AfterFunc(d, func() {
		t.lock.Lock()
		defer t.lock.Unlock()
		if t.gen != gen {
			return
		}
		t.t = nil
		t.deadline = time.Time{}
		fn()
	})
}

// Cancel drops the pending deadline.
func (t *Timer) Cancel() {
	t.stop()
	t.gen++
	t.deadline = time.Time{}
}

// Armed reports whether a deadline is pending.
func (t *Timer) Armed() bool {
	return t.t != nil
}

// Deadline returns the pending deadline, zero when none.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

func (t *Timer) stop() {
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}
