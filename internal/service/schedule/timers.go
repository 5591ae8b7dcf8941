package schedule

import (
	"sync"
	"time"
)

// Timers tracks every task scheduled on behalf of a session so the whole set
// can be cancelled when the session ends.
type Timers struct {
	sched Scheduler

	mu        sync.Mutex
	recurring map[string]Handle
	oneShots  map[string]map[Handle]struct{}
}

// NewTimers wraps sched with per-session bookkeeping.
func NewTimers(sched Scheduler) *Timers {
	return &Timers{
		sched:     sched,
		recurring: make(map[string]Handle),
		oneShots:  make(map[string]map[Handle]struct{}),
	}
}

// After schedules a one-shot task for the session. The handle is forgotten once the task fires.
func (t *Timers) After(sessionID string, d time.Duration, task func()) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var h Handle
	h = t.sched.After(d, func() {
		t.forget(sessionID, &h)
		task()
	})
	set, ok := t.oneShots[sessionID]
	if !ok {
		set = make(map[Handle]struct{})
		t.oneShots[sessionID] = set
	}
	set[h] = struct{}{}
	return h
}

// Every installs the session's recurring task, replacing any previous one.
func (t *Timers) Every(sessionID string, interval time.Duration, task func()) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.recurring[sessionID]; ok {
		t.sched.Cancel(old)
	}
	h := t.sched.Every(interval, task)
	t.recurring[sessionID] = h
	return h
}

// CancelSession stops the recurring task and every pending one-shot for the session.
// It returns the number of handles that were cancelled.
func (t *Timers) CancelSession(sessionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cancelled := 0
	if h, ok := t.recurring[sessionID]; ok {
		if t.sched.Cancel(h) {
			cancelled++
		}
		delete(t.recurring, sessionID)
	}
	for h := range t.oneShots[sessionID] {
		if t.sched.Cancel(h) {
			cancelled++
		}
	}
	delete(t.oneShots, sessionID)
	return cancelled
}

// Pending counts the session's outstanding handles, recurring included.
func (t *Timers) Pending(sessionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.oneShots[sessionID])
	if _, ok := t.recurring[sessionID]; ok {
		n++
	}
	return n
}

// HasRecurring reports whether the session has a recurring task installed.
func (t *Timers) HasRecurring(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.recurring[sessionID]
	return ok
}

// forget reads the handle under t.mu because the task may fire before After returns.
func (t *Timers) forget(sessionID string, h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.oneShots[sessionID]
	if !ok {
		return
	}
	delete(set, *h)
	if len(set) == 0 {
		delete(t.oneShots, sessionID)
	}
}
