// Package schedule provides the timer capability used to run delayed and recurring bot work,
// plus the clock and random source those decisions depend on.
package schedule

import (
	"sync"
	"time"
)

// Handle identifies a scheduled task. The zero Handle is never issued.
type Handle uint64

// Scheduler runs tasks after a delay or on a fixed interval.
type Scheduler interface {
	After(d time.Duration, task func()) Handle
	Every(interval time.Duration, task func()) Handle
	// Cancel stops a pending task. It reports false when the handle is unknown,
	// already fired (one-shot) or already cancelled.
	Cancel(h Handle) bool
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock; time.Now carries a monotonic reading used by Sub.
var SystemClock Clock = systemClock{}

// TimerScheduler implements Scheduler on top of time.AfterFunc.
// Each firing runs on its own goroutine, so recurring ticks may overlap when a task outlives the interval.
type TimerScheduler struct {
	mu     sync.Mutex
	next   Handle
	timers map[Handle]*time.Timer
}

// NewTimerScheduler returns a ready scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[Handle]*time.Timer)}
}

// After runs task once after d.
func (s *TimerScheduler) After(d time.Duration, task func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	h := s.next
	s.timers[h] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[h]
		delete(s.timers, h)
		s.mu.Unlock()
		if live {
			task()
		}
	})
	return h
}

// Every runs task repeatedly, first after interval.
func (s *TimerScheduler) Every(interval time.Duration, task func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	h := s.next
	var timer *time.Timer
	timer = time.AfterFunc(interval, func() {
		s.mu.Lock()
		if _, live := s.timers[h]; !live {
			s.mu.Unlock()
			return
		}
		timer.Reset(interval)
		s.mu.Unlock()
		task()
	})
	s.timers[h] = timer
	return h
}

// Cancel stops the task behind h.
func (s *TimerScheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[h]
	if !ok {
		return false
	}
	delete(s.timers, h)
	timer.Stop()
	return true
}

// Len reports how many tasks are still scheduled.
func (s *TimerScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
