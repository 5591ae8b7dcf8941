package schedule

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler and Clock whose time only moves when Advance is called.
// Due tasks run synchronously on the caller's goroutine, in due-time order.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	next  Handle
	tasks map[Handle]*manualTask
}

type manualTask struct {
	due      time.Time
	interval time.Duration
	run      func()
	seq      Handle
}

// NewManual starts a manual scheduler at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, tasks: make(map[Handle]*manualTask)}
}

// Now returns the manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) After(d time.Duration, task func()) Handle {
	return m.add(d, 0, task)
}

func (m *Manual) Every(interval time.Duration, task func()) Handle {
	return m.add(interval, interval, task)
}

func (m *Manual) add(d, interval time.Duration, task func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.tasks[m.next] = &manualTask{due: m.now.Add(d), interval: interval, run: task, seq: m.next}
	return m.next
}

func (m *Manual) Cancel(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[h]; !ok {
		return false
	}
	delete(m.tasks, h)
	return true
}

// Pending reports the number of scheduled tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Advance moves time forward by d, running every task that becomes due.
// Tasks scheduled by running tasks are honoured if they fall inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		h, task := m.nextDue(target)
		if task == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = task.due
		if task.interval > 0 {
			task.due = task.due.Add(task.interval)
		} else {
			delete(m.tasks, h)
		}
		run := task.run
		m.mu.Unlock()

		run()
	}
}

func (m *Manual) nextDue(target time.Time) (Handle, *manualTask) {
	due := make([]*manualTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		if !task.due.After(target) {
			due = append(due, task)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})
	return due[0].seq, due[0]
}
