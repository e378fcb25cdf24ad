package core

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"

	"dynview/pkg/host"
)

// task is a callback registered with the Scheduler.
type task struct {
	id        host.TaskID
	fn        func()
	next      int64 // tick at which the task runs next
	period    int64 // 0 for one-shot tasks
	cancelled bool
}

// RunRepeating implements host.Scheduler. The first run happens delay ticks
// from now (0 means the next tick), then every period ticks.
func (s *Scheduler) RunRepeating(delay, period int64, fn func()) host.TaskID {
	if period < 1 {
		period = 1
	}
	return s.add(delay, period, fn)
}

// RunLater implements host.Scheduler. A delay of 0 runs fn on the next tick,
// never inline.
func (s *Scheduler) RunLater(delay int64, fn func()) host.TaskID {
	return s.add(delay, 0, fn)
}

// Cancel implements host.Scheduler.
func (s *Scheduler) Cancel(id host.TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.cancelled = true
		delete(s.tasks, id)
	}
}

// PendingTasks returns the number of scheduled tasks.
func (s *Scheduler) PendingTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) add(delay, period int64, fn func()) host.TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	t := &task{
		id:     s.lastID,
		fn:     fn,
		next:   s.tick.Load() + max(delay, 1),
		period: period,
	}
	s.tasks[t.id] = t
	return t.id
}

// dueTasks returns the tasks due at tick, in registration order.
func (s *Scheduler) dueTasks(tick int64) []*task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*task
	for _, t := range s.tasks {
		if t.next <= tick {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })
	return due
}

// runTask executes one due task and reschedules or retires it.
func (s *Scheduler) runTask(t *task, tick int64) {
	s.mu.Lock()
	if t.cancelled {
		s.mu.Unlock()
		return
	}
	if t.period > 0 {
		t.next = tick + t.period
	} else {
		delete(s.tasks, t.id)
	}
	s.mu.Unlock()

	if err := safeCall(t.fn); err != nil {
		slog.Error("Scheduler: task failed", "task", t.id, "tick", tick, "error", err)
	}
}

func safeCall(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
	return nil
}
