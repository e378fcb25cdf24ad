package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"dynview/pkg/host"
)

// ErrStopped is returned by Call once the tick loop has exited.
var ErrStopped = errors.New("scheduler stopped")

type call struct {
	fn   func()
	done chan error
}

// Scheduler is the server heartbeat. Every tick it runs the due tasks on the
// loop goroutine, so everything scheduled through it shares one execution
// context. Other goroutines reach that context through Call.
type Scheduler struct {
	interval time.Duration
	meter    *TPSMeter

	mu     sync.Mutex
	tasks  map[host.TaskID]*task
	lastID host.TaskID

	tick      atomic.Int64
	lastStart time.Time

	calls   chan call
	stopped chan struct{}
	stop    sync.Once
}

// NewScheduler creates a Scheduler ticking at the given interval.
func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Scheduler{
		interval: interval,
		meter:    NewTPSMeter(interval),
		tasks:    make(map[host.TaskID]*task),
		calls:    make(chan call),
		stopped:  make(chan struct{}),
	}
}

// Meter returns the TPS meter fed by the tick loop.
func (s *Scheduler) Meter() *TPSMeter {
	return s.meter
}

// CurrentTick implements host.Scheduler.
func (s *Scheduler) CurrentTick() int64 {
	return s.tick.Load()
}

// Start runs the main loop. It blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.stop.Do(func() { close(s.stopped) })

	slog.Info("Scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped", "tick", s.CurrentTick())
			return
		case <-ticker.C:
			s.Step()
		case c := <-s.calls:
			c.done <- safeCall(c.fn)
		}
	}
}

// Step processes one tick synchronously.
func (s *Scheduler) Step() {
	start := time.Now()
	if !s.lastStart.IsZero() {
		s.meter.Record(start.Sub(s.lastStart))
	}
	s.lastStart = start

	tick := s.tick.Add(1)
	for _, t := range s.dueTasks(tick) {
		s.runTask(t, tick)
	}

	if elapsed := time.Since(start); elapsed > s.interval {
		slog.Debug("Scheduler: tick overran", "tick", tick, "elapsed", elapsed)
	}
}

// Call runs fn on the tick goroutine and waits for it to finish.
func (s *Scheduler) Call(ctx context.Context, fn func()) error {
	c := call{fn: fn, done: make(chan error, 1)}

	select {
	case s.calls <- c:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted the loop always finishes the call before it can exit.
	return <-c.done
}
