package core

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"dynview/pkg/host"
)

func TestScheduler_RunLaterRunsOnNextTick(t *testing.T) {
	s := NewScheduler(50 * time.Millisecond)
	runs := 0
	s.RunLater(0, func() { runs++ })

	if runs != 0 {
		t.Fatal("RunLater ran inline")
	}
	s.Step()
	if runs != 1 {
		t.Errorf("runs after first step = %d, want 1", runs)
	}
	s.Step()
	if runs != 1 {
		t.Errorf("one-shot task ran %d times", runs)
	}
	if n := s.PendingTasks(); n != 0 {
		t.Errorf("PendingTasks() = %d, want 0", n)
	}
}

func TestScheduler_RunRepeating(t *testing.T) {
	s := NewScheduler(50 * time.Millisecond)
	var ticks []int64
	s.RunRepeating(0, 10, func() { ticks = append(ticks, s.CurrentTick()) })

	for i := 0; i < 25; i++ {
		s.Step()
	}
	if want := []int64{1, 11, 21}; !slices.Equal(ticks, want) {
		t.Errorf("ran at ticks %v, want %v", ticks, want)
	}
}

func TestScheduler_RegistrationOrder(t *testing.T) {
	s := NewScheduler(50 * time.Millisecond)
	var order []string
	s.RunRepeating(0, 1, func() { order = append(order, "fast") })
	s.RunLater(0, func() { order = append(order, "once") })
	s.RunRepeating(0, 1, func() { order = append(order, "sweep") })

	s.Step()
	if want := []string{"fast", "once", "sweep"}; !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler(50 * time.Millisecond)
	runs := 0
	id := s.RunRepeating(0, 1, func() { runs++ })

	s.Step()
	s.Cancel(id)
	s.Cancel(id) // idempotent
	s.Step()
	if runs != 1 {
		t.Errorf("runs = %d after cancel, want 1", runs)
	}

	// A task cancelled by an earlier task in the same tick must not run.
	var victim host.TaskID
	s.RunLater(0, func() { s.Cancel(victim) })
	victim = s.RunLater(0, func() { runs++ })
	s.Step()
	if runs != 1 {
		t.Errorf("cancelled task ran, runs = %d", runs)
	}
}

func TestScheduler_PanicIsContained(t *testing.T) {
	s := NewScheduler(50 * time.Millisecond)
	ran := false
	s.RunLater(0, func() { panic("boom") })
	s.RunLater(0, func() { ran = true })

	s.Step()
	if !ran {
		t.Error("a panicking task stopped the rest of the tick")
	}
}

func TestScheduler_Call(t *testing.T) {
	s := NewScheduler(5 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(exited)
	}()

	value := 0
	if err := s.Call(context.Background(), func() { value = 42 }); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if value != 42 {
		t.Errorf("value = %d, want 42", value)
	}

	if err := s.Call(context.Background(), func() { panic("bad handler") }); err == nil {
		t.Error("Call() with a panicking function returned nil")
	}

	cancel()
	<-exited

	if err := s.Call(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Call() after stop error = %v, want ErrStopped", err)
	}
}

func TestScheduler_CallHonoursContext(t *testing.T) {
	s := NewScheduler(time.Second) // loop never started
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := s.Call(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call() error = %v, want DeadlineExceeded", err)
	}
}
