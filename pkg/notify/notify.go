// Package notify delivers human-readable controller notifications to
// administrators.
package notify

import (
	"time"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Kind names the transition a notification reports.
type Kind string

const (
	KindDesired       Kind = "desired_changed"
	KindGlobal        Kind = "global_changed"
	KindSetNow        Kind = "set_now"
	KindSetGraceful   Kind = "set_graceful"
	KindEmergency     Kind = "emergency"
	KindLowerNow      Kind = "lower_now"
	KindLowerGraceful Kind = "lower_graceful"
	KindRaise         Kind = "raise"
	KindIdle          Kind = "idle"
	KindPin           Kind = "pin"
	KindUnpin         Kind = "unpin"
)

// Notification is one administrator message.
type Notification struct {
	ID      int64     `json:"id,omitempty"`
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// Discard is a Notifier that drops everything.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Notification) {}
