// Package host defines the contracts the view distance controller consumes
// from the game server it runs inside: the client registry, the performance
// metric and the tick scheduler.
package host

import (
	"errors"
	"math"
)

var (
	// ErrClientNotReady is returned when a client cannot accept a view
	// distance yet, typically because it is not attached to a world.
	ErrClientNotReady = errors.New("client is not attached to a world")
)

// ClientID identifies one client session. A client that reconnects gets a new ID.
type ClientID string

// Position is a location in a simulated world.
type Position struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// Distance returns the euclidean distance between two positions.
// Positions in different worlds are infinitely far apart.
func Distance(a, b Position) float64 {
	if a.World != b.World {
		return math.Inf(1)
	}
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Client is a connected client as seen through the registry. Handles are only
// valid for the duration of one operation; callers must not retain them.
type Client interface {
	ID() ClientID
	Name() string
	// ViewDistance returns the server-assigned view distance.
	ViewDistance() int
	// SetViewDistance assigns the server-side view distance.
	// It returns ErrClientNotReady while the client is still attaching.
	SetViewDistance(distance int) error
	// ClientViewDistance returns the distance the client reported in its settings.
	ClientViewDistance() int
	Position() Position
}

// Registry enumerates connected clients.
type Registry interface {
	OnlineClients() []Client
	Client(id ClientID) (Client, bool)
}

// MetricSource supplies the smoothed server performance sample.
type MetricSource interface {
	// AverageTPS returns the rolling five minute average ticks per second.
	AverageTPS() float64
}

// TaskID identifies a scheduled task.
type TaskID int64

// Scheduler runs callbacks on the server's tick context.
type Scheduler interface {
	// RunRepeating runs fn after delay ticks and then every period ticks.
	RunRepeating(delay, period int64, fn func()) TaskID
	// RunLater runs fn once after delay ticks. A delay of 0 means the next tick.
	RunLater(delay int64, fn func()) TaskID
	// Cancel stops a task. Cancelling an unknown or finished task is a no-op.
	Cancel(id TaskID)
	// CurrentTick returns the number of ticks processed so far.
	CurrentTick() int64
}
