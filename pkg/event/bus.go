// Package event carries client lifecycle events from the host to the
// components that react to them.
package event

import (
	"fmt"
	"sync"

	"dynview/pkg/host"
)

// Kind is the closed set of client events.
type Kind int

const (
	// Join fires when a client session starts. The client may not be
	// attached to a world yet.
	Join Kind = iota
	// Move fires on a discontinuous position change such as a teleport.
	Move
	// OpenUI fires when the client opens a menu or inventory.
	OpenUI
	// Quit fires when a client session ends.
	Quit
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Join:
		return "join"
	case Move:
		return "move"
	case OpenUI:
		return "open_ui"
	case Quit:
		return "quit"
	default:
		return "unknown"
	}
}

// Event is a single client event.
type Event struct {
	Kind   Kind
	Client host.ClientID
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id      string
	handler Handler
}

// Bus dispatches events synchronously to subscribers of the event's kind,
// in subscription order, on the publisher's goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Kind][]subscription
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers handler for kind and returns an id for Unsubscribe.
func (b *Bus) Subscribe(kind Kind, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := fmt.Sprintf("%s-%d", kind, b.nextID)
	b.subs[kind] = append(b.subs[kind], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for kind, subs := range b.subs {
		for i, s := range subs {
			if s.id == id {
				b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to every current subscriber of e.Kind.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[e.Kind]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(e)
	}
}

// Subscribers returns the number of handlers registered for kind.
func (b *Bus) Subscribers(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}
