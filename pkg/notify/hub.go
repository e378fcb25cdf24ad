package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Journal stores delivered notifications.
type Journal interface {
	AppendNotification(ctx context.Context, n Notification) (int64, error)
}

// Hub queues notifications from the tick loop and, on its own goroutine,
// writes them to the journal and fans them out to subscribers.
type Hub struct {
	journal Journal
	queue   chan Notification

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Notification
}

// NewHub creates a Hub. journal may be nil.
func NewHub(journal Journal, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		journal: journal,
		queue:   make(chan Notification, buffer),
		subs:    make(map[int]chan Notification),
	}
}

// Notify implements Notifier. It never blocks; when the queue is full the
// notification is dropped.
func (h *Hub) Notify(n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	select {
	case h.queue <- n:
	default:
		slog.Warn("Notify: queue full, dropping notification", "kind", n.Kind, "message", n.Message)
	}
}

// Run delivers queued notifications until ctx is cancelled, then flushes
// what is still queued.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.flush()
			return
		case n := <-h.queue:
			h.deliver(ctx, n)
		}
	}
}

func (h *Hub) flush() {
	for {
		select {
		case n := <-h.queue:
			h.deliver(context.Background(), n)
		default:
			return
		}
	}
}

func (h *Hub) deliver(ctx context.Context, n Notification) {
	if h.journal != nil {
		id, err := h.journal.AppendNotification(ctx, n)
		if err != nil {
			slog.Error("Notify: failed to journal notification", "kind", n.Kind, "error", err)
		} else {
			n.ID = id
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- n:
		default:
			slog.Debug("Notify: subscriber lagging, dropping notification", "subscriber", id)
		}
	}
}

// Subscribe returns a channel of delivered notifications and a function
// that ends the subscription.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Notification, 16)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
