package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"dynview/pkg/notify"
)

const (
	writeTimeout = 5 * time.Second
	pingPeriod   = 30 * time.Second
	maxLimit     = 1000
)

// NotificationLog reads back the journal.
type NotificationLog interface {
	RecentNotifications(ctx context.Context, limit int) ([]notify.Notification, error)
}

// NotificationFeed delivers live notifications. notify.Hub implements it.
type NotificationFeed interface {
	Subscribe() (<-chan notify.Notification, func())
}

// NotificationHandler serves the journal and the live notification stream.
type NotificationHandler struct {
	log      NotificationLog
	feed     NotificationFeed
	upgrader websocket.Upgrader
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(log NotificationLog, feed NotificationFeed) *NotificationHandler {
	return &NotificationHandler{
		log:  log,
		feed: feed,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// HandleRecent returns the newest journal entries, newest first.
func (h *NotificationHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLimit)
	}

	items, err := h.log.RecentNotifications(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleStream upgrades to a websocket and pushes every notification as JSON
// until the client disconnects.
func (h *NotificationHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Notification stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, unsubscribe := h.feed.Subscribe()
	defer unsubscribe()

	// The read side only exists to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
