package store

import (
	"context"
	"time"

	"dynview/pkg/notify"
)

// NotificationStore is the audit journal of administrator notifications.
// It is write-mostly; nothing in the controller reads it back.
type NotificationStore interface {
	AppendNotification(ctx context.Context, n notify.Notification) (int64, error)
	RecentNotifications(ctx context.Context, limit int) ([]notify.Notification, error)
	PruneNotifications(ctx context.Context, olderThan time.Duration) (int64, error)
}

// StateStore handles persistent maintenance state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
