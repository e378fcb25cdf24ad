package store

import (
	"context"
	"fmt"
	"time"

	"dynview/pkg/db"
	"dynview/pkg/notify"
)

// DefaultRecentLimit caps RecentNotifications when no limit is given.
const DefaultRecentLimit = 100

// Store defines the repository interface.
type Store interface {
	NotificationStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
	// now is replaced in tests.
	now func() time.Time
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Notifications ---

// AppendNotification stores n and returns its row id. A zero Time is
// replaced by the current time.
func (s *SQLiteStore) AppendNotification(ctx context.Context, n notify.Notification) (int64, error) {
	if n.Time.IsZero() {
		n.Time = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (created_at, level, kind, message) VALUES (?, ?, ?, ?)`,
		n.Time.UnixMilli(), string(n.Level), string(n.Kind), n.Message)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return res.LastInsertId()
}

// RecentNotifications returns up to limit notifications, newest first.
func (s *SQLiteStore) RecentNotifications(ctx context.Context, limit int) ([]notify.Notification, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, level, kind, message FROM notifications ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		var (
			n       notify.Notification
			created int64
			level   string
			kind    string
		)
		if err := rows.Scan(&n.ID, &created, &level, &kind, &n.Message); err != nil {
			return nil, err
		}
		n.Time = time.UnixMilli(created).UTC()
		n.Level = notify.Level(level)
		n.Kind = notify.Kind(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}

// PruneNotifications deletes notifications older than the given age and
// returns how many were removed.
func (s *SQLiteStore) PruneNotifications(ctx context.Context, olderThan time.Duration) (int64, error) {
	deadline := s.now().Add(-olderThan).UnixMilli()
	res, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE created_at < ?", deadline)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return res.RowsAffected()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, s.now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
