package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dynview/pkg/store"
)

// LastPruneKey records when the journal was last pruned.
const LastPruneKey = "journal_last_prune"

// Run executes all maintenance tasks. It blocks until completion and only
// returns an error when the journal could not be pruned.
func Run(ctx context.Context, s store.Store, retention time.Duration) error {
	slog.Info("Starting database maintenance...")

	removed, err := pruneJournal(ctx, s, retention)
	if err != nil {
		slog.Error("Journal pruning failed", "error", err)
		return err
	}
	slog.Info("Journal pruning completed", "removed", removed, "retention", retention)
	return nil
}

// Schedule runs maintenance once per interval until ctx is cancelled.
func Schedule(ctx context.Context, s store.Store, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = Run(ctx, s, retention)
		}
	}
}

func pruneJournal(ctx context.Context, s store.Store, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	removed, err := s.PruneNotifications(ctx, retention)
	if err != nil {
		return 0, err
	}
	if err := s.SetState(ctx, LastPruneKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return removed, fmt.Errorf("failed to update state: %w", err)
	}
	return removed, nil
}
