package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/booksswap/booksswap-server/internal/badge"
	"github.com/booksswap/booksswap-server/internal/store"
)

// CounterLister lists the badge counters of every user.
type CounterLister interface {
	ListUserCounters(ctx context.Context) ([]store.UserCounters, error)
}

// Awarder inserts badges a user qualifies for. *badge.Awarder satisfies it.
type Awarder interface {
	Award(ctx context.Context, userID string, c badge.Counters) ([]string, error)
}

// BadgeReconciler re-evaluates every user's badges from current counters.
// Awards normally happen inline when a book is listed or a swap completes;
// this catches any that were missed because the inline award failed.
type BadgeReconciler struct {
	counters CounterLister
	awarder  Awarder
	logger   *slog.Logger
}

// NewBadgeReconciler creates a BadgeReconciler.
func NewBadgeReconciler(counters CounterLister, awarder Awarder, logger *slog.Logger) *BadgeReconciler {
	return &BadgeReconciler{counters: counters, awarder: awarder, logger: logger}
}

// Name implements Job.
func (r *BadgeReconciler) Name() string { return "badge_reconcile" }

// Run implements Job. A failure for one user is logged and does not stop
// the others; the last such error is returned.
func (r *BadgeReconciler) Run(ctx context.Context) error {
	all, err := r.counters.ListUserCounters(ctx)
	if err != nil {
		return fmt.Errorf("list user counters: %w", err)
	}

	var (
		awarded int
		lastErr error
	)
	for _, c := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		names, err := r.awarder.Award(ctx, c.UserID, badge.Counters{
			BooksUploaded:  c.BooksUploaded,
			SwapsCompleted: c.SwapsCompleted,
		})
		awarded += len(names)
		if err != nil {
			r.logger.Warn("badge reconcile failed", "user_id", c.UserID, "error", err)
			lastErr = err
		}
	}

	if awarded > 0 {
		r.logger.Info("badge reconcile awarded missing badges", "users", len(all), "awarded", awarded)
	}
	return lastErr
}
