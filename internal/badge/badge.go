// Package badge maps activity counters to achievement badges and awards the
// ones a user does not hold yet.
package badge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/id"
	"github.com/booksswap/booksswap-server/internal/store"
)

// Badge names.
const (
	BookUploader = "Book Uploader"
	FiveBooks    = "5 Books"
	TenBooks     = "10 Books"
	FirstSwap    = "First Swap"
	FiveSwaps    = "5 Swaps"
	TenSwaps     = "10 Swaps"
)

// Threshold awards Name once a counter reaches Count.
type Threshold struct {
	Count int
	Name  string
}

// BookThresholds apply to the number of books a user has listed.
var BookThresholds = []Threshold{
	{1, BookUploader},
	{5, FiveBooks},
	{10, TenBooks},
}

// SwapThresholds apply to the number of swaps a user has completed.
var SwapThresholds = []Threshold{
	{1, FirstSwap},
	{5, FiveSwaps},
	{10, TenSwaps},
}

// Counters are the inputs to evaluation. A zero counter qualifies for nothing,
// so callers that only know one counter leave the other at zero.
type Counters struct {
	BooksUploaded  int
	SwapsCompleted int
}

// Qualifying returns every badge name the counters reach, in threshold order.
func Qualifying(c Counters) []string {
	var names []string
	for _, t := range BookThresholds {
		if c.BooksUploaded >= t.Count {
			names = append(names, t.Name)
		}
	}
	for _, t := range SwapThresholds {
		if c.SwapsCompleted >= t.Count {
			names = append(names, t.Name)
		}
	}
	return names
}

// Store is the persistence the awarder needs.
type Store interface {
	HasBadge(ctx context.Context, userID, name string) (bool, error)
	CreateBadge(ctx context.Context, badge *domain.Badge) error
}

// Recorder observes awards. *metrics.Metrics satisfies it.
type Recorder interface {
	BadgeAwarded(name string)
}

// Awarder inserts qualifying badges a user does not already hold.
type Awarder struct {
	store    Store
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewAwarder creates an Awarder. recorder may be nil.
func NewAwarder(s Store, recorder Recorder, logger *slog.Logger) *Awarder {
	return &Awarder{
		store:    s,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Award evaluates c for userID and returns the names of newly awarded badges.
// Re-running with unchanged counters awards nothing. Existing badges are
// never removed.
func (a *Awarder) Award(ctx context.Context, userID string, c Counters) ([]string, error) {
	var awarded []string

	for _, name := range Qualifying(c) {
		has, err := a.store.HasBadge(ctx, userID, name)
		if err != nil {
			return awarded, fmt.Errorf("check badge %q: %w", name, err)
		}
		if has {
			continue
		}

		badgeID, err := id.NewBadge()
		if err != nil {
			return awarded, err
		}

		err = a.store.CreateBadge(ctx, &domain.Badge{
			ID:        badgeID,
			UserID:    userID,
			Name:      name,
			CreatedAt: a.now(),
		})
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent award.
			continue
		}
		if err != nil {
			return awarded, fmt.Errorf("create badge %q: %w", name, err)
		}

		awarded = append(awarded, name)
		if a.recorder != nil {
			a.recorder.BadgeAwarded(name)
		}
		a.logger.Info("badge awarded", "user_id", userID, "badge", name)
	}

	return awarded, nil
}
