package service

import (
	"context"
	"log/slog"

	"github.com/booksswap/booksswap-server/internal/domain"
	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/store"
)

const (
	leaderboardLimit = 20
	activeAreasLimit = 10
)

// CommunityService answers leaderboard and progress queries.
type CommunityService struct {
	store  store.Store
	logger *slog.Logger
}

// NewCommunityService creates a CommunityService.
func NewCommunityService(s store.Store, logger *slog.Logger) *CommunityService {
	return &CommunityService{store: s, logger: logger}
}

// Leaderboard ranks the users of a postcode by completed swaps. An empty
// postcode uses the caller's own.
func (s *CommunityService) Leaderboard(ctx context.Context, userID, postcode string) ([]domain.LeaderboardEntry, error) {
	postcode = domain.NormalizePostcode(postcode)
	if postcode == "" {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return nil, notFoundOr(err, "user not found")
		}
		postcode = user.Postcode
	}

	entries, err := s.store.Leaderboard(ctx, postcode, leaderboardLimit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load leaderboard")
	}
	return entries, nil
}

// ActiveAreas returns the ten postcodes with the most listings.
func (s *CommunityService) ActiveAreas(ctx context.Context) ([]domain.ActiveArea, error) {
	areas, err := s.store.ActiveAreas(ctx, activeAreasLimit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load active areas")
	}
	return areas, nil
}

// Dashboard summarises the caller's progress.
func (s *CommunityService) Dashboard(ctx context.Context, userID string) (*domain.Dashboard, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	books, err := s.store.CountBooksByOwner(ctx, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "count books")
	}
	badges, err := s.store.ListBadges(ctx, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list badges")
	}
	if badges == nil {
		badges = []domain.Badge{}
	}

	return &domain.Dashboard{
		BooksUploaded:      books,
		SwapsCompleted:     user.Swaps,
		BadgesEarned:       len(badges),
		Badges:             badges,
		SubscriptionStatus: user.SubscriptionStatus,
	}, nil
}

// Badges returns the badges held by userID, oldest first.
func (s *CommunityService) Badges(ctx context.Context, userID string) ([]domain.Badge, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	badges, err := s.store.ListBadges(ctx, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list badges")
	}
	if badges == nil {
		badges = []domain.Badge{}
	}
	return badges, nil
}
