// Package store defines the persistence interface for the BooksSwap server.
package store

import (
	"context"
	"time"

	"github.com/booksswap/booksswap-server/internal/domain"
)

// Store defines all persistence operations.
type Store interface {
	Close() error
	Ping(ctx context.Context) error
	SetSearchIndexer(indexer SearchIndexer)

	UserStore
	BookStore
	SwapStore
	BadgeStore
	CommunityStore
}

// UserStore persists accounts.
type UserStore interface {
	// CreateUser returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByBillingCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	UpdateUserProfile(ctx context.Context, userID, name, postcode string) error
	SetBillingCustomerID(ctx context.Context, userID, customerID string) error
	UpdateSubscriptionStatus(ctx context.Context, userID string, status domain.SubscriptionStatus) error
	// ListUserCounters returns the badge counters of every user.
	ListUserCounters(ctx context.Context) ([]UserCounters, error)
}

// BookStore persists listings. Deleted books are invisible to every read.
type BookStore interface {
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	ListBooks(ctx context.Context, filter BookFilter, params PaginationParams) (*PaginatedResult[*domain.Book], error)
	ListBooksByOwner(ctx context.Context, ownerID string) ([]*domain.Book, error)
	CountBooksByOwner(ctx context.Context, ownerID string) (int, error)
	// DeleteBook soft-deletes an available book. It returns ErrConflict when
	// the book is part of a swap.
	DeleteBook(ctx context.Context, id string) error
}

// SwapStore persists swap requests. Every write that changes a swap also
// changes its book in the same transaction, guarded by the expected source
// states, and returns ErrConflict when either guard fails.
type SwapStore interface {
	// CreateSwapRequest moves the book from available to pending and inserts
	// the request.
	CreateSwapRequest(ctx context.Context, swap *domain.SwapRequest) error
	GetSwapRequest(ctx context.Context, id string) (*domain.SwapRequest, error)
	ListSwapsByOwner(ctx context.Context, ownerID string) ([]*domain.SwapRequest, error)
	ListSwapsByRequester(ctx context.Context, requesterID string) ([]*domain.SwapRequest, error)
	TransitionSwap(ctx context.Context, t SwapTransition) error
}

// BadgeStore persists awarded badges.
type BadgeStore interface {
	HasBadge(ctx context.Context, userID, name string) (bool, error)
	// CreateBadge returns ErrAlreadyExists when the user already holds name.
	CreateBadge(ctx context.Context, badge *domain.Badge) error
	ListBadges(ctx context.Context, userID string) ([]domain.Badge, error)
}

// CommunityStore answers aggregate queries.
type CommunityStore interface {
	Leaderboard(ctx context.Context, postcode string, limit int) ([]domain.LeaderboardEntry, error)
	ActiveAreas(ctx context.Context, limit int) ([]domain.ActiveArea, error)
}

// BookFilter narrows ListBooks. Zero fields do not filter.
type BookFilter struct {
	Postcode       string
	Type           domain.BookType
	Status         domain.BookStatus
	OwnerID        string
	ExcludeOwnerID string
}

// SwapTransition describes one guarded state change.
type SwapTransition struct {
	SwapID string
	From   domain.SwapStatus
	To     domain.SwapStatus

	// BookStatus, when set, moves the swap's book from pending to this status.
	BookStatus domain.BookStatus
	// CompletedAt is stored on the swap when set.
	CompletedAt *time.Time
	// IncrementSwaps lists users whose completed-swap counter goes up by one.
	IncrementSwaps []string
}

// UserCounters holds the values the badge evaluator reads.
type UserCounters struct {
	UserID         string
	BooksUploaded  int
	SwapsCompleted int
}

// SearchIndexer keeps the book search index in step with store writes.
type SearchIndexer interface {
	IndexBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, bookID string) error
}

// NoopSearchIndexer discards index updates.
type NoopSearchIndexer struct{}

// IndexBook is a no-op.
func (NoopSearchIndexer) IndexBook(context.Context, *domain.Book) error { return nil }

// DeleteBook is a no-op.
func (NoopSearchIndexer) DeleteBook(context.Context, string) error { return nil }
