package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/booksswap/booksswap-server/internal/badge"
	"github.com/booksswap/booksswap-server/internal/domain"
	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/id"
	"github.com/booksswap/booksswap-server/internal/search"
	"github.com/booksswap/booksswap-server/internal/store"
	"github.com/booksswap/booksswap-server/internal/validation"
)

// BookSearcher runs full-text queries. *search.BookIndex satisfies it.
type BookSearcher interface {
	Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error)
}

// BookService manages listings.
type BookService struct {
	store     store.Store
	gate      EntitlementChecker
	awarder   BadgeAwarder
	searcher  BookSearcher
	validator *validation.Validator
	logger    *slog.Logger
}

// NewBookService creates a BookService. searcher may be nil, in which case
// Search falls back to a postcode listing.
func NewBookService(
	s store.Store,
	gate EntitlementChecker,
	awarder BadgeAwarder,
	searcher BookSearcher,
	v *validation.Validator,
	logger *slog.Logger,
) *BookService {
	return &BookService{
		store:     s,
		gate:      gate,
		awarder:   awarder,
		searcher:  searcher,
		validator: v,
		logger:    logger,
	}
}

// CreateBookRequest describes a new listing.
type CreateBookRequest struct {
	Title       string               `json:"title" validate:"required,max=300"`
	Author      string               `json:"author" validate:"required,max=200"`
	ISBN        string               `json:"isbn,omitempty" validate:"omitempty,max=20"`
	Image       string               `json:"image,omitempty" validate:"omitempty,url,max=2048"`
	Description string               `json:"description,omitempty" validate:"max=5000"`
	Condition   domain.BookCondition `json:"condition,omitempty" validate:"omitempty,oneof=like-new good fair poor"`
	Type        domain.BookType      `json:"type,omitempty" validate:"omitempty,oneof=adult children"`
}

// CreateBookResult is the new listing plus badges earned by creating it.
type CreateBookResult struct {
	Book      *domain.Book `json:"book"`
	NewBadges []string     `json:"new_badges"`
}

// ListBooksParams filters the available listings.
type ListBooksParams struct {
	Postcode string
	Type     domain.BookType
	Limit    int
	Offset   int
}

// Create lists a book for ownerID. The owner must be entitled. The owner's
// current name and postcode are copied onto the listing.
func (s *BookService) Create(ctx context.Context, ownerID string, req CreateBookRequest) (*CreateBookResult, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	entitled, err := s.gate.IsEntitled(ctx, ownerID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if !entitled {
		return nil, domainerrors.SubscriptionRequired("an active subscription is required to list books")
	}

	owner, err := s.store.GetUser(ctx, ownerID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}

	bookID, err := id.NewBook()
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	book := &domain.Book{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        strings.TrimSpace(req.ISBN),
		Image:       req.Image,
		Description: req.Description,
		Condition:   req.Condition,
		Type:        req.Type,
		OwnerID:     owner.ID,
		OwnerName:   owner.Name,
		Postcode:    owner.Postcode,
	}
	book.ID = bookID
	book.InitTimestamps()
	book.ApplyDefaults()

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "create book")
	}

	s.logger.Info("book listed", "book_id", book.ID, "owner_id", owner.ID, "postcode", book.Postcode)

	return &CreateBookResult{Book: book, NewBadges: s.awardForBooks(ctx, owner.ID)}, nil
}

// awardForBooks evaluates book badges. Failures are logged; the scheduled
// reconciliation pass catches anything missed.
func (s *BookService) awardForBooks(ctx context.Context, ownerID string) []string {
	count, err := s.store.CountBooksByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Warn("count books for badges failed", "user_id", ownerID, "error", err)
		return nil
	}
	awarded, err := s.awarder.Award(ctx, ownerID, badge.Counters{BooksUploaded: count})
	if err != nil {
		s.logger.Warn("badge evaluation failed", "user_id", ownerID, "error", err)
	}
	return awarded
}

// Get returns one listing.
func (s *BookService) Get(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, notFoundOr(err, "book not found")
	}
	return book, nil
}

// ListAvailable returns available listings, newest first.
func (s *BookService) ListAvailable(ctx context.Context, params ListBooksParams) (*store.PaginatedResult[*domain.Book], error) {
	if params.Type != "" && !params.Type.IsValid() {
		return nil, domainerrors.Validation("type must be adult or children")
	}

	page := store.PaginationParams{Limit: params.Limit, Offset: params.Offset}
	page.Validate()

	filter := store.BookFilter{
		Postcode: domain.NormalizePostcode(params.Postcode),
		Type:     params.Type,
		Status:   domain.BookAvailable,
	}
	res, err := s.store.ListBooks(ctx, filter, page)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list books")
	}
	return res, nil
}

// ListByOwner returns every listing of ownerID in any status.
func (s *BookService) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Book, error) {
	books, err := s.store.ListBooksByOwner(ctx, ownerID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list books")
	}
	return books, nil
}

// Delete removes a listing. Only the owner may delete it and only while it is
// available; books in a swap stay until the swap is rejected or completed.
func (s *BookService) Delete(ctx context.Context, userID, bookID string) error {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return notFoundOr(err, "book not found")
	}
	if book.OwnerID != userID {
		return domainerrors.Forbidden("only the owner can delete this book")
	}
	if book.Status != domain.BookAvailable {
		return domainerrors.InvalidOperation("book is part of a swap and cannot be deleted")
	}

	err = s.store.DeleteBook(ctx, bookID)
	switch {
	case errors.Is(err, store.ErrConflict):
		return domainerrors.InvalidOperation("book is part of a swap and cannot be deleted")
	case err != nil:
		return notFoundOr(err, "book not found")
	}

	s.logger.Info("book deleted", "book_id", bookID, "owner_id", userID)
	return nil
}

// SearchResult is a page of matching available listings.
type SearchResult struct {
	Books  []*domain.Book      `json:"books"`
	Total  int                 `json:"total"`
	Facets search.SearchFacets `json:"facets"`
}

// Search runs a full-text query over available listings.
func (s *BookService) Search(ctx context.Context, params search.SearchParams) (*SearchResult, error) {
	if params.Type != "" && !params.Type.IsValid() {
		return nil, domainerrors.Validation("type must be adult or children")
	}
	page := store.PaginationParams{Limit: params.Limit, Offset: params.Offset}
	page.Validate()
	params.Limit, params.Offset = page.Limit, page.Offset

	if s.searcher == nil {
		res, err := s.ListAvailable(ctx, ListBooksParams{
			Postcode: params.Postcode, Type: params.Type, Limit: page.Limit, Offset: page.Offset,
		})
		if err != nil {
			return nil, err
		}
		return &SearchResult{Books: res.Items, Total: res.Total}, nil
	}

	res, err := s.searcher.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search books")
	}

	// The index can briefly lag the store; the store decides availability.
	books := make([]*domain.Book, 0, len(res.Hits))
	for _, hit := range res.Hits {
		book, err := s.store.GetBook(ctx, hit.ID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("load search hit failed", "book_id", hit.ID, "error", err)
			}
			continue
		}
		if book.Status == domain.BookAvailable {
			books = append(books, book)
		}
	}

	// Hits dropped from this page are not available, so they leave the total.
	//nolint:gosec // hit totals are far below MaxInt
	total := int(res.Total) - (len(res.Hits) - len(books))
	if total < len(books) {
		total = len(books)
	}
	return &SearchResult{Books: books, Total: total, Facets: res.Facets}, nil
}
