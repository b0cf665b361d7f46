package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/store"
)

type recordingIndexer struct {
	mu      sync.Mutex
	indexed map[string]domain.BookStatus
	deleted []string
}

func newRecordingIndexer() *recordingIndexer {
	return &recordingIndexer{indexed: map[string]domain.BookStatus{}}
}

func (r *recordingIndexer) IndexBook(_ context.Context, b *domain.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed[b.ID] = b.Status
	return nil
}

func (r *recordingIndexer) DeleteBook(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return nil
}

func TestCreateAndGetBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	idx := newRecordingIndexer()
	s.SetSearchIndexer(idx)

	owner := mustCreateUser(t, s, "usr-1", "a@example.com", "SW1A1AA")
	book := makeTestBook("book-1", owner)
	book.Title = "Dune"
	book.ISBN = "9780441013593"
	book.Condition = domain.ConditionLikeNew

	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Title != "Dune" || got.ISBN != "9780441013593" {
		t.Errorf("unexpected book: %+v", got)
	}
	if got.Status != domain.BookAvailable {
		t.Errorf("Status: got %q", got.Status)
	}
	if got.Type != domain.BookTypeAdult {
		t.Errorf("Type default: got %q", got.Type)
	}
	if got.Condition != domain.ConditionLikeNew {
		t.Errorf("Condition: got %q", got.Condition)
	}
	if got.OwnerName != owner.Name || got.Postcode != "SW1A1AA" {
		t.Errorf("owner snapshot not stored: %+v", got)
	}
	if idx.indexed["book-1"] != domain.BookAvailable {
		t.Errorf("book not indexed")
	}
}

func TestListBooks_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateUser(t, s, "usr-a", "a@example.com", "SW1A1AA")
	b := mustCreateUser(t, s, "usr-b", "b@example.com", "M11AE")

	base := time.Now().Add(-time.Hour)
	for i, spec := range []struct {
		id    string
		owner *domain.User
		kind  domain.BookType
	}{
		{"book-1", a, domain.BookTypeAdult},
		{"book-2", a, domain.BookTypeChildren},
		{"book-3", b, domain.BookTypeAdult},
	} {
		bk := makeTestBook(spec.id, spec.owner)
		bk.Type = spec.kind
		bk.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		bk.UpdatedAt = bk.CreatedAt
		if err := s.CreateBook(ctx, bk); err != nil {
			t.Fatalf("CreateBook: %v", err)
		}
	}

	page, err := s.ListBooks(ctx, store.BookFilter{Postcode: "SW1A1AA"}, store.DefaultPaginationParams())
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("postcode filter: got %d items, total %d", len(page.Items), page.Total)
	}
	if page.Items[0].ID != "book-2" {
		t.Errorf("expected newest first, got %s", page.Items[0].ID)
	}

	page, _ = s.ListBooks(ctx, store.BookFilter{Type: domain.BookTypeChildren}, store.DefaultPaginationParams())
	if len(page.Items) != 1 || page.Items[0].ID != "book-2" {
		t.Errorf("type filter: %+v", page.Items)
	}

	page, _ = s.ListBooks(ctx, store.BookFilter{ExcludeOwnerID: "usr-a"}, store.DefaultPaginationParams())
	if len(page.Items) != 1 || page.Items[0].ID != "book-3" {
		t.Errorf("exclude owner filter: %+v", page.Items)
	}

	page, _ = s.ListBooks(ctx, store.BookFilter{}, store.PaginationParams{Limit: 2})
	if len(page.Items) != 2 || !page.HasMore || page.Total != 3 {
		t.Errorf("pagination: items=%d hasMore=%v total=%d", len(page.Items), page.HasMore, page.Total)
	}
	page, _ = s.ListBooks(ctx, store.BookFilter{}, store.PaginationParams{Limit: 2, Offset: 2})
	if len(page.Items) != 1 || page.HasMore {
		t.Errorf("second page: items=%d hasMore=%v", len(page.Items), page.HasMore)
	}
}

func TestDeleteBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	idx := newRecordingIndexer()
	s.SetSearchIndexer(idx)

	owner := mustCreateUser(t, s, "usr-1", "a@example.com", "SW1A1AA")
	mustCreateBook(t, s, "book-1", owner)

	if err := s.DeleteBook(ctx, "book-1"); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	if _, err := s.GetBook(ctx, "book-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleted book still visible: %v", err)
	}
	if n, _ := s.CountBooksByOwner(ctx, "usr-1"); n != 0 {
		t.Errorf("count after delete: %d", n)
	}
	if len(idx.deleted) != 1 {
		t.Errorf("index not updated on delete")
	}

	if err := s.DeleteBook(ctx, "book-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBook_PendingIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := mustCreateUser(t, s, "usr-a", "a@example.com", "SW1A1AA")
	requester := mustCreateUser(t, s, "usr-b", "b@example.com", "SW1A1AA")
	mustCreateBook(t, s, "book-1", owner)

	if err := s.CreateSwapRequest(ctx, makeTestSwap("swap-1", "book-1", requester.ID, owner.ID)); err != nil {
		t.Fatalf("CreateSwapRequest: %v", err)
	}

	if err := s.DeleteBook(ctx, "book-1"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestListBooksByOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateUser(t, s, "usr-a", "a@example.com", "SW1A1AA")
	b := mustCreateUser(t, s, "usr-b", "b@example.com", "SW1A1AA")
	mustCreateBook(t, s, "book-1", a)
	mustCreateBook(t, s, "book-2", a)
	mustCreateBook(t, s, "book-3", b)

	books, err := s.ListBooksByOwner(ctx, "usr-a")
	if err != nil {
		t.Fatalf("ListBooksByOwner: %v", err)
	}
	if len(books) != 2 {
		t.Errorf("expected 2 books, got %d", len(books))
	}
	n, err := s.CountBooksByOwner(ctx, "usr-a")
	if err != nil || n != 2 {
		t.Errorf("CountBooksByOwner: %d %v", n, err)
	}
}
