package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/booksswap/booksswap-server/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// makeTestUser builds a user with sensible defaults.
func makeTestUser(id, email, postcode string) *domain.User {
	u := &domain.User{
		Email:              email,
		PasswordHash:       "$argon2id$fakehashfortest",
		Name:               "Reader " + id,
		Postcode:           postcode,
		SubscriptionStatus: domain.SubscriptionActive,
	}
	u.ID = id
	u.InitTimestamps()
	return u
}

// makeTestBook builds an available book owned by owner.
func makeTestBook(id string, owner *domain.User) *domain.Book {
	b := &domain.Book{
		Title:     "Book " + id,
		Author:    "Author",
		OwnerID:   owner.ID,
		OwnerName: owner.Name,
		Postcode:  owner.Postcode,
	}
	b.ID = id
	b.InitTimestamps()
	return b
}

func mustCreateUser(t *testing.T, s *Store, id, email, postcode string) *domain.User {
	t.Helper()
	u := makeTestUser(id, email, postcode)
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", id, err)
	}
	return u
}

func mustCreateBook(t *testing.T, s *Store, id string, owner *domain.User) *domain.Book {
	t.Helper()
	b := makeTestBook(id, owner)
	if err := s.CreateBook(context.Background(), b); err != nil {
		t.Fatalf("CreateBook(%s): %v", id, err)
	}
	return b
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	for _, table := range []string{"users", "books", "swap_requests", "badges"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reopen.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(path, logger)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	u := makeTestUser("usr-1", "a@example.com", "SW1A1AA")
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	s.Close()

	s2, err := Open(path, logger)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	if _, err := s2.GetUser(context.Background(), "usr-1"); err != nil {
		t.Fatalf("GetUser after reopen: %v", err)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
