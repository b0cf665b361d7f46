package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/store"
)

func TestLeaderboard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateUser(t, s, "usr-a", "a@example.com", "SW1A1AA")
	b := mustCreateUser(t, s, "usr-b", "b@example.com", "SW1A1AA")
	mustCreateUser(t, s, "usr-c", "c@example.com", "M11AE")

	book := mustCreateBook(t, s, "book-1", a)
	if err := s.CreateSwapRequest(ctx, makeTestSwap("swap-1", book.ID, b.ID, a.ID)); err != nil {
		t.Fatalf("CreateSwapRequest: %v", err)
	}
	if err := s.TransitionSwap(ctx, store.SwapTransition{SwapID: "swap-1", From: domain.SwapPending, To: domain.SwapAccepted}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.TransitionSwap(ctx, store.SwapTransition{
		SwapID: "swap-1", From: domain.SwapAccepted, To: domain.SwapCompleted,
		BookStatus: domain.BookSwapped, IncrementSwaps: []string{b.ID},
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s.CreateBadge(ctx, &domain.Badge{ID: "bdg-1", UserID: b.ID, Name: "First Swap", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateBadge: %v", err)
	}

	entries, err := s.Leaderboard(ctx, "SW1A1AA", 10)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != b.ID || entries[0].Swaps != 1 {
		t.Errorf("leader: %+v", entries[0])
	}
	if len(entries[0].Badges) != 1 || entries[0].Badges[0] != "First Swap" {
		t.Errorf("leader badges: %v", entries[0].Badges)
	}
	if entries[1].Badges == nil {
		t.Error("badges should be an empty slice, not nil")
	}

	empty, err := s.Leaderboard(ctx, "ZZ99ZZ", 10)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty postcode: %v %v", empty, err)
	}
}

func TestActiveAreas(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateUser(t, s, "usr-a", "a@example.com", "SW1A1AA")
	mustCreateUser(t, s, "usr-b", "b@example.com", "SW1A1AA")
	c := mustCreateUser(t, s, "usr-c", "c@example.com", "M11AE")

	mustCreateBook(t, s, "book-1", a)
	mustCreateBook(t, s, "book-2", a)
	mustCreateBook(t, s, "book-3", c)

	areas, err := s.ActiveAreas(ctx, 10)
	if err != nil {
		t.Fatalf("ActiveAreas: %v", err)
	}
	if len(areas) != 2 {
		t.Fatalf("expected 2 areas, got %d", len(areas))
	}
	if areas[0].Postcode != "SW1A1AA" || areas[0].BookCount != 2 || areas[0].UserCount != 2 {
		t.Errorf("top area: %+v", areas[0])
	}
	if areas[1].Postcode != "M11AE" || areas[1].BookCount != 1 || areas[1].UserCount != 1 {
		t.Errorf("second area: %+v", areas[1])
	}

	top, _ := s.ActiveAreas(ctx, 1)
	if len(top) != 1 {
		t.Errorf("limit not applied: %d", len(top))
	}
}
