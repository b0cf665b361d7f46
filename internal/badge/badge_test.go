package badge

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/store"
	"github.com/booksswap/booksswap-server/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualifying(t *testing.T) {
	tests := []struct {
		name string
		in   Counters
		want []string
	}{
		{"nothing", Counters{}, nil},
		{"first book", Counters{BooksUploaded: 1}, []string{BookUploader}},
		{"four books", Counters{BooksUploaded: 4}, []string{BookUploader}},
		{"five books", Counters{BooksUploaded: 5}, []string{BookUploader, FiveBooks}},
		{"tenth book crosses all", Counters{BooksUploaded: 10}, []string{BookUploader, FiveBooks, TenBooks}},
		{"beyond ten", Counters{BooksUploaded: 42}, []string{BookUploader, FiveBooks, TenBooks}},
		{"first swap", Counters{SwapsCompleted: 1}, []string{FirstSwap}},
		{"five swaps", Counters{SwapsCompleted: 5}, []string{FirstSwap, FiveSwaps}},
		{"both", Counters{BooksUploaded: 1, SwapsCompleted: 10}, []string{BookUploader, FirstSwap, FiveSwaps, TenSwaps}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Qualifying(tt.in))
		})
	}
}

type countingRecorder struct{ names []string }

func (c *countingRecorder) BadgeAwarded(name string) { c.names = append(c.names, name) }

func setupTestAwarder(t *testing.T) (*Awarder, *sqlite.Store, *countingRecorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "badges.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	u := &domain.User{Email: "a@example.com", PasswordHash: "x", Name: "A", Postcode: "SW1A1AA"}
	u.ID = "usr-a"
	u.InitTimestamps()
	require.NoError(t, s.CreateUser(context.Background(), u))

	rec := &countingRecorder{}
	return NewAwarder(s, rec, logger), s, rec
}

func TestAward_IsIdempotent(t *testing.T) {
	a, s, rec := setupTestAwarder(t)
	ctx := context.Background()

	first, err := a.Award(ctx, "usr-a", Counters{SwapsCompleted: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{FirstSwap}, first)

	again, err := a.Award(ctx, "usr-a", Counters{SwapsCompleted: 1})
	require.NoError(t, err)
	assert.Empty(t, again)

	badges, err := s.ListBadges(ctx, "usr-a")
	require.NoError(t, err)
	assert.Len(t, badges, 1)
	assert.Equal(t, []string{FirstSwap}, rec.names)
}

func TestAward_MultipleThresholdsInOneCall(t *testing.T) {
	a, s, _ := setupTestAwarder(t)
	ctx := context.Background()

	got, err := a.Award(ctx, "usr-a", Counters{BooksUploaded: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{BookUploader, FiveBooks, TenBooks}, got)

	badges, err := s.ListBadges(ctx, "usr-a")
	require.NoError(t, err)
	assert.Len(t, badges, 3)
}

func TestAward_OnlyNewlyCrossed(t *testing.T) {
	a, _, _ := setupTestAwarder(t)
	ctx := context.Background()

	_, err := a.Award(ctx, "usr-a", Counters{BooksUploaded: 4})
	require.NoError(t, err)

	got, err := a.Award(ctx, "usr-a", Counters{BooksUploaded: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{FiveBooks}, got)
}

func TestAward_NeverRevokes(t *testing.T) {
	a, s, _ := setupTestAwarder(t)
	ctx := context.Background()

	_, err := a.Award(ctx, "usr-a", Counters{BooksUploaded: 5})
	require.NoError(t, err)

	// Fewer books after deletions does not remove anything.
	got, err := a.Award(ctx, "usr-a", Counters{BooksUploaded: 1})
	require.NoError(t, err)
	assert.Empty(t, got)

	badges, _ := s.ListBadges(ctx, "usr-a")
	assert.Len(t, badges, 2)
}

// racingStore reports the badge missing but fails the insert as a duplicate.
type racingStore struct{}

func (racingStore) HasBadge(context.Context, string, string) (bool, error) { return false, nil }
func (racingStore) CreateBadge(context.Context, *domain.Badge) error       { return store.ErrAlreadyExists }

func TestAward_LostRaceIsNotAnError(t *testing.T) {
	a := NewAwarder(racingStore{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	got, err := a.Award(context.Background(), "usr-a", Counters{SwapsCompleted: 1})
	require.NoError(t, err)
	assert.Empty(t, got)
}
