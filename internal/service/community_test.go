package service

import (
	"context"
	"testing"

	"github.com/booksswap/booksswap-server/internal/domain"
	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommunityService_Dashboard(t *testing.T) {
	f := newSwapFixture(t)
	ctx := context.Background()

	swap := f.request(t)
	_, err := f.env.swaps.Accept(ctx, f.owner.ID, swap.ID)
	require.NoError(t, err)
	_, err = f.env.swaps.Complete(ctx, f.owner.ID, swap.ID)
	require.NoError(t, err)

	dash, err := f.env.community.Dashboard(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.BooksUploaded)
	assert.Equal(t, 1, dash.SwapsCompleted)
	assert.Equal(t, 2, dash.BadgesEarned)
	assert.Equal(t, domain.SubscriptionActive, dash.SubscriptionStatus)

	dash, err = f.env.community.Dashboard(ctx, f.outsider.ID)
	require.NoError(t, err)
	assert.Zero(t, dash.BadgesEarned)
	assert.NotNil(t, dash.Badges)

	_, err = f.env.community.Dashboard(ctx, "usr-missing")
	assertCode(t, err, domainerrors.CodeNotFound)
}

func TestCommunityService_Leaderboard(t *testing.T) {
	f := newSwapFixture(t)
	ctx := context.Background()
	elsewhere := f.env.register(t, "far", "M1 1AE", domain.SubscriptionActive)

	swap := f.request(t)
	_, err := f.env.swaps.Accept(ctx, f.owner.ID, swap.ID)
	require.NoError(t, err)
	_, err = f.env.swaps.Complete(ctx, f.requester.ID, swap.ID)
	require.NoError(t, err)

	// Empty postcode uses the caller's.
	board, err := f.env.community.Leaderboard(ctx, f.outsider.ID, "")
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, 1, board[0].Swaps)
	assert.Contains(t, board[0].Badges, "First Swap")
	assert.Zero(t, board[2].Swaps)

	board, err = f.env.community.Leaderboard(ctx, f.outsider.ID, "m1 1ae")
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, elsewhere.ID, board[0].UserID)
}

func TestCommunityService_ActiveAreas(t *testing.T) {
	env := newTestEnv(t)
	london := env.register(t, "london", "SW1A 1AA", domain.SubscriptionActive)
	manchester := env.register(t, "manc", "M1 1AE", domain.SubscriptionActive)
	env.listBook(t, london, "A")
	env.listBook(t, london, "B")
	env.listBook(t, manchester, "C")

	areas, err := env.community.ActiveAreas(context.Background())
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, "SW1A 1AA", areas[0].Postcode)
	assert.Equal(t, 2, areas[0].BookCount)
	assert.Equal(t, 1, areas[0].UserCount)
}
