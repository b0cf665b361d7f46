package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksswap/booksswap-server/internal/domain"
)

func TestCommunity_PublicEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	_, aliceToken := ts.registerUser(t, "alice", "SW1A1AA", domain.SubscriptionActive)
	_, bobToken := ts.registerUser(t, "bob", "SW1A1AA", domain.SubscriptionTrialing)
	_, carolToken := ts.registerUser(t, "carol", "M11AE", domain.SubscriptionActive)

	ts.createBook(t, aliceToken, "Dune")
	ts.createBook(t, bobToken, "Emma")
	ts.createBook(t, carolToken, "Matilda")

	api := humatest.Wrap(t, ts.API())

	t.Run("active areas ranks postcodes by listings", func(t *testing.T) {
		resp := api.Get("/api/v1/community/active-areas")
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var env testEnvelope[struct {
			Areas []domain.ActiveArea `json:"areas"`
		}]
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
		require.Len(t, env.Data.Areas, 2)
		assert.Equal(t, domain.ActiveArea{Postcode: "SW1A1AA", BookCount: 2, UserCount: 2}, env.Data.Areas[0])
		assert.Equal(t, domain.ActiveArea{Postcode: "M11AE", BookCount: 1, UserCount: 1}, env.Data.Areas[1])
	})

	t.Run("leaderboard normalizes the postcode", func(t *testing.T) {
		resp := api.Get("/api/v1/community/leaderboard/sw1a1aa")
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var env testEnvelope[struct {
			Postcode string                    `json:"postcode"`
			Entries  []domain.LeaderboardEntry `json:"entries"`
		}]
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
		assert.Equal(t, "SW1A1AA", env.Data.Postcode)

		names := make([]string, 0, len(env.Data.Entries))
		for _, e := range env.Data.Entries {
			names = append(names, e.Name)
			assert.Zero(t, e.Swaps)
			assert.Equal(t, []string{"Book Uploader"}, e.Badges)
		}
		assert.ElementsMatch(t, []string{"alice", "bob"}, names)
	})

	t.Run("my leaderboard uses the caller's postcode", func(t *testing.T) {
		resp := api.Get("/api/v1/community/leaderboard", "Authorization: Bearer "+carolToken)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var env testEnvelope[struct {
			Entries []domain.LeaderboardEntry `json:"entries"`
		}]
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
		require.Len(t, env.Data.Entries, 1)
		assert.Equal(t, "carol", env.Data.Entries[0].Name)
	})

	t.Run("my leaderboard requires a token", func(t *testing.T) {
		resp := api.Get("/api/v1/community/leaderboard")
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}
