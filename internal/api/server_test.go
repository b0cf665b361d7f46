package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksswap/booksswap-server/internal/auth"
	"github.com/booksswap/booksswap-server/internal/badge"
	"github.com/booksswap/booksswap-server/internal/billing"
	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/logger"
	"github.com/booksswap/booksswap-server/internal/notify"
	"github.com/booksswap/booksswap-server/internal/service"
	"github.com/booksswap/booksswap-server/internal/sse"
	"github.com/booksswap/booksswap-server/internal/store/sqlite"
	"github.com/booksswap/booksswap-server/internal/validation"
)

// testEnvelope decodes the response envelope with typed data.
type testEnvelope[T any] struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

type stubProvider struct {
	event    *billing.Event
	parseErr error
}

func (p *stubProvider) CreateCustomer(_ context.Context, user *domain.User) (string, error) {
	return "cus_" + user.ID, nil
}

func (p *stubProvider) CreateCheckoutSession(_ context.Context, _, customerID string) (string, error) {
	return "https://checkout.test/" + customerID, nil
}

func (p *stubProvider) CancelSubscription(context.Context, string) error {
	return nil
}

func (p *stubProvider) ParseWebhook([]byte, string) (*billing.Event, error) {
	return p.event, p.parseErr
}

type testServer struct {
	*Server
	store    *sqlite.Store
	provider *stubProvider
}

type serverOption func(*Options)

func withAuthRateLimit(limiter *RateLimiter) serverOption {
	return func(o *Options) { o.AuthRateLimiter = limiter }
}

// setupTestServer creates a server over a temporary database with real services.
func setupTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	log := logger.Discard()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	key, err := auth.LoadOrGenerateKey(filepath.Join(t.TempDir(), "auth.key"))
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, 15*time.Minute)
	require.NoError(t, err)

	v := validation.New()
	gate := billing.NewGate(s)
	awarder := badge.NewAwarder(s, nil, log)
	notifier := notify.Discard{}
	provider := &stubProvider{}

	sseManager := sse.NewManager(log)

	services := &Services{
		Auth:      service.NewAuthService(s, tokens, v, notifier, log),
		User:      service.NewUserService(s, v, log),
		Book:      service.NewBookService(s, gate, awarder, nil, v, log),
		Swap:      service.NewSwapService(s, gate, awarder, notifier, v, log, service.SwapServiceConfig{Events: sseManager}),
		Community: service.NewCommunityService(s, log),
		Billing:   service.NewBillingService(s, provider, notifier, nil, log),
	}

	options := Options{SSE: sseManager}
	for _, opt := range opts {
		opt(&options)
	}

	return &testServer{
		Server:   NewServer(s, services, options, log),
		store:    s,
		provider: provider,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	assert.Equal(t, 1, env.V)
	return env
}

// registerUser signs up a user and returns its ID and token. A non-inactive
// status is written directly, as a billing callback would.
func (ts *testServer) registerUser(t *testing.T, name, postcode string, status domain.SubscriptionStatus) (string, string) {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    name + "@example.com",
		"password": "correct horse battery",
		"name":     name,
		"postcode": postcode,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode[AuthResponse](t, w)

	if status != domain.SubscriptionInactive {
		require.NoError(t, ts.store.UpdateSubscriptionStatus(context.Background(), env.Data.User.ID, status))
	}
	return env.Data.User.ID, env.Data.AccessToken
}

func (ts *testServer) createBook(t *testing.T, token, title string) BookResponse {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/books", token, map[string]string{
		"title":  title,
		"author": "Author of " + title,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		Book BookResponse `json:"book"`
	}](t, w).Data.Book
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decode[HealthResponse](t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", env.Data.Components["database"].Status)
	assert.Equal(t, "healthy", env.Data.Components["sse"].Status)
	// No search index is wired in tests.
	assert.Equal(t, "degraded", env.Data.Components["search"].Status)
	assert.Equal(t, "degraded", env.Data.Status)
}

func TestServer_Routes(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"health check", http.MethodGet, "/health", http.StatusOK},
		{"public listing", http.MethodGet, "/api/v1/books", http.StatusOK},
		{"active areas", http.MethodGet, "/api/v1/community/active-areas", http.StatusOK},
		{"public leaderboard", http.MethodGet, "/api/v1/community/leaderboard/SW1A1AA", http.StatusOK},
		{"me requires auth", http.MethodGet, "/api/v1/users/me", http.StatusUnauthorized},
		{"my books requires auth", http.MethodGet, "/api/v1/books/mine", http.StatusUnauthorized},
		{"dashboard requires auth", http.MethodGet, "/api/v1/community/dashboard", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/api/v1/nonexistent", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, "", nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	ts := setupTestServer(t)

	userID, token := ts.registerUser(t, "alice", "sw1a 1aa", domain.SubscriptionInactive)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ALICE@example.com",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[AuthResponse](t, w)
	assert.Equal(t, "Bearer", login.Data.TokenType)
	assert.NotEmpty(t, login.Data.AccessToken)

	w = ts.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[UserResponse](t, w)
	assert.True(t, me.Success)
	assert.Equal(t, userID, me.Data.ID)
	assert.Equal(t, "SW1A 1AA", me.Data.Postcode)
	assert.Equal(t, "inactive", me.Data.SubscriptionStatus)
}

func TestAuth_Errors(t *testing.T) {
	ts := setupTestServer(t)
	ts.registerUser(t, "alice", "SW1A 1AA", domain.SubscriptionInactive)

	t.Run("wrong password", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "not the password",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		env := decode[any](t, w)
		assert.False(t, env.Success)
		assert.Equal(t, "INVALID_CREDENTIALS", env.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"email": "alice@example.com", "password": "another password", "name": "Alice", "postcode": "SW1A 1AA",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "ALREADY_EXISTS", decode[any](t, w).Code)
	})

	t.Run("invalid postcode", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"email": "bob@example.com", "password": "long enough pw", "name": "Bob", "postcode": "not a postcode",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION", decode[any](t, w).Code)
	})

	t.Run("missing field", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"email": "carol@example.com",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "VALIDATION", decode[any](t, w).Code)
	})

	t.Run("bad token", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/users/me", "v4.local.garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", decode[any](t, w).Code)
	})
}

func TestBooks_Paywall(t *testing.T) {
	ts := setupTestServer(t)
	_, token := ts.registerUser(t, "alice", "SW1A 1AA", domain.SubscriptionInactive)

	w := ts.do(t, http.MethodPost, "/api/v1/books", token, map[string]string{
		"title": "Dune", "author": "Frank Herbert",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SUBSCRIPTION_REQUIRED", decode[any](t, w).Code)
}

func TestBooks_CreateListGetDelete(t *testing.T) {
	ts := setupTestServer(t)
	_, token := ts.registerUser(t, "alice", "SW1A 1AA", domain.SubscriptionTrialing)

	w := ts.do(t, http.MethodPost, "/api/v1/books", token, map[string]string{
		"title": "Dune", "author": "Frank Herbert", "type": "adult",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Book      BookResponse `json:"book"`
		NewBadges []string     `json:"new_badges"`
	}](t, w)
	assert.Equal(t, "available", created.Data.Book.Status)
	assert.Equal(t, "good", created.Data.Book.Condition)
	assert.Equal(t, "SW1A 1AA", created.Data.Book.Postcode)
	assert.Equal(t, []string{"Book Uploader"}, created.Data.NewBadges)

	w = ts.do(t, http.MethodGet, "/api/v1/books?postcode=sw1a1aa", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[BookListResponse](t, w)
	require.Len(t, list.Data.Books, 1)
	assert.Equal(t, 1, list.Data.Total)
	assert.False(t, list.Data.HasMore)

	w = ts.do(t, http.MethodGet, "/api/v1/books/mine", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/books/"+created.Data.Book.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dune", decode[BookResponse](t, w).Data.Title)

	w = ts.do(t, http.MethodDelete, "/api/v1/books/"+created.Data.Book.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/books/"+created.Data.Book.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[any](t, w).Code)
}

func TestBooks_DeleteByOtherUserForbidden(t *testing.T) {
	ts := setupTestServer(t)
	_, owner := ts.registerUser(t, "alice", "SW1A 1AA", domain.SubscriptionActive)
	_, other := ts.registerUser(t, "bob", "SW1A 1AA", domain.SubscriptionActive)
	book := ts.createBook(t, owner, "Dune")

	w := ts.do(t, http.MethodDelete, "/api/v1/books/"+book.ID, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode[any](t, w).Code)
}

func TestBooks_InvalidTypeFilter(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/books?type=poetry", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, w).Code)
}

func TestSwaps_FullLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	ownerID, owner := ts.registerUser(t, "alice", "SW1A 1AA", domain.SubscriptionActive)
	requesterID, requester := ts.registerUser(t, "bob", "SW1A 1AA", domain.SubscriptionActive)
	book := ts.createBook(t, owner, "Dune")

	w := ts.do(t, http.MethodPost, "/api/v1/swaps", requester, map[string]string{
		"book_id":          book.ID,
		"meeting_location": "Library steps",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	swap := decode[SwapResponse](t, w).Data
	assert.Equal(t, "pending", swap.Status)
	assert.Equal(t, ownerID, swap.OwnerID)
	assert.Equal(t, "Library steps", swap.MeetingLocation)

	w = ts.do(t, http.MethodGet, "/api/v1/books/"+book.ID, "", nil)
	assert.Equal(t, "pending", decode[BookResponse](t, w).Data.Status)

	w = ts.do(t, http.MethodGet, "/api/v1/swaps/incoming", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	incoming := decode[struct {
		Swaps []SwapDetailsResponse `json:"swaps"`
	}](t, w).Data.Swaps
	require.Len(t, incoming, 1)
	assert.Equal(t, "Dune", incoming[0].BookTitle)
	assert.Equal(t, "bob", incoming[0].RequesterName)

	// Only the owner may accept.
	w = ts.do(t, http.MethodPost, "/api/v1/swaps/"+swap.ID+"/accept", requester, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/swaps/"+swap.ID+"/accept", owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "accepted", decode[SwapResponse](t, w).Data.Status)

	w = ts.do(t, http.MethodPost, "/api/v1/swaps/"+swap.ID+"/reject", owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_OPERATION", decode[any](t, w).Code)

	w = ts.do(t, http.MethodPost, "/api/v1/swaps/"+swap.ID+"/complete", requester, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[struct {
		Swap      SwapResponse        `json:"swap"`
		NewBadges map[string][]string `json:"new_badges"`
	}](t, w).Data
	assert.Equal(t, "completed", done.Swap.Status)
	assert.NotNil(t, done.Swap.CompletedAt)
	assert.Equal(t, []string{"First Swap"}, done.NewBadges[ownerID])
	assert.Equal(t, []string{"First Swap"}, done.NewBadges[requesterID])

	w = ts.do(t, http.MethodGet, "/api/v1/books/"+book.ID, "", nil)
	assert.Equal(t, "swapped", decode[BookResponse](t, w).Data.Status)

	w = ts.do(t, http.MethodGet, "/api/v1/community/dashboard", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	dash := decode[DashboardResponse](t, w).Data
	assert.Equal(t, 1, dash.BooksUploaded)
	assert.Equal(t, 1, dash.SwapsCompleted)
	assert.Equal(t, 2, dash.BadgesEarned)

	w = ts.do(t, http.MethodGet, "/api/v1/community/leaderboard", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	board := decode[struct {
		Entries []struct {
			UserID string `json:"user_id"`
			Swaps  int    `json:"swaps"`
		} `json:"entries"`
	}](t, w).Data.Entries
	require.Len(t, board, 2)
	for _, e := range board {
		assert.Equal(t, 1, e.Swaps)
	}
}

func TestSwaps_OwnBookRejected(t *testing.T) {
	ts := setupTestServer(t)
	_, owner := ts.registerUser(t, "alice", "SW1A 1AA", domain.SubscriptionActive)
	book := ts.createBook(t, owner, "Dune")

	w := ts.do(t, http.MethodPost, "/api/v1/swaps", owner, map[string]string{"book_id": book.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_OPERATION", decode[any](t, w).Code)

	// No swap was created and the book is untouched.
	w = ts.do(t, http.MethodGet, "/api/v1/swaps/incoming", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[struct {
		Swaps []SwapDetailsResponse `json:"swaps"`
	}](t, w).Data.Swaps)

	w = ts.do(t, http.MethodGet, "/api/v1/books/"+book.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "available", decode[BookResponse](t, w).Data.Status)
}

func TestSwaps_GetIsParticipantOnly(t *testing.T) {
	ts := setupTestServer(t)
	_, owner := ts.registerUser(t, "alice", "SW1A 1AA", domain.SubscriptionActive)
	_, requester := ts.registerUser(t, "bob", "SW1A 1AA", domain.SubscriptionActive)
	_, stranger := ts.registerUser(t, "carol", "SW1A 1AA", domain.SubscriptionActive)
	book := ts.createBook(t, owner, "Dune")

	w := ts.do(t, http.MethodPost, "/api/v1/swaps", requester, map[string]string{"book_id": book.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	swapID := decode[SwapResponse](t, w).Data.ID

	w = ts.do(t, http.MethodGet, "/api/v1/swaps/"+swapID, stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/swaps/"+swapID, requester, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBilling_StatusAndCheckout(t *testing.T) {
	ts := setupTestServer(t)
	userID, token := ts.registerUser(t, "alice", "SW1A 1AA", domain.SubscriptionTrialing)

	w := ts.do(t, http.MethodGet, "/api/v1/billing/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[struct {
		Status   string `json:"status"`
		IsActive bool   `json:"is_active"`
	}](t, w).Data
	assert.Equal(t, "trialing", status.Status)
	assert.True(t, status.IsActive)

	w = ts.do(t, http.MethodPost, "/api/v1/billing/checkout", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	checkout := decode[struct {
		URL string `json:"url"`
	}](t, w).Data
	assert.Equal(t, "https://checkout.test/cus_"+userID, checkout.URL)
}

func TestBilling_Webhook(t *testing.T) {
	ts := setupTestServer(t)
	userID, token := ts.registerUser(t, "alice", "SW1A 1AA", domain.SubscriptionInactive)

	ts.provider.event = &billing.Event{
		ID:         "evt_1",
		Type:       billing.EventCheckoutCompleted,
		UserID:     userID,
		CustomerID: "cus_1",
		Status:     domain.SubscriptionActive,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewReader([]byte(`{"id":"evt_1"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[struct {
		Received bool `json:"received"`
	}](t, w).Data.Received)

	w = ts.do(t, http.MethodGet, "/api/v1/billing/status", token, nil)
	assert.Equal(t, "active", decode[struct {
		Status string `json:"status"`
	}](t, w).Data.Status)

	// Now entitled.
	ts.createBook(t, token, "Dune")
}

func TestBilling_WebhookInvalidSignature(t *testing.T) {
	ts := setupTestServer(t)
	ts.provider.parseErr = billing.ErrInvalidSignature

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, w).Code)
}

func TestRateLimit_AuthRoutes(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour, 2)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, withAuthRateLimit(limiter))

	body := map[string]string{"email": "nobody@example.com", "password": "whatever pw"}
	for range 2 {
		w := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decode[any](t, w).Code)

	// Other routes are not limited.
	w = ts.do(t, http.MethodGet, "/api/v1/books", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		header string
		want   string
		ok     bool
	}{
		{"header", "/api/v1/users/me", "Bearer abc", "abc", true},
		{"lowercase scheme", "/api/v1/users/me", "bearer abc", "abc", true},
		{"wrong scheme", "/api/v1/users/me", "Basic abc", "", false},
		{"query on events", eventsPath + "?access_token=xyz", "", "xyz", true},
		{"query elsewhere ignored", "/api/v1/users/me?access_token=xyz", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, ok := bearerToken(req)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
