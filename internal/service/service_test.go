package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/booksswap/booksswap-server/internal/auth"
	"github.com/booksswap/booksswap-server/internal/badge"
	"github.com/booksswap/booksswap-server/internal/billing"
	"github.com/booksswap/booksswap-server/internal/domain"
	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/logger"
	"github.com/booksswap/booksswap-server/internal/notify"
	"github.com/booksswap/booksswap-server/internal/sse"
	"github.com/booksswap/booksswap-server/internal/store/sqlite"
	"github.com/booksswap/booksswap-server/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

// For returns messages sent to userID, in order.
func (r *recordingNotifier) For(userID string) []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Message
	for _, m := range r.messages {
		if m.Recipient.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

func (r *recordingNotifier) Kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]notify.Kind, 0, len(r.messages))
	for _, m := range r.messages {
		kinds = append(kinds, m.Kind)
	}
	return kinds
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(e sse.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

func (r *recordingEmitter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type countingRecorder struct {
	mu    sync.Mutex
	swaps map[string]int
	bills map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{swaps: map[string]int{}, bills: map[string]int{}}
}

func (c *countingRecorder) SwapOutcome(op, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swaps[op+":"+outcome]++
}

func (c *countingRecorder) BillingEvent(eventType, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bills[eventType+":"+outcome]++
}

type testEnv struct {
	store    *sqlite.Store
	notifier *recordingNotifier
	emitter  *recordingEmitter
	recorder *countingRecorder

	auth      *AuthService
	users     *UserService
	books     *BookService
	swaps     *SwapService
	community *CommunityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.Discard()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	key, err := auth.LoadOrGenerateKey(filepath.Join(t.TempDir(), "auth.key"))
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	v := validation.New()
	gate := billing.NewGate(s)
	awarder := badge.NewAwarder(s, nil, log)

	env := &testEnv{
		store:    s,
		notifier: &recordingNotifier{},
		emitter:  &recordingEmitter{},
		recorder: newCountingRecorder(),
	}
	env.auth = NewAuthService(s, tokens, v, env.notifier, log)
	env.users = NewUserService(s, v, log)
	env.books = NewBookService(s, gate, awarder, nil, v, log)
	env.swaps = NewSwapService(s, gate, awarder, env.notifier, v, log, SwapServiceConfig{
		Events:   env.emitter,
		Recorder: env.recorder,
	})
	env.community = NewCommunityService(s, log)
	return env
}

// register creates an account with the given subscription status.
func (e *testEnv) register(t *testing.T, name, postcode string, status domain.SubscriptionStatus) *domain.User {
	t.Helper()
	ctx := context.Background()

	resp, err := e.auth.Register(ctx, RegisterRequest{
		Email:    name + "@example.com",
		Password: "correct horse battery",
		Name:     name,
		Postcode: postcode,
	})
	require.NoError(t, err)

	if status != domain.SubscriptionInactive {
		require.NoError(t, e.store.UpdateSubscriptionStatus(ctx, resp.User.ID, status))
	}
	user, err := e.store.GetUser(ctx, resp.User.ID)
	require.NoError(t, err)
	return user
}

func (e *testEnv) listBook(t *testing.T, owner *domain.User, title string) *domain.Book {
	t.Helper()
	res, err := e.books.Create(context.Background(), owner.ID, CreateBookRequest{
		Title:  title,
		Author: "Some Author",
	})
	require.NoError(t, err)
	return res.Book
}

func assertCode(t *testing.T, err error, code domainerrors.Code) {
	t.Helper()
	require.Error(t, err)
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code, "error: %v", err)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "FORBIDDEN", outcome(domainerrors.Forbidden("no")))
	assert.Equal(t, "INTERNAL", outcome(assert.AnError))
}
