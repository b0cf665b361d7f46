package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/booksswap/booksswap-server/internal/billing"
	"github.com/booksswap/booksswap-server/internal/domain"
	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/logger"
	"github.com/booksswap/booksswap-server/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	customers int
	canceled  []string
	cancelErr error
	event     *billing.Event
	parseErr  error
}

func (p *fakeProvider) CreateCustomer(_ context.Context, user *domain.User) (string, error) {
	p.customers++
	return "cus_" + user.ID, nil
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, userID, customerID string) (string, error) {
	return "https://checkout.test/" + customerID + "?u=" + userID, nil
}

func (p *fakeProvider) CancelSubscription(_ context.Context, customerID string) error {
	if p.cancelErr != nil {
		return p.cancelErr
	}
	p.canceled = append(p.canceled, customerID)
	return nil
}

func (p *fakeProvider) ParseWebhook([]byte, string) (*billing.Event, error) {
	return p.event, p.parseErr
}

func newBillingService(t *testing.T, env *testEnv, provider billing.Provider) *BillingService {
	t.Helper()
	return NewBillingService(env.store, provider, env.notifier, env.recorder, logger.Discard())
}

func TestBillingService_CreateCheckout_CreatesCustomerOnce(t *testing.T) {
	env := newTestEnv(t)
	provider := &fakeProvider{}
	svc := newBillingService(t, env, provider)
	user := env.register(t, "alice", "SW1A 1AA", domain.SubscriptionInactive)
	ctx := context.Background()

	first, err := svc.CreateCheckout(ctx, user.ID)
	require.NoError(t, err)
	assert.Contains(t, first.URL, "cus_"+user.ID)

	_, err = svc.CreateCheckout(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.customers)

	stored, err := env.store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_"+user.ID, stored.BillingCustomerID)
}

func TestBillingService_Unconfigured(t *testing.T) {
	env := newTestEnv(t)
	svc := newBillingService(t, env, billing.Unconfigured{})
	user := env.register(t, "alice", "SW1A 1AA", domain.SubscriptionInactive)
	ctx := context.Background()

	_, err := svc.CreateCheckout(ctx, user.ID)
	assertCode(t, err, domainerrors.CodeBillingUnavailable)

	err = svc.HandleWebhook(ctx, []byte(`{}`), "sig")
	assertCode(t, err, domainerrors.CodeBillingUnavailable)
}

func TestBillingService_Cancel(t *testing.T) {
	env := newTestEnv(t)
	provider := &fakeProvider{}
	svc := newBillingService(t, env, provider)
	ctx := context.Background()
	user := env.register(t, "alice", "SW1A 1AA", domain.SubscriptionActive)

	_, err := svc.CancelSubscription(ctx, user.ID)
	assertCode(t, err, domainerrors.CodeNotFound)

	require.NoError(t, env.store.SetBillingCustomerID(ctx, user.ID, "cus_1"))
	res, err := svc.CancelSubscription(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCanceled, res.Status)
	assert.False(t, res.IsActive)
	assert.Equal(t, []string{"cus_1"}, provider.canceled)

	status, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCanceled, status.Status)

	provider.cancelErr = billing.ErrNoSubscription
	_, err = svc.CancelSubscription(ctx, user.ID)
	assertCode(t, err, domainerrors.CodeNotFound)
}

func TestBillingService_Status(t *testing.T) {
	env := newTestEnv(t)
	svc := newBillingService(t, env, &fakeProvider{})
	ctx := context.Background()

	tests := []struct {
		status domain.SubscriptionStatus
		active bool
	}{
		{domain.SubscriptionInactive, false},
		{domain.SubscriptionTrialing, true},
		{domain.SubscriptionActive, true},
		{domain.SubscriptionCanceled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			user := env.register(t, "u"+string(tt.status), "SW1A 1AA", tt.status)
			res, err := svc.Status(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.active, res.IsActive)
		})
	}
}

func TestBillingService_HandleWebhook(t *testing.T) {
	env := newTestEnv(t)
	provider := &fakeProvider{}
	svc := newBillingService(t, env, provider)
	ctx := context.Background()
	user := env.register(t, "alice", "SW1A 1AA", domain.SubscriptionInactive)

	status := func() domain.SubscriptionStatus {
		u, err := env.store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		return u.SubscriptionStatus
	}

	// Checkout completion carries the user ID and links the customer.
	provider.event = &billing.Event{
		ID: "evt_1", Type: billing.EventCheckoutCompleted,
		UserID: user.ID, CustomerID: "cus_9", Status: domain.SubscriptionActive,
	}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, domain.SubscriptionActive, status())

	// Later events resolve the user by customer ID.
	provider.event = &billing.Event{
		ID: "evt_2", Type: billing.EventInvoicePaymentFailed,
		CustomerID: "cus_9", Status: domain.SubscriptionInactive,
	}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, domain.SubscriptionInactive, status())

	// Unknown customers are acknowledged.
	provider.event = &billing.Event{
		ID: "evt_3", Type: billing.EventSubscriptionDeleted,
		CustomerID: "cus_unknown", Status: domain.SubscriptionCanceled,
	}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, domain.SubscriptionInactive, status())

	// Trial ending only notifies.
	ends := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	provider.event = &billing.Event{
		ID: "evt_4", Type: billing.EventTrialWillEnd,
		CustomerID: "cus_9", TrialEnding: true, TrialEndsAt: &ends,
	}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, domain.SubscriptionInactive, status())

	msgs := env.notifier.For(user.ID)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, notify.KindTrialEnding, last.Kind)
	require.NotNil(t, last.TrialEndsAt)
	assert.True(t, ends.Equal(*last.TrialEndsAt))

	// Unhandled types are ignored.
	provider.event = &billing.Event{ID: "evt_5", Type: "customer.created", CustomerID: "cus_9"}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
}

func TestBillingService_HandleWebhook_BadSignature(t *testing.T) {
	env := newTestEnv(t)
	provider := &fakeProvider{parseErr: errors.Join(billing.ErrInvalidSignature, errors.New("mismatch"))}
	svc := newBillingService(t, env, provider)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "bad")
	assertCode(t, err, domainerrors.CodeValidation)

	env.recorder.mu.Lock()
	defer env.recorder.mu.Unlock()
	assert.Equal(t, 1, env.recorder.bills["unknown:VALIDATION"])
}
