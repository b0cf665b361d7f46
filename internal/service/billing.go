package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/booksswap/booksswap-server/internal/billing"
	"github.com/booksswap/booksswap-server/internal/domain"
	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/notify"
	"github.com/booksswap/booksswap-server/internal/store"
)

// BillingService manages subscriptions with the payment provider and keeps
// the cached status current from provider callbacks.
type BillingService struct {
	store    store.Store
	provider billing.Provider
	notifier notify.Notifier
	recorder Recorder
	logger   *slog.Logger
}

// NewBillingService creates a BillingService. recorder may be nil.
func NewBillingService(
	s store.Store,
	provider billing.Provider,
	notifier notify.Notifier,
	recorder Recorder,
	logger *slog.Logger,
) *BillingService {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &BillingService{
		store:    s,
		provider: provider,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
	}
}

// CheckoutResponse carries the hosted checkout URL.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// SubscriptionStatusResponse reports the cached status.
type SubscriptionStatusResponse struct {
	Status   domain.SubscriptionStatus `json:"status"`
	IsActive bool                      `json:"is_active"`
}

// CreateCheckout starts a subscription checkout for userID, registering the
// user with the provider on first use.
func (s *BillingService) CreateCheckout(ctx context.Context, userID string) (*CheckoutResponse, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}

	customerID := user.BillingCustomerID
	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, user)
		if err != nil {
			return nil, s.providerError(err, "create billing customer")
		}
		if err := s.store.SetBillingCustomerID(ctx, userID, customerID); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "save billing customer")
		}
		s.logger.Info("billing customer created", "user_id", userID)
	}

	url, err := s.provider.CreateCheckoutSession(ctx, userID, customerID)
	if err != nil {
		return nil, s.providerError(err, "create checkout session")
	}
	return &CheckoutResponse{URL: url}, nil
}

// CancelSubscription cancels the user's live subscription and marks the
// cached status canceled without waiting for the callback.
func (s *BillingService) CancelSubscription(ctx context.Context, userID string) (*SubscriptionStatusResponse, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if user.BillingCustomerID == "" {
		return nil, domainerrors.NotFound("no subscription found")
	}

	if err := s.provider.CancelSubscription(ctx, user.BillingCustomerID); err != nil {
		if errors.Is(err, billing.ErrNoSubscription) {
			return nil, domainerrors.NotFound("no active subscription found")
		}
		return nil, s.providerError(err, "cancel subscription")
	}

	if err := s.store.UpdateSubscriptionStatus(ctx, userID, domain.SubscriptionCanceled); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "update subscription status")
	}
	s.logger.Info("subscription canceled", "user_id", userID)

	return &SubscriptionStatusResponse{Status: domain.SubscriptionCanceled}, nil
}

// Status returns the cached subscription status.
func (s *BillingService) Status(ctx context.Context, userID string) (*SubscriptionStatusResponse, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return &SubscriptionStatusResponse{
		Status:   user.SubscriptionStatus,
		IsActive: user.SubscriptionStatus.Entitled(),
	}, nil
}

// HandleWebhook verifies and applies a provider callback. Events for
// unknown users and unhandled event types are acknowledged without effect
// so the provider stops retrying them.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) (err error) {
	eventType := "unknown"
	defer func() { s.recorder.BillingEvent(eventType, outcome(err)) }()

	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			s.logger.Warn("webhook rejected", "error", err)
			return domainerrors.Validation("invalid webhook signature")
		}
		return s.providerError(err, "parse webhook")
	}
	eventType = event.Type

	if !event.Handled() {
		s.logger.Debug("webhook ignored", "event_id", event.ID, "type", event.Type)
		return nil
	}

	user, err := s.resolveUser(ctx, event)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("webhook for unknown user",
			"event_id", event.ID, "type", event.Type, "customer_id", event.CustomerID)
		return nil
	}
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "resolve webhook user")
	}

	if event.CustomerID != "" && user.BillingCustomerID == "" {
		if err := s.store.SetBillingCustomerID(ctx, user.ID, event.CustomerID); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "save billing customer")
		}
	}

	if event.Status != "" && event.Status != user.SubscriptionStatus {
		if err := s.store.UpdateSubscriptionStatus(ctx, user.ID, event.Status); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "update subscription status")
		}
		s.logger.Info("subscription status changed",
			"user_id", user.ID, "from", user.SubscriptionStatus, "to", event.Status, "event_id", event.ID)
	}

	if event.TrialEnding {
		msg := notify.NewMessage(notify.KindTrialEnding, user.Contact())
		msg.TrialEndsAt = event.TrialEndsAt
		s.notifier.Notify(ctx, msg)
	}

	return nil
}

// resolveUser finds the user an event refers to, preferring the user ID
// attached at checkout over the customer ID.
func (s *BillingService) resolveUser(ctx context.Context, event *billing.Event) (*domain.User, error) {
	if event.UserID != "" {
		user, err := s.store.GetUser(ctx, event.UserID)
		if err == nil || !errors.Is(err, store.ErrNotFound) || event.CustomerID == "" {
			return user, err
		}
	}
	if event.CustomerID == "" {
		return nil, store.ErrNotFound
	}
	return s.store.GetUserByBillingCustomerID(ctx, event.CustomerID)
}

func (s *BillingService) providerError(err error, msg string) error {
	if errors.Is(err, billing.ErrNotConfigured) {
		return domainerrors.BillingUnavailable("billing is not available")
	}
	s.logger.Error(msg+" failed", "error", err)
	return domainerrors.Wrap(err, domainerrors.CodeInternal, msg)
}
