package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/booksswap/booksswap-server/internal/domain"
)

// Stripe webhook event types the server handles.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventTrialWillEnd         = "customer.subscription.trial_will_end"
)

const metadataUserID = "userId"

var (
	// ErrNoSubscription is returned when a customer has nothing to cancel.
	ErrNoSubscription = errors.New("no active subscription")
	// ErrNotConfigured is returned by every operation of an unconfigured provider.
	ErrNotConfigured = errors.New("payment provider not configured")
	// ErrInvalidSignature is returned for callbacks that fail verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// StripeConfig configures StripeProvider.
type StripeConfig struct {
	SecretKey     string
	PriceID       string
	WebhookSecret string
	TrialDays     int
	FrontendURL   string
}

// StripeProvider implements Provider with Stripe Checkout and Billing.
type StripeProvider struct {
	api *client.API
	cfg StripeConfig
}

// NewStripeProvider creates a provider using cfg.SecretKey.
func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &StripeProvider{api: api, cfg: cfg}
}

// CreateCustomer implements Provider. The request is idempotent per user.
func (p *StripeProvider) CreateCustomer(ctx context.Context, user *domain.User) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Name),
	}
	params.Context = ctx
	params.AddMetadata(metadataUserID, user.ID)
	params.SetIdempotencyKey(idempotencyKey("customer", user.ID))

	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return c.ID, nil
}

// CreateCheckoutSession implements Provider.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, userID, customerID string) (string, error) {
	base := strings.TrimRight(p.cfg.FrontendURL, "/")

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.cfg.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{metadataUserID: userID},
		},
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(base + "/?success=true"),
		CancelURL:         stripe.String(base + "/?canceled=true"),
	}
	if p.cfg.TrialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(int64(p.cfg.TrialDays))
	}
	params.Context = ctx
	params.AddMetadata(metadataUserID, userID)
	params.SetIdempotencyKey(uuid.NewString())

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return s.URL, nil
}

// CancelSubscription implements Provider. The first live subscription,
// active or trialing, is cancelled immediately.
func (p *StripeProvider) CancelSubscription(ctx context.Context, customerID string) error {
	params := &stripe.SubscriptionListParams{Customer: stripe.String(customerID)}
	params.Context = ctx

	it := p.api.Subscriptions.List(params)
	for it.Next() {
		sub := it.Subscription()
		if sub.Status != stripe.SubscriptionStatusActive && sub.Status != stripe.SubscriptionStatusTrialing {
			continue
		}
		cancel := &stripe.SubscriptionCancelParams{}
		cancel.Context = ctx
		if _, err := p.api.Subscriptions.Cancel(sub.ID, cancel); err != nil {
			return fmt.Errorf("cancel subscription %s: %w", sub.ID, err)
		}
		return nil
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	return ErrNoSubscription
}

// ParseWebhook implements Provider.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if p.cfg.WebhookSecret == "" {
		return nil, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return TranslateEvent(event)
}

// TranslateEvent maps a verified Stripe event to the status change it
// implies. Unknown event types translate to an Event that is not Handled.
func TranslateEvent(event stripe.Event) (*Event, error) {
	out := &Event{ID: event.ID, Type: string(event.Type)}

	switch out.Type {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.UserID = s.Metadata[metadataUserID]
		if out.UserID == "" {
			out.UserID = s.ClientReferenceID
		}
		out.CustomerID = customerID(s.Customer)
		out.Status = domain.SubscriptionActive

	case EventSubscriptionUpdated, EventSubscriptionDeleted, EventTrialWillEnd:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.UserID = sub.Metadata[metadataUserID]
		out.CustomerID = customerID(sub.Customer)

		switch out.Type {
		case EventSubscriptionUpdated:
			out.Status = StatusFromSubscription(sub.Status, sub.CancelAtPeriodEnd)
		case EventSubscriptionDeleted:
			out.Status = domain.SubscriptionCanceled
		case EventTrialWillEnd:
			out.TrialEnding = true
			if sub.TrialEnd > 0 {
				t := time.Unix(sub.TrialEnd, 0).UTC()
				out.TrialEndsAt = &t
			}
		}

	case EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		out.CustomerID = customerID(inv.Customer)
		out.Status = domain.SubscriptionInactive
	}

	return out, nil
}

// StatusFromSubscription maps a Stripe subscription state to the cached status.
func StatusFromSubscription(status stripe.SubscriptionStatus, cancelAtPeriodEnd bool) domain.SubscriptionStatus {
	switch {
	case status == stripe.SubscriptionStatusCanceled || cancelAtPeriodEnd:
		return domain.SubscriptionCanceled
	case status == stripe.SubscriptionStatusUnpaid || status == stripe.SubscriptionStatusPastDue:
		return domain.SubscriptionInactive
	case status == stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionTrialing
	default:
		return domain.SubscriptionActive
	}
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func idempotencyKey(scope, subject string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("booksswap:"+scope+":"+subject)).String()
}

// Unconfigured is the Provider used when no payment credentials are set.
type Unconfigured struct{}

// CreateCustomer returns ErrNotConfigured.
func (Unconfigured) CreateCustomer(context.Context, *domain.User) (string, error) {
	return "", ErrNotConfigured
}

// CreateCheckoutSession returns ErrNotConfigured.
func (Unconfigured) CreateCheckoutSession(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}

// CancelSubscription returns ErrNotConfigured.
func (Unconfigured) CancelSubscription(context.Context, string) error {
	return ErrNotConfigured
}

// ParseWebhook returns ErrNotConfigured.
func (Unconfigured) ParseWebhook([]byte, string) (*Event, error) {
	return nil, ErrNotConfigured
}
