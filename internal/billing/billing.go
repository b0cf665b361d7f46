// Package billing gates paywalled actions on a user's cached subscription
// status and talks to the payment provider.
package billing

import (
	"context"
	"time"

	"github.com/booksswap/booksswap-server/internal/domain"
)

// UserReader loads users.
type UserReader interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Gate answers entitlement checks from the locally cached status. It never
// calls the provider, so a webhook that has not arrived yet leaves the user
// with their previous status.
type Gate struct {
	users UserReader
}

// NewGate creates a Gate.
func NewGate(users UserReader) *Gate {
	return &Gate{users: users}
}

// IsEntitled reports whether userID may upload books and request swaps.
func (g *Gate) IsEntitled(ctx context.Context, userID string) (bool, error) {
	user, err := g.users.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.SubscriptionStatus.Entitled(), nil
}

// Provider is a recurring-payments backend.
type Provider interface {
	// CreateCustomer registers user with the provider and returns its ID.
	CreateCustomer(ctx context.Context, user *domain.User) (string, error)
	// CreateCheckoutSession starts a hosted subscription checkout and returns
	// the URL to redirect the user to.
	CreateCheckoutSession(ctx context.Context, userID, customerID string) (string, error)
	// CancelSubscription cancels the customer's live subscription. It returns
	// ErrNoSubscription when there is none.
	CancelSubscription(ctx context.Context, customerID string) error
	// ParseWebhook verifies and decodes a provider callback.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// Event is a provider callback reduced to what the server acts on.
type Event struct {
	ID   string
	Type string

	// UserID comes from metadata attached at checkout, when present.
	UserID     string
	CustomerID string

	// Status is the new cached status. Empty means no status change.
	Status domain.SubscriptionStatus
	// TrialEnding asks for a trial_ending notification.
	TrialEnding bool
	TrialEndsAt *time.Time
}

// Handled reports whether the event changes anything.
func (e *Event) Handled() bool {
	return e.Status != "" || e.TrialEnding
}
