// Package notify delivers best-effort user notifications. Messages are queued
// and handed to a small worker pool which tries each channel once; failures
// are logged and dropped.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/booksswap/booksswap-server/internal/domain"
)

// Kind identifies the event a notification describes.
type Kind string

const (
	KindWelcome       Kind = "welcome"
	KindSwapRequested Kind = "swap_requested"
	KindSwapAccepted  Kind = "swap_accepted"
	KindSwapRejected  Kind = "swap_rejected"
	KindSwapCompleted Kind = "swap_completed"
	KindTrialEnding   Kind = "trial_ending"
)

// Message is one notification addressed to one user.
type Message struct {
	ID        string
	Kind      Kind
	Recipient domain.Contact
	CreatedAt time.Time

	BookID    string
	BookTitle string
	SwapID    string
	// CounterpartyName is the other participant of the swap.
	CounterpartyName string
	// Badges lists badges newly earned by the recipient (swap_completed only).
	Badges []string
	// TrialEndsAt is set for trial_ending when the provider reports it.
	TrialEndsAt *time.Time
}

// NewMessage stamps a message with a fresh ID and creation time.
func NewMessage(kind Kind, recipient domain.Contact) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Recipient: recipient,
		CreatedAt: time.Now().UTC(),
	}
}

// Notifier accepts messages for delivery. Notify never blocks on delivery and
// never reports delivery failures to the caller.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// Channel is one delivery medium.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// Recorder observes delivery outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	NotificationDelivered(kind, channel string, err error)
	NotificationDropped(kind string)
}

// Discard is a Notifier that drops everything.
type Discard struct{}

// Notify does nothing.
func (Discard) Notify(context.Context, Message) {}
