package notify

import (
	"context"

	"github.com/booksswap/booksswap-server/internal/sse"
)

// Pusher emits events to a user's open streams. *sse.Manager satisfies it.
type Pusher interface {
	EmitToUser(userID string, event sse.Event) bool
}

// PushChannel delivers in-app notifications over server-sent events.
type PushChannel struct {
	pusher Pusher
	appURL string
}

// NewPushChannel creates a PushChannel.
func NewPushChannel(pusher Pusher, appURL string) *PushChannel {
	return &PushChannel{pusher: pusher, appURL: appURL}
}

// Name implements Channel.
func (c *PushChannel) Name() string { return "push" }

// Deliver implements Channel. A recipient with no open stream is not an
// error; the notification is simply not shown.
func (c *PushChannel) Deliver(_ context.Context, msg Message) error {
	r, err := Render(msg, c.appURL)
	if err != nil {
		return err
	}
	c.pusher.EmitToUser(msg.Recipient.UserID, sse.NewNotificationEvent(msg.Recipient.UserID, sse.NotificationData{
		ID:      msg.ID,
		Kind:    string(msg.Kind),
		Title:   r.Title,
		Message: r.Subject,
		SwapID:  msg.SwapID,
		BookID:  msg.BookID,
		Badges:  msg.Badges,
	}))
	return nil
}
