// Package sse pushes real-time events to connected browsers over
// Server-Sent Events.
package sse

import (
	"time"

	"github.com/booksswap/booksswap-server/internal/domain"
)

// EventType is the SSE "event:" field.
type EventType string

const (
	// EventNotification carries an in-app notification for one user.
	EventNotification EventType = "notification"
	// EventBookStatusChanged tells every client a listing changed availability.
	EventBookStatusChanged EventType = "book.status_changed"
	// EventHeartbeat keeps idle connections open.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one message sent to clients. An empty UserID broadcasts to all.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
	UserID    string    `json:"-"`
}

// NotificationData is the payload of EventNotification.
type NotificationData struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Message string   `json:"message"`
	SwapID  string   `json:"swap_id,omitempty"`
	BookID  string   `json:"book_id,omitempty"`
	Badges  []string `json:"badges,omitempty"`
}

// BookStatusData is the payload of EventBookStatusChanged.
type BookStatusData struct {
	BookID   string            `json:"book_id"`
	Status   domain.BookStatus `json:"status"`
	Postcode string            `json:"postcode"`
}

// NewNotificationEvent addresses data to a single user.
func NewNotificationEvent(userID string, data NotificationData) Event {
	return Event{
		Type:      EventNotification,
		Timestamp: time.Now().UTC(),
		Data:      data,
		UserID:    userID,
	}
}

// NewBookStatusEvent broadcasts a book's new status.
func NewBookStatusEvent(book *domain.Book) Event {
	return Event{
		Type:      EventBookStatusChanged,
		Timestamp: time.Now().UTC(),
		Data: BookStatusData{
			BookID:   book.ID,
			Status:   book.Status,
			Postcode: book.Postcode,
		},
	}
}

// NewHeartbeatEvent creates a keepalive event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{},
	}
}
