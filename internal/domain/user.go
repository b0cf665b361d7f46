package domain

import "strings"

// SubscriptionStatus is the cached billing state of a user. It is written only
// by payment-provider callbacks and read by the billing gate.
type SubscriptionStatus string

const (
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// IsValid reports whether s is a known status.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionInactive, SubscriptionTrialing, SubscriptionActive, SubscriptionCanceled:
		return true
	}
	return false
}

// Entitled reports whether the status permits paywalled actions.
func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing
}

// User is a registered account.
type User struct {
	Timestamps
	Email              string             `json:"email"`
	PasswordHash       string             `json:"-"`
	Name               string             `json:"name"`
	Postcode           string             `json:"postcode"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	// Swaps counts completed swaps. It never decreases.
	Swaps             int    `json:"swaps"`
	BillingCustomerID string `json:"-"`
}

// Contact is the subset of a user needed to address a notification.
type Contact struct {
	UserID string
	Email  string
	Name   string
}

// Contact returns the notification address for u.
func (u *User) Contact() Contact {
	return Contact{UserID: u.ID, Email: u.Email, Name: u.Name}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
