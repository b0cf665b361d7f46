package domain

import "time"

// Timestamps carries the identity and audit fields shared by persisted entities.
type Timestamps struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InitTimestamps sets CreatedAt and UpdatedAt to now. Call on creation.
func (t *Timestamps) InitTimestamps() {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
}

// Touch bumps UpdatedAt.
func (t *Timestamps) Touch() {
	t.UpdatedAt = time.Now().UTC()
}
