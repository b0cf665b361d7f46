package domain

import "time"

// Badge is an achievement held by a user. Badges are never revoked and a
// user holds each name at most once.
type Badge struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
