package domain

// LeaderboardEntry ranks one user within a postcode.
type LeaderboardEntry struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Swaps  int      `json:"swaps"`
	Badges []string `json:"badges"`
}

// ActiveArea summarises listing activity for a postcode.
type ActiveArea struct {
	Postcode  string `json:"postcode"`
	BookCount int    `json:"book_count"`
	UserCount int    `json:"user_count"`
}

// Dashboard is a user's own progress summary.
type Dashboard struct {
	BooksUploaded      int                `json:"books_uploaded"`
	SwapsCompleted     int                `json:"swaps_completed"`
	BadgesEarned       int                `json:"badges_earned"`
	Badges             []Badge            `json:"badges"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
}
