package sqlite

import (
	"context"

	"github.com/booksswap/booksswap-server/internal/domain"
)

// Leaderboard ranks users in a postcode by completed swaps.
func (s *Store) Leaderboard(ctx context.Context, postcode string, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, swaps FROM users
		WHERE postcode = ?
		ORDER BY swaps DESC, created_at ASC
		LIMIT ?`, postcode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.LeaderboardEntry{}
	index := make(map[string]int)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.Swaps); err != nil {
			return nil, err
		}
		e.Badges = []string{}
		index[e.UserID] = len(entries)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	args := make([]any, 0, len(entries))
	for _, e := range entries {
		args = append(args, e.UserID)
	}
	badgeRows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name FROM badges WHERE user_id IN (`+placeholders(len(args))+`)
		ORDER BY created_at, name`, args...)
	if err != nil {
		return nil, err
	}
	defer badgeRows.Close()

	for badgeRows.Next() {
		var userID, name string
		if err := badgeRows.Scan(&userID, &name); err != nil {
			return nil, err
		}
		i := index[userID]
		entries[i].Badges = append(entries[i].Badges, name)
	}
	return entries, badgeRows.Err()
}

// ActiveAreas returns the postcodes with the most listed books.
func (s *Store) ActiveAreas(ctx context.Context, limit int) ([]domain.ActiveArea, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.postcode, COUNT(*) AS book_count,
			(SELECT COUNT(*) FROM users u WHERE u.postcode = b.postcode) AS user_count
		FROM books b
		WHERE b.deleted_at IS NULL
		GROUP BY b.postcode
		ORDER BY book_count DESC, b.postcode ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ActiveArea{}
	for rows.Next() {
		var a domain.ActiveArea
		if err := rows.Scan(&a.Postcode, &a.BookCount, &a.UserCount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
