package sqlite

import (
	"context"

	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/store"
)

// HasBadge reports whether the user already holds the named badge.
func (s *Store) HasBadge(ctx context.Context, userID, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM badges WHERE user_id = ? AND name = ?`, userID, name).Scan(&n)
	return n > 0, err
}

// CreateBadge awards a badge. The (user_id, name) pair is unique.
func (s *Store) CreateBadge(ctx context.Context, badge *domain.Badge) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO badges (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		badge.ID, badge.UserID, badge.Name, formatTime(badge.CreatedAt))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// ListBadges returns a user's badges in award order.
func (s *Store) ListBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at FROM badges WHERE user_id = ? ORDER BY created_at, name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Badge{}
	for rows.Next() {
		var (
			b         domain.Badge
			createdAt string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &createdAt); err != nil {
			return nil, err
		}
		if b.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
