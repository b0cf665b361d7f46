package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/store"
)

// userColumns must match the scan order in scanUser.
const userColumns = `id, created_at, updated_at, email, password_hash, name, postcode,
	subscription_status, swaps, billing_customer_id`

func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
		updatedAt string
		status    string
		customer  sql.NullString
	)

	err := scanner.Scan(
		&u.ID,
		&createdAt,
		&updatedAt,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Postcode,
		&status,
		&u.Swaps,
		&customer,
	)
	if err != nil {
		return nil, err
	}

	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	u.SubscriptionStatus = domain.SubscriptionStatus(status)
	u.BillingCustomerID = customer.String

	return &u, nil
}

// CreateUser inserts a new user. The email is matched case-insensitively.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if user.SubscriptionStatus == "" {
		user.SubscriptionStatus = domain.SubscriptionInactive
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (
			id, created_at, updated_at, email, email_lower, password_hash, name,
			postcode, subscription_status, swaps, billing_customer_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		user.Email,
		domain.NormalizeEmail(user.Email),
		user.PasswordHash,
		user.Name,
		user.Postcode,
		string(user.SubscriptionStatus),
		user.Swaps,
		nullString(user.BillingCustomerID),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return userOrNotFound(scanUser(row))
}

// GetUserByEmail retrieves a user by case-insensitive email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email_lower = ?`, domain.NormalizeEmail(email))
	return userOrNotFound(scanUser(row))
}

// GetUserByBillingCustomerID retrieves the user linked to a payment-provider customer.
func (s *Store) GetUserByBillingCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	if customerID == "" {
		return nil, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE billing_customer_id = ?`, customerID)
	return userOrNotFound(scanUser(row))
}

// GetUsersByIDs returns the users found, keyed by ID. Missing IDs are skipped.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, v := range ids {
		args[i] = v
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// UpdateUserProfile changes a user's display name and postcode. Existing
// books keep the snapshot taken when they were listed.
func (s *Store) UpdateUserProfile(ctx context.Context, userID, name, postcode string) error {
	return s.updateUser(ctx, userID, `name = ?, postcode = ?`, name, postcode)
}

// SetBillingCustomerID links a user to a payment-provider customer.
func (s *Store) SetBillingCustomerID(ctx context.Context, userID, customerID string) error {
	err := s.updateUser(ctx, userID, `billing_customer_id = ?`, nullString(customerID))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// UpdateSubscriptionStatus overwrites the cached subscription status.
func (s *Store) UpdateSubscriptionStatus(ctx context.Context, userID string, status domain.SubscriptionStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid subscription status %q", status)
	}
	return s.updateUser(ctx, userID, `subscription_status = ?`, string(status))
}

// ListUserCounters returns book and swap counts for every user.
func (s *Store) ListUserCounters(ctx context.Context) ([]store.UserCounters, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.swaps,
			(SELECT COUNT(*) FROM books b WHERE b.owner_id = u.id AND b.deleted_at IS NULL)
		FROM users u
		ORDER BY u.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.UserCounters
	for rows.Next() {
		var c store.UserCounters
		if err := rows.Scan(&c.UserID, &c.SwapsCompleted, &c.BooksUploaded); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// updateUser applies set to one user row and bumps updated_at.
func (s *Store) updateUser(ctx context.Context, userID, set string, args ...any) error {
	args = append(args, formatTime(nowUTC()), userID)
	res, err := s.db.ExecContext(ctx, `UPDATE users SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func userOrNotFound(u *domain.User, err error) (*domain.User, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
