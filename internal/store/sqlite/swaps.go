package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/store"
)

// swapColumns must match the scan order in scanSwap.
const swapColumns = `id, created_at, updated_at, book_id, requester_id, owner_id, status,
	meeting_location, meeting_date, completed_at`

func scanSwap(scanner interface{ Scan(dest ...any) error }) (*domain.SwapRequest, error) {
	var (
		sw          domain.SwapRequest
		createdAt   string
		updatedAt   string
		status      string
		location    sql.NullString
		meetingDate sql.NullString
		completedAt sql.NullString
	)

	err := scanner.Scan(
		&sw.ID,
		&createdAt,
		&updatedAt,
		&sw.BookID,
		&sw.RequesterID,
		&sw.OwnerID,
		&status,
		&location,
		&meetingDate,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if sw.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sw.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if sw.MeetingDate, err = parseNullableTime(meetingDate); err != nil {
		return nil, err
	}
	if sw.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, err
	}
	sw.Status = domain.SwapStatus(status)
	sw.MeetingLocation = location.String

	return &sw, nil
}

// CreateSwapRequest reserves the book and inserts a pending request in one
// transaction. It returns store.ErrConflict when the book is not available.
func (s *Store) CreateSwapRequest(ctx context.Context, swap *domain.SwapRequest) error {
	if swap.Status == "" {
		swap.Status = domain.SwapPending
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE books SET status = ?, updated_at = ?
			WHERE id = ? AND status = ? AND deleted_at IS NULL`,
			string(domain.BookPending), formatTime(swap.CreatedAt),
			swap.BookID, string(domain.BookAvailable))
		if err != nil {
			return fmt.Errorf("reserve book: %w", err)
		}
		if err := expectOneRow(res); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO swap_requests (
				id, created_at, updated_at, book_id, requester_id, owner_id, status,
				meeting_location, meeting_date, completed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
			swap.ID,
			formatTime(swap.CreatedAt),
			formatTime(swap.UpdatedAt),
			swap.BookID,
			swap.RequesterID,
			swap.OwnerID,
			string(swap.Status),
			nullString(swap.MeetingLocation),
			nullTimeString(swap.MeetingDate),
		)
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	})
	if err != nil {
		return err
	}

	s.indexBook(ctx, swap.BookID)
	return nil
}

// GetSwapRequest retrieves a swap request by ID.
func (s *Store) GetSwapRequest(ctx context.Context, id string) (*domain.SwapRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+swapColumns+` FROM swap_requests WHERE id = ?`, id)

	sw, err := scanSwap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sw, nil
}

// ListSwapsByOwner returns requests made for the user's books, newest first.
func (s *Store) ListSwapsByOwner(ctx context.Context, ownerID string) ([]*domain.SwapRequest, error) {
	return s.listSwaps(ctx, `owner_id = ?`, ownerID)
}

// ListSwapsByRequester returns requests the user made, newest first.
func (s *Store) ListSwapsByRequester(ctx context.Context, requesterID string) ([]*domain.SwapRequest, error) {
	return s.listSwaps(ctx, `requester_id = ?`, requesterID)
}

// TransitionSwap applies t atomically. The swap must still be in t.From and,
// when t.BookStatus is set, its book must still be pending; otherwise nothing
// is written and store.ErrConflict is returned.
func (s *Store) TransitionSwap(ctx context.Context, t store.SwapTransition) error {
	if !t.From.CanTransitionTo(t.To) {
		return fmt.Errorf("transition %s -> %s not permitted", t.From, t.To)
	}

	now := formatTime(nowUTC())
	var bookID string

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE swap_requests
			SET status = ?, updated_at = ?, completed_at = COALESCE(?, completed_at)
			WHERE id = ? AND status = ?`,
			string(t.To), now, nullTimeString(t.CompletedAt), t.SwapID, string(t.From))
		if err != nil {
			return fmt.Errorf("update swap: %w", err)
		}
		if err := expectOneRow(res); err != nil {
			var exists int
			if qerr := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM swap_requests WHERE id = ?`, t.SwapID).Scan(&exists); qerr != nil {
				return qerr
			}
			if exists == 0 {
				return store.ErrNotFound
			}
			return err
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT book_id FROM swap_requests WHERE id = ?`, t.SwapID).Scan(&bookID); err != nil {
			return fmt.Errorf("load swap book: %w", err)
		}

		if t.BookStatus != "" {
			res, err := tx.ExecContext(ctx, `
				UPDATE books SET status = ?, updated_at = ?
				WHERE id = ? AND status = ?`,
				string(t.BookStatus), now, bookID, string(domain.BookPending))
			if err != nil {
				return fmt.Errorf("update book: %w", err)
			}
			if err := expectOneRow(res); err != nil {
				return err
			}
		}

		for _, userID := range t.IncrementSwaps {
			res, err := tx.ExecContext(ctx,
				`UPDATE users SET swaps = swaps + 1, updated_at = ? WHERE id = ?`, now, userID)
			if err != nil {
				return fmt.Errorf("increment swaps for %s: %w", userID, err)
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return store.ErrNotFound
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if t.BookStatus != "" {
		s.indexBook(ctx, bookID)
	}
	return nil
}

func (s *Store) listSwaps(ctx context.Context, where string, arg any) ([]*domain.SwapRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+swapColumns+` FROM swap_requests WHERE `+where+` ORDER BY created_at DESC, id DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SwapRequest
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

// expectOneRow maps a guarded update that matched nothing to store.ErrConflict.
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return store.ErrConflict
	}
	return nil
}
