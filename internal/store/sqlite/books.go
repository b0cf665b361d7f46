package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/store"
)

// bookColumns must match the scan order in scanBook.
const bookColumns = `id, created_at, updated_at, deleted_at, title, author, isbn, image,
	description, condition, type, status, owner_id, owner_name, postcode`

func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var (
		b           domain.Book
		createdAt   string
		updatedAt   string
		deletedAt   sql.NullString
		isbn        sql.NullString
		image       sql.NullString
		description sql.NullString
		condition   string
		bookType    string
		status      string
	)

	err := scanner.Scan(
		&b.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&b.Title,
		&b.Author,
		&isbn,
		&image,
		&description,
		&condition,
		&bookType,
		&status,
		&b.OwnerID,
		&b.OwnerName,
		&b.Postcode,
	)
	if err != nil {
		return nil, err
	}

	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if b.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}

	b.ISBN = isbn.String
	b.Image = image.String
	b.Description = description.String
	b.Condition = domain.BookCondition(condition)
	b.Type = domain.BookType(bookType)
	b.Status = domain.BookStatus(status)

	return &b, nil
}

// CreateBook inserts a new listing and indexes it for search.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	book.ApplyDefaults()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, created_at, updated_at, deleted_at, title, author, isbn, image,
			description, condition, type, status, owner_id, owner_name, postcode
		) VALUES (?, ?, ?, NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
		book.Title,
		book.Author,
		nullString(book.ISBN),
		nullString(book.Image),
		nullString(book.Description),
		string(book.Condition),
		string(book.Type),
		string(book.Status),
		book.OwnerID,
		book.OwnerName,
		book.Postcode,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return err
	}

	if err := s.searchIndexer.IndexBook(ctx, book); err != nil {
		s.logger.Warn("index book failed", "book_id", book.ID, "error", err)
	}
	return nil
}

// GetBook retrieves a non-deleted book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ? AND deleted_at IS NULL`, id)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBooks returns one page of books matching filter, newest first.
func (s *Store) ListBooks(ctx context.Context, filter store.BookFilter, params store.PaginationParams) (*store.PaginatedResult[*domain.Book], error) {
	params.Validate()

	where, args := bookWhere(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	pageArgs := append(append([]any{}, args...), params.Limit, params.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE `+where+`
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books, err := collectBooks(rows)
	if err != nil {
		return nil, err
	}
	return store.NewPage(books, total, params), nil
}

// ListBooksByOwner returns all of a user's non-deleted books, newest first.
func (s *Store) ListBooksByOwner(ctx context.Context, ownerID string) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBooks(rows)
}

// CountBooksByOwner counts a user's non-deleted books.
func (s *Store) CountBooksByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM books WHERE owner_id = ? AND deleted_at IS NULL`, ownerID).Scan(&n)
	return n, err
}

// DeleteBook soft-deletes an available book.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	now := formatTime(nowUTC())
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND status = ?`,
		now, now, id, string(domain.BookAvailable))
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetBook(ctx, id); err != nil {
			return err
		}
		return store.ErrConflict
	}

	if err := s.searchIndexer.DeleteBook(ctx, id); err != nil {
		s.logger.Warn("remove book from index failed", "book_id", id, "error", err)
	}
	return nil
}

func bookWhere(f store.BookFilter) (string, []any) {
	clauses := []string{"deleted_at IS NULL"}
	var args []any

	if f.Postcode != "" {
		clauses = append(clauses, "postcode = ?")
		args = append(args, f.Postcode)
	}
	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.ExcludeOwnerID != "" {
		clauses = append(clauses, "owner_id <> ?")
		args = append(args, f.ExcludeOwnerID)
	}
	return strings.Join(clauses, " AND "), args
}

func collectBooks(rows *sql.Rows) ([]*domain.Book, error) {
	var out []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
