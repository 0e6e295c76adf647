// Package shelf tracks per-user reading status for books.
package shelf

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusWant    Status = "want-to-read"
	StatusReading Status = "reading"
	StatusRead    Status = "read"
)

var ErrBadStatus = errors.New("invalid reading status")

func (s Status) Valid() bool {
	switch s {
	case StatusWant, StatusReading, StatusRead:
		return true
	}
	return false
}

type Entry struct {
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Repository interface {
	Get(ctx context.Context, userID, bookID string) (*Entry, error)
	Set(ctx context.Context, e *Entry) error
	ListByUser(ctx context.Context, userID string) ([]Entry, error)
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

// Get returns nil when the user has no status for the book.
func (r *repo) Get(ctx context.Context, userID, bookID string) (*Entry, error) {
	var e Entry
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, book_id, status, updated_at
         FROM reading_status WHERE user_id = $1 AND book_id = $2`,
		userID, bookID,
	).Scan(&e.UserID, &e.BookID, &e.Status, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select reading status: %w", err)
	}
	return &e, nil
}

func (r *repo) Set(ctx context.Context, e *Entry) error {
	if !e.Status.Valid() {
		return ErrBadStatus
	}

	const query = `
INSERT INTO reading_status (user_id, book_id, status, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (user_id, book_id) DO UPDATE
SET status = EXCLUDED.status, updated_at = NOW()
RETURNING updated_at
`
	if err := r.db.QueryRowContext(ctx, query, e.UserID, e.BookID, e.Status).Scan(&e.UpdatedAt); err != nil {
		return fmt.Errorf("upsert reading status: %w", err)
	}
	return nil
}

func (r *repo) ListByUser(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, book_id, status, updated_at
         FROM reading_status WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select reading statuses: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.BookID, &e.Status, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reading status: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}
