// Package review stores per-book ratings and comments. One review per user
// per book; re-reviewing replaces the earlier one.
package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrBadRating = errors.New("rating must be between 1 and 5")

type Review struct {
	ID        string    `json:"reviewId"`
	BookID    string    `json:"bookId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repository interface {
	Add(ctx context.Context, r *Review) error
	ListByBook(ctx context.Context, bookID string) ([]Review, error)
	AverageRating(ctx context.Context, bookID string) (float64, int, error)
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Add(ctx context.Context, rv *Review) error {
	if rv.Rating < 1 || rv.Rating > 5 {
		return ErrBadRating
	}
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}

	const query = `
INSERT INTO reviews (id, book_id, user_id, rating, comment, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (book_id, user_id) DO UPDATE
SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, created_at = NOW()
RETURNING id, created_at
`
	if err := r.db.QueryRowContext(ctx, query,
		rv.ID, rv.BookID, rv.UserID, rv.Rating, rv.Comment,
	).Scan(&rv.ID, &rv.CreatedAt); err != nil {
		return fmt.Errorf("upsert review: %w", err)
	}
	return nil
}

func (r *repo) ListByBook(ctx context.Context, bookID string) ([]Review, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, book_id, user_id, rating, comment, created_at
         FROM reviews WHERE book_id = $1 ORDER BY created_at DESC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.BookID, &rv.UserID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return reviews, nil
}

func (r *repo) AverageRating(ctx context.Context, bookID string) (float64, int, error) {
	var avg sql.NullFloat64
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT AVG(rating), COUNT(*) FROM reviews WHERE book_id = $1`, bookID,
	).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregate reviews: %w", err)
	}
	return avg.Float64, count, nil
}
