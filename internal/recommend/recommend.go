// Package recommend suggests books from a user's reading history. The signal
// is genre affinity: genres collected from the user's shelf and past orders,
// ranked by how often they appear.
package recommend

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Book is a catalog entry enriched with its community rating, which the
// recommendations page renders as stars.
type Book struct {
	ID            string  `json:"productId"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Genre         string  `json:"genre"`
	Price         float64 `json:"price"`
	Stock         int     `json:"stock"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	AverageRating float64 `json:"averageRating"`
}

type Repository interface {
	ForUser(ctx context.Context, userID string, limit int) ([]Book, error)
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

const DefaultLimit = 12

// ForUser returns up to limit books from the user's top genres, excluding
// anything already on their shelf or in a past order, best-rated first. A user
// with no history gets an empty slice, not an error.
func (r *repo) ForUser(ctx context.Context, userID string, limit int) ([]Book, error) {
	if limit < 1 {
		limit = DefaultLimit
	}

	genres, seen, err := r.affinity(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(genres) == 0 {
		return nil, nil
	}

	const query = `
SELECT b.id, b.title, b.author, b.genre, b.price, b.stock, b.image_url,
       COALESCE(AVG(r.rating), 0) AS average_rating
FROM books b
LEFT JOIN reviews r ON r.book_id = b.id
WHERE b.genre = ANY($1)
  AND NOT (b.id = ANY($2))
  AND b.stock > 0
GROUP BY b.id
ORDER BY average_rating DESC, b.created_at DESC
LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(genres), pq.Array(seen), limit)
	if err != nil {
		return nil, fmt.Errorf("select recommendations: %w", err)
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Price, &b.Stock, &b.ImageURL, &b.AverageRating); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// affinity ranks the genres of every book the user has shelved or ordered and
// returns the top ones plus the full set of book ids already seen.
func (r *repo) affinity(ctx context.Context, userID string) ([]string, []string, error) {
	const query = `
SELECT b.genre, array_agg(DISTINCT s.book_id) AS seen, COUNT(*) AS hits
FROM (
    SELECT book_id FROM reading_status WHERE user_id = $1
    UNION ALL
    SELECT oi.product_id FROM order_items oi
    JOIN orders o ON o.id = oi.order_id
    WHERE o.user_id = $1
) s
JOIN books b ON b.id = s.book_id
GROUP BY b.genre
ORDER BY hits DESC
LIMIT 3`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("select genre affinity: %w", err)
	}
	defer rows.Close()

	var genres, seen []string
	for rows.Next() {
		var genre string
		var bookIDs pq.StringArray
		var hits int
		if err := rows.Scan(&genre, &bookIDs, &hits); err != nil {
			return nil, nil, fmt.Errorf("scan genre affinity: %w", err)
		}
		genres = append(genres, genre)
		seen = append(seen, bookIDs...)
	}
	return genres, seen, rows.Err()
}
