package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	Get(ctx context.Context, productID string) (Book, error)
	List(ctx context.Context, p ListParams) ([]Book, int, error)
	Genres(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, b Book) error
	ReserveStock(ctx context.Context, orderID string, lines []Line) (ReserveResult, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const bookColumns = `id, title, author, genre, price, stock, image_url, created_at`

func (r *PostgresRepository) Get(ctx context.Context, productID string) (Book, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id=$1`, productID)
	b, err := scanBook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("select book: %w", err)
	}
	return b, nil
}

// List returns one page of books, newest first, plus the total match count so
// the caller can render pagination.
func (r *PostgresRepository) List(ctx context.Context, p ListParams) ([]Book, int, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > 100 {
		p.Limit = 12
	}

	where, args := buildFilter(p)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	offset := (p.Page - 1) * p.Limit
	args = append(args, p.Limit, offset)
	query := fmt.Sprintf(`SELECT `+bookColumns+` FROM books%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows: %w", err)
	}

	return books, total, nil
}

func buildFilter(p ListParams) (string, []any) {
	var conds []string
	var args []any

	if p.Genre != "" {
		args = append(args, p.Genre)
		conds = append(conds, fmt.Sprintf("genre = $%d", len(args)))
	}
	if p.Search != "" {
		args = append(args, "%"+p.Search+"%")
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR author ILIKE $%d)", len(args), len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresRepository) Genres(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT genre FROM books WHERE genre <> '' ORDER BY genre`)
	if err != nil {
		return nil, fmt.Errorf("select genres: %w", err)
	}
	defer rows.Close()

	var genres []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return genres, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, b Book) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO books (id, title, author, genre, price, stock, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE
		SET title=EXCLUDED.title, author=EXCLUDED.author, genre=EXCLUDED.genre,
		    price=EXCLUDED.price, stock=EXCLUDED.stock, image_url=EXCLUDED.image_url
	`, b.ID, b.Title, b.Author, b.Genre, b.Price, b.Stock, b.ImageURL)
	if err != nil {
		return fmt.Errorf("upsert book: %w", err)
	}
	return nil
}

// ReserveStock atomically decrements stock for all lines of an order:
// - locks each book row (SELECT ... FOR UPDATE)
// - if any line is short, rolls back and returns the depleted lines (no mutation)
// - else decrements every line and commits
func (r *PostgresRepository) ReserveStock(ctx context.Context, orderID string, lines []Line) (ReserveResult, error) {
	res := ReserveResult{}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	type locked struct {
		productID string
		requested int
		available int
	}
	lockedRows := make([]locked, 0, len(lines))

	for _, line := range lines {
		var available int
		err := tx.QueryRow(ctx, `SELECT stock FROM books WHERE id=$1 FOR UPDATE`, line.ProductID).Scan(&available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// unknown product counts as depleted, not an error
				res.Depleted = append(res.Depleted, DepletedLine{
					ProductID: line.ProductID, Requested: line.Quantity, Available: 0,
				})
				continue
			}
			return res, fmt.Errorf("lock book %s: %w", line.ProductID, err)
		}

		if available < line.Quantity {
			res.Depleted = append(res.Depleted, DepletedLine{
				ProductID: line.ProductID, Requested: line.Quantity, Available: available,
			})
			continue
		}
		lockedRows = append(lockedRows, locked{line.ProductID, line.Quantity, available})
	}

	if len(res.Depleted) > 0 {
		return res, nil
	}

	for _, l := range lockedRows {
		if _, err := tx.Exec(ctx, `UPDATE books SET stock = stock - $1 WHERE id=$2`, l.requested, l.productID); err != nil {
			return ReserveResult{}, fmt.Errorf("decrement stock %s: %w", l.productID, err)
		}
		res.Reserved = append(res.Reserved, Line{ProductID: l.productID, Quantity: l.requested})
	}

	if err := tx.Commit(ctx); err != nil {
		return ReserveResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Price, &b.Stock, &b.ImageURL, &b.CreatedAt)
	return b, err
}
