package catalog

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func bookRows(books ...Book) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "title", "author", "genre", "price", "stock", "image_url", "created_at"})
	for _, b := range books {
		rows.AddRow(b.ID, b.Title, b.Author, b.Genre, b.Price, b.Stock, b.ImageURL, b.CreatedAt)
	}
	return rows
}

func TestGet(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	want := Book{ID: "b1", Title: "Dune", Author: "Herbert", Genre: "scifi",
		Price: 12.50, Stock: 3, ImageURL: "img/dune.jpg", CreatedAt: time.Now().UTC()}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, title, author, genre, price, stock, image_url, created_at FROM books WHERE id=$1`)).
		WithArgs("b1").
		WillReturnRows(bookRows(want))

	got, err := repo.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM books WHERE id=\$1`).
		WithArgs("ghost").
		WillReturnRows(bookRows())

	_, err := repo.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListPagesAndFilters(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	b := Book{ID: "b1", Title: "Dune", Author: "Herbert", Genre: "scifi", Price: 12.50, Stock: 3}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM books WHERE genre = $1 AND (title ILIKE $2 OR author ILIKE $2)`)).
		WithArgs("scifi", "%dune%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(13))

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC, id LIMIT $3 OFFSET $4`)).
		WithArgs("scifi", "%dune%", 6, 6).
		WillReturnRows(bookRows(b))

	books, total, err := repo.List(context.Background(), ListParams{Page: 2, Limit: 6, Genre: "scifi", Search: "dune"})
	require.NoError(t, err)
	assert.Equal(t, 13, total)
	require.Len(t, books, 1)
	assert.Equal(t, "b1", books[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDefaultsPage(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM books`)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \$1 OFFSET \$2`).
		WithArgs(12, 0).
		WillReturnRows(bookRows())

	books, total, err := repo.List(context.Background(), ListParams{Page: 0, Limit: 0})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, books)
}

func TestGenres(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	mock.ExpectQuery(`SELECT DISTINCT genre FROM books`).
		WillReturnRows(pgxmock.NewRows([]string{"genre"}).AddRow("fantasy").AddRow("scifi"))

	genres, err := repo.Genres(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fantasy", "scifi"}, genres)
}

func TestUpsert(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	mock.ExpectExec(`INSERT INTO books`).
		WithArgs("b1", "Dune", "Herbert", "scifi", 12.50, 3, "img/dune.jpg").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Upsert(context.Background(), Book{
		ID: "b1", Title: "Dune", Author: "Herbert", Genre: "scifi",
		Price: 12.50, Stock: 3, ImageURL: "img/dune.jpg",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveStock(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves atomically", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPostgresRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT stock FROM books WHERE id=$1 FOR UPDATE`)).
			WithArgs("b1").
			WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(5))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT stock FROM books WHERE id=$1 FOR UPDATE`)).
			WithArgs("b2").
			WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(3))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE books SET stock = stock - $1 WHERE id=$2`)).
			WithArgs(2, "b1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE books SET stock = stock - $1 WHERE id=$2`)).
			WithArgs(1, "b2").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		res, err := repo.ReserveStock(ctx, "order-1", []Line{
			{ProductID: "b1", Quantity: 2},
			{ProductID: "b2", Quantity: 1},
		})
		require.NoError(t, err)
		assert.Empty(t, res.Depleted)
		assert.Equal(t, []Line{{ProductID: "b1", Quantity: 2}, {ProductID: "b2", Quantity: 1}}, res.Reserved)
	})

	t.Run("short line rolls back with depleted detail", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPostgresRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT stock FROM books`).
			WithArgs("b1").
			WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(1))
		mock.ExpectRollback()

		res, err := repo.ReserveStock(ctx, "order-2", []Line{{ProductID: "b1", Quantity: 2}})
		require.NoError(t, err)
		assert.Empty(t, res.Reserved)
		require.Len(t, res.Depleted, 1)
		assert.Equal(t, DepletedLine{ProductID: "b1", Requested: 2, Available: 1}, res.Depleted[0])
	})

	t.Run("unknown product treated as depleted", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPostgresRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT stock FROM books`).
			WithArgs("ghost").
			WillReturnRows(pgxmock.NewRows([]string{"stock"}))
		mock.ExpectRollback()

		res, err := repo.ReserveStock(ctx, "order-3", []Line{{ProductID: "ghost", Quantity: 1}})
		require.NoError(t, err)
		require.Len(t, res.Depleted, 1)
		assert.Zero(t, res.Depleted[0].Available)
	})

	t.Run("begin error surfaces", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPostgresRepository(mock)

		mock.ExpectBegin().WillReturnError(errors.New("cannot begin"))

		_, err := repo.ReserveStock(ctx, "order-4", []Line{{ProductID: "b1", Quantity: 1}})
		require.Error(t, err)
	})
}
