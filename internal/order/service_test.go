package order

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharifboss/bookhaven/internal/catalog"
)

type fakeCatalog struct {
	books      map[string]catalog.Book
	reserveErr error
	reserved   []catalog.Line
}

func (f *fakeCatalog) Get(ctx context.Context, id string) (catalog.Book, error) {
	if b, ok := f.books[id]; ok {
		return b, nil
	}
	return catalog.Book{}, catalog.ErrNotFound
}

func (f *fakeCatalog) ReserveStock(ctx context.Context, orderID string, lines []catalog.Line) (catalog.ReserveResult, error) {
	if f.reserveErr != nil {
		return catalog.ReserveResult{}, f.reserveErr
	}
	var res catalog.ReserveResult
	for _, l := range lines {
		b := f.books[l.ProductID]
		if b.Stock < l.Quantity {
			res.Depleted = append(res.Depleted, catalog.DepletedLine{
				ProductID: l.ProductID, Requested: l.Quantity, Available: b.Stock,
			})
		}
	}
	if len(res.Depleted) > 0 {
		return res, nil
	}
	for _, l := range lines {
		b := f.books[l.ProductID]
		b.Stock -= l.Quantity
		f.books[l.ProductID] = b
		res.Reserved = append(res.Reserved, l)
	}
	f.reserved = append(f.reserved, lines...)
	return res, nil
}

type fakeOrders struct {
	created   []*Order
	byPayment map[string]*Order
	createErr error
}

func (f *fakeOrders) Create(ctx context.Context, o *Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, o)
	if f.byPayment == nil {
		f.byPayment = map[string]*Order{}
	}
	f.byPayment[o.PaymentID] = o
	return nil
}

func (f *fakeOrders) GetByID(ctx context.Context, id string) (*Order, error) { return nil, nil }

func (f *fakeOrders) GetByPaymentID(ctx context.Context, paymentID string) (*Order, error) {
	return f.byPayment[paymentID], nil
}

func (f *fakeOrders) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return nil, nil
}

type fakeIntents struct {
	lastAmount   int64
	lastCurrency string
	err          error
}

func (f *fakeIntents) CreateIntent(ctx context.Context, amountCents int64, currency string) (Intent, error) {
	f.lastAmount = amountCents
	f.lastCurrency = currency
	if f.err != nil {
		return Intent{}, f.err
	}
	return Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

type fakePublisher struct {
	published []*Order
	err       error
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, o *Order) error {
	f.published = append(f.published, o)
	return f.err
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testBooks() map[string]catalog.Book {
	return map[string]catalog.Book{
		"b1": {ID: "b1", Price: 12.50, Stock: 3},
		"b2": {ID: "b2", Price: 8.00, Stock: 1},
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	tests := map[string]struct {
		lines      []LineRequest
		wantCents  int64
		wantErr    error
		wantStock  bool
	}{
		"prices from catalog": {
			lines:     []LineRequest{{"b1", 2}, {"b2", 1}},
			wantCents: 3300,
		},
		"empty lines": {
			lines:   nil,
			wantErr: ErrNoLines,
		},
		"unknown product": {
			lines:   []LineRequest{{"ghost", 1}},
			wantErr: ErrUnknownProduct,
		},
		"zero quantity": {
			lines:   []LineRequest{{"b1", 0}},
			wantErr: ErrBadQuantity,
		},
		"over stock": {
			lines:     []LineRequest{{"b2", 2}},
			wantStock: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			intents := &fakeIntents{}
			svc := NewService(&fakeCatalog{books: testBooks()}, &fakeOrders{}, intents, nil, testLogger())

			resp, err := svc.CreatePaymentIntent(context.Background(), tc.lines)

			if tc.wantStock {
				var se *StockError
				require.ErrorAs(t, err, &se)
				return
			}
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantCents, resp.AmountCents)
			assert.Equal(t, tc.wantCents, intents.lastAmount)
			assert.Equal(t, "usd", resp.Currency)
			assert.Equal(t, "pi_1_secret", resp.ClientSecret)
		})
	}
}

// A tampered client total must be irrelevant: only catalog prices flow into
// the amount handed to the provider.
func TestIntentAmountIgnoresClientTotal(t *testing.T) {
	intents := &fakeIntents{}
	svc := NewService(&fakeCatalog{books: testBooks()}, &fakeOrders{}, intents, nil, testLogger())

	// LineRequest has no price field at all; this asserts the derived amount
	_, err := svc.CreatePaymentIntent(context.Background(), []LineRequest{{"b1", 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(3750), intents.lastAmount)
}

func TestPlace(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path reserves, records, publishes", func(t *testing.T) {
		books := &fakeCatalog{books: testBooks()}
		orders := &fakeOrders{}
		pub := &fakePublisher{}
		svc := NewService(books, orders, &fakeIntents{}, pub, testLogger())

		o, err := svc.Place(ctx, "user-1", PlaceRequest{
			Items:     []LineRequest{{"b1", 2}},
			PaymentID: "pay-1",
			Shipping:  Address{City: "Oslo"},
		})
		require.NoError(t, err)

		assert.Equal(t, 25.00, o.TotalAmount)
		assert.Equal(t, "user-1", o.UserID)
		assert.Equal(t, 1, books.books["b1"].Stock)
		require.Len(t, orders.created, 1)
		require.Len(t, pub.published, 1)
		assert.Equal(t, o.ID, pub.published[0].ID)
	})

	t.Run("missing payment reference", func(t *testing.T) {
		svc := NewService(&fakeCatalog{books: testBooks()}, &fakeOrders{}, &fakeIntents{}, nil, testLogger())
		_, err := svc.Place(ctx, "user-1", PlaceRequest{Items: []LineRequest{{"b1", 1}}})
		require.ErrorIs(t, err, ErrMissingPayment)
	})

	t.Run("duplicate payment returns recorded order", func(t *testing.T) {
		books := &fakeCatalog{books: testBooks()}
		orders := &fakeOrders{}
		svc := NewService(books, orders, &fakeIntents{}, nil, testLogger())

		first, err := svc.Place(ctx, "user-1", PlaceRequest{
			Items: []LineRequest{{"b1", 1}}, PaymentID: "pay-dup",
		})
		require.NoError(t, err)

		second, err := svc.Place(ctx, "user-1", PlaceRequest{
			Items: []LineRequest{{"b1", 1}}, PaymentID: "pay-dup",
		})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Len(t, orders.created, 1)
		// stock reserved once, not twice
		assert.Equal(t, 2, books.books["b1"].Stock)
	})

	t.Run("depleted stock fails with detail", func(t *testing.T) {
		books := &fakeCatalog{books: map[string]catalog.Book{"b2": {ID: "b2", Price: 8, Stock: 1}}}
		orders := &fakeOrders{}
		svc := NewService(books, orders, &fakeIntents{}, nil, testLogger())

		_, err := svc.Place(ctx, "user-1", PlaceRequest{
			Items: []LineRequest{{"b2", 2}}, PaymentID: "pay-2",
		})
		var se *StockError
		require.ErrorAs(t, err, &se)
		require.Len(t, se.Depleted, 1)
		assert.Equal(t, 1, se.Depleted[0].Available)
		assert.Empty(t, orders.created)
	})

	t.Run("publish failure does not fail the order", func(t *testing.T) {
		books := &fakeCatalog{books: testBooks()}
		pub := &fakePublisher{err: errors.New("broker down")}
		svc := NewService(books, &fakeOrders{}, &fakeIntents{}, pub, testLogger())

		o, err := svc.Place(ctx, "user-1", PlaceRequest{
			Items: []LineRequest{{"b1", 1}}, PaymentID: "pay-3",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, o.ID)
	})
}
