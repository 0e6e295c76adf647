package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharifboss/bookhaven/internal/cart"
)

type fakeBackend struct {
	intent       PaymentIntent
	intentErr    error
	submitErr    error
	submitErrs   int // fail this many submissions, then succeed
	intentCalls  int
	submitCalls  int
	lastLines    []OrderLine
	lastPayment  string
	entered      chan struct{} // closed on first CreatePaymentIntent call
	barrier      chan struct{} // when set, CreatePaymentIntent blocks until closed
}

func (b *fakeBackend) CreatePaymentIntent(ctx context.Context, lines []OrderLine) (PaymentIntent, error) {
	b.intentCalls++
	b.lastLines = lines
	if b.entered != nil && b.intentCalls == 1 {
		close(b.entered)
	}
	if b.barrier != nil {
		<-b.barrier
	}
	if b.intentErr != nil {
		return PaymentIntent{}, b.intentErr
	}
	return b.intent, nil
}

func (b *fakeBackend) SubmitOrder(ctx context.Context, sub OrderSubmission) (OrderRef, error) {
	b.submitCalls++
	b.lastPayment = sub.PaymentID
	if b.submitErr != nil && (b.submitErrs == 0 || b.submitCalls <= b.submitErrs) {
		return OrderRef{}, b.submitErr
	}
	return OrderRef{OrderID: "order-1"}, nil
}

type fakeProvider struct {
	err           error
	calls         int
	chargedCents  int64
}

func (p *fakeProvider) Confirm(ctx context.Context, intent PaymentIntent, card Card) (Confirmation, error) {
	p.calls++
	p.chargedCents = intent.AmountCents
	if p.err != nil {
		return Confirmation{}, p.err
	}
	return Confirmation{PaymentID: "pay-1"}, nil
}

func seededStore(t *testing.T) *cart.Store {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := cart.NewStore(cart.NewMemorySlot(), log)
	s.Hydrate(context.Background())
	require.NoError(t, s.AddItem(context.Background(), cart.Product{ID: "b1", Price: 12.50, Stock: 3}, 2))
	require.NoError(t, s.AddItem(context.Background(), cart.Product{ID: "b2", Price: 8.00, Stock: 1}, 1))
	return s
}

func newFlow(t *testing.T, b *fakeBackend, p *fakeProvider) (*Flow, *cart.Store) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := seededStore(t)
	return NewFlow(store, b, p, log), store
}

func TestSubmitHappyPath(t *testing.T) {
	b := &fakeBackend{intent: PaymentIntent{ClientSecret: "cs", AmountCents: 3300, Currency: "usd"}}
	p := &fakeProvider{}
	flow, store := newFlow(t, b, p)

	ref, err := flow.Submit(context.Background(), Card{Token: "tok"}, Address{City: "Oslo"})
	require.NoError(t, err)
	assert.Equal(t, "order-1", ref.OrderID)

	// snapshot stripped: only id+quantity crossed the wire
	assert.Equal(t, []OrderLine{{ProductID: "b1", Quantity: 2}, {ProductID: "b2", Quantity: 1}}, b.lastLines)
	assert.Equal(t, "pay-1", b.lastPayment)

	// cart cleared only after backend acknowledgment
	assert.Equal(t, 0, store.DistinctLineCount())
}

// The provider must be charged the backend's authoritative amount, even when
// it disagrees with the cart's locally derived total.
func TestBackendAmountIsAuthoritative(t *testing.T) {
	b := &fakeBackend{intent: PaymentIntent{ClientSecret: "cs", AmountCents: 9999, Currency: "usd"}}
	p := &fakeProvider{}
	flow, store := newFlow(t, b, p)

	localCents := int64(store.Total() * 100)
	require.NotEqual(t, localCents, int64(9999))

	_, err := flow.Submit(context.Background(), Card{Token: "tok"}, Address{})
	require.NoError(t, err)
	assert.Equal(t, int64(9999), p.chargedCents)
}

func TestSubmitEmptyCart(t *testing.T) {
	b := &fakeBackend{}
	p := &fakeProvider{}
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := cart.NewStore(cart.NewMemorySlot(), log)
	store.Hydrate(context.Background())

	flow := NewFlow(store, b, p, log)
	_, err := flow.Submit(context.Background(), Card{}, Address{})
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, b.intentCalls)
}

func TestFailuresLeaveCartUntouched(t *testing.T) {
	t.Run("intent creation fails", func(t *testing.T) {
		b := &fakeBackend{intentErr: errors.New("backend down")}
		flow, store := newFlow(t, b, &fakeProvider{})

		_, err := flow.Submit(context.Background(), Card{}, Address{})
		require.Error(t, err)
		assert.Equal(t, 2, store.DistinctLineCount())
	})

	t.Run("provider declines", func(t *testing.T) {
		b := &fakeBackend{intent: PaymentIntent{ClientSecret: "cs", AmountCents: 100}}
		p := &fakeProvider{err: fmt.Errorf("%w: insufficient funds", ErrPaymentDeclined)}
		flow, store := newFlow(t, b, p)

		_, err := flow.Submit(context.Background(), Card{}, Address{})
		require.ErrorIs(t, err, ErrPaymentDeclined)
		assert.Contains(t, err.Error(), "insufficient funds")
		assert.Equal(t, 2, store.DistinctLineCount())
		assert.Zero(t, b.submitCalls)
	})

	t.Run("provider transport failure is not a decline", func(t *testing.T) {
		b := &fakeBackend{intent: PaymentIntent{ClientSecret: "cs", AmountCents: 100}}
		p := &fakeProvider{err: errors.New("connection reset by peer")}
		flow, store := newFlow(t, b, p)

		_, err := flow.Submit(context.Background(), Card{}, Address{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPaymentDeclined)
		assert.Equal(t, 2, store.DistinctLineCount())
		assert.Zero(t, b.submitCalls)
		assert.False(t, flow.PendingSubmission())
	})

	t.Run("order submission fails after payment", func(t *testing.T) {
		b := &fakeBackend{intent: PaymentIntent{ClientSecret: "cs", AmountCents: 100}, submitErr: errors.New("timeout")}
		flow, store := newFlow(t, b, &fakeProvider{})

		_, err := flow.Submit(context.Background(), Card{}, Address{})
		require.Error(t, err)
		assert.Equal(t, 2, store.DistinctLineCount())
		assert.True(t, flow.PendingSubmission())
	})
}

// After a post-payment submission failure, the retry must reuse the existing
// confirmation: same payment id, no second provider call.
func TestRetrySubmitNeverRecharges(t *testing.T) {
	b := &fakeBackend{
		intent:     PaymentIntent{ClientSecret: "cs", AmountCents: 100},
		submitErr:  errors.New("timeout"),
		submitErrs: 1,
	}
	p := &fakeProvider{}
	flow, store := newFlow(t, b, p)

	_, err := flow.Submit(context.Background(), Card{Token: "tok"}, Address{})
	require.Error(t, err)
	require.Equal(t, 1, p.calls)

	ref, err := flow.RetrySubmit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "order-1", ref.OrderID)
	assert.Equal(t, 1, p.calls, "provider must not be contacted on retry")
	assert.Equal(t, "pay-1", b.lastPayment)
	assert.Equal(t, 0, store.DistinctLineCount())
	assert.False(t, flow.PendingSubmission())
}

func TestRetryWithoutPending(t *testing.T) {
	flow, _ := newFlow(t, &fakeBackend{}, &fakeProvider{})
	_, err := flow.RetrySubmit(context.Background())
	require.ErrorIs(t, err, ErrNoPendingOrder)
}

func TestSingleInFlightSubmission(t *testing.T) {
	barrier := make(chan struct{})
	entered := make(chan struct{})
	b := &fakeBackend{
		intent:  PaymentIntent{ClientSecret: "cs", AmountCents: 100},
		barrier: barrier,
		entered: entered,
	}
	flow, _ := newFlow(t, b, &fakeProvider{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = flow.Submit(context.Background(), Card{}, Address{})
	}()

	// the first submission is parked inside CreatePaymentIntent; a second
	// click must be rejected immediately
	<-entered
	_, err := flow.Submit(context.Background(), Card{}, Address{})
	assert.ErrorIs(t, err, ErrInFlight)

	close(barrier)
	wg.Wait()
	assert.Equal(t, 1, b.intentCalls)
}
