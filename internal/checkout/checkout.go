// Package checkout drives the order placement sequence against the backend
// and the hosted payment provider. The backend is the only authority for the
// charged amount: the cart's locally derived total is display-only and never
// reaches the provider.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sharifboss/bookhaven/internal/cart"
)

var (
	// ErrEmptyCart is returned when Submit is called with nothing to buy.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrInFlight is returned when a submission is already pending. Guards
	// against duplicate charges from repeated clicks.
	ErrInFlight = errors.New("checkout already in progress")

	// ErrPaymentDeclined marks a charge the provider refused. Provider
	// implementations return it (wrapped or bare) for rejections; transport
	// failures stay ordinary errors and are never reported as declines.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrNoPendingOrder is returned by RetrySubmit when there is no confirmed
	// payment waiting for order submission.
	ErrNoPendingOrder = errors.New("no pending order submission")
)

// OrderLine is a cart line stripped to what the backend needs. The cached
// product snapshot never leaves the client; the backend recomputes price and
// re-checks stock itself.
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// PaymentIntent is the authorization handle issued by the backend. Amount is
// the authoritative charge in the smallest currency unit.
type PaymentIntent struct {
	ClientSecret string
	AmountCents  int64
	Currency     string
}

// Card is an opaque payment-method token produced by the provider's
// client-side tokenization. Raw card data never passes through here.
type Card struct {
	Token string
	Name  string
	Email string
}

// Address is the shipping address captured at checkout.
type Address struct {
	Line1      string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Confirmation is the provider's record of a completed charge.
type Confirmation struct {
	PaymentID string
}

// OrderRef identifies the order the backend created.
type OrderRef struct {
	OrderID string
}

// Backend is the subset of the bookstore API checkout needs.
type Backend interface {
	CreatePaymentIntent(ctx context.Context, lines []OrderLine) (PaymentIntent, error)
	SubmitOrder(ctx context.Context, sub OrderSubmission) (OrderRef, error)
}

// Provider confirms a payment against an intent. The charged amount is the
// intent's, fixed when the backend created it.
type Provider interface {
	Confirm(ctx context.Context, intent PaymentIntent, card Card) (Confirmation, error)
}

// OrderSubmission is the finalized order record sent to the backend after the
// provider has confirmed payment.
type OrderSubmission struct {
	Lines     []OrderLine
	PaymentID string
	Shipping  Address
}

// Flow owns one session's checkout. Any failure before order acknowledgment
// leaves the cart untouched so the user can retry; a failure after payment
// confirmation keeps the confirmation around so RetrySubmit never re-charges.
type Flow struct {
	store    *cart.Store
	backend  Backend
	provider Provider
	log      logrus.FieldLogger

	// storeMu, when set, is taken around every store access. The store is not
	// concurrency-safe; callers that also mutate it from other goroutines
	// hand the flow their lock so the two sides serialize.
	storeMu sync.Locker

	mu       sync.Mutex
	inFlight bool
	pending  *OrderSubmission
}

func NewFlow(store *cart.Store, backend Backend, provider Provider, log logrus.FieldLogger) *Flow {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Flow{store: store, backend: backend, provider: provider, log: log}
}

// UseStoreLock makes the flow take l around its reads and the final clear of
// the cart store. Call before the flow is first used.
func (f *Flow) UseStoreLock(l sync.Locker) {
	f.storeMu = l
}

// Submit runs the full sequence: intent from the backend, confirmation with
// the provider, order submission, then cart clear. Only one submission may be
// in flight at a time.
func (f *Flow) Submit(ctx context.Context, card Card, shipping Address) (OrderRef, error) {
	if err := f.begin(); err != nil {
		return OrderRef{}, err
	}
	defer f.end()

	lines := f.orderLines()
	if len(lines) == 0 {
		return OrderRef{}, ErrEmptyCart
	}

	intent, err := f.backend.CreatePaymentIntent(ctx, lines)
	if err != nil {
		return OrderRef{}, fmt.Errorf("create payment intent: %w", err)
	}

	conf, err := f.provider.Confirm(ctx, intent, card)
	if err != nil {
		// Only the provider classifies declines; anything else (timeouts,
		// transport errors) surfaces as-is so the caller doesn't tell the
		// user their card was refused when the network was.
		if errors.Is(err, ErrPaymentDeclined) {
			return OrderRef{}, err
		}
		return OrderRef{}, fmt.Errorf("confirm payment: %w", err)
	}

	sub := OrderSubmission{Lines: lines, PaymentID: conf.PaymentID, Shipping: shipping}
	ref, err := f.backend.SubmitOrder(ctx, sub)
	if err != nil {
		// Payment went through. Keep the submission so a retry reuses the
		// same confirmation instead of charging again.
		f.mu.Lock()
		f.pending = &sub
		f.mu.Unlock()
		f.log.WithError(err).WithField("paymentId", conf.PaymentID).
			Error("checkout: order submission failed after confirmed payment")
		return OrderRef{}, fmt.Errorf("submit order: %w", err)
	}

	f.finish(ctx)
	return ref, nil
}

// RetrySubmit re-sends the order for an already-confirmed payment. It never
// contacts the provider.
func (f *Flow) RetrySubmit(ctx context.Context) (OrderRef, error) {
	if err := f.begin(); err != nil {
		return OrderRef{}, err
	}
	defer f.end()

	f.mu.Lock()
	sub := f.pending
	f.mu.Unlock()
	if sub == nil {
		return OrderRef{}, ErrNoPendingOrder
	}

	ref, err := f.backend.SubmitOrder(ctx, *sub)
	if err != nil {
		return OrderRef{}, fmt.Errorf("submit order: %w", err)
	}

	f.finish(ctx)
	return ref, nil
}

// PendingSubmission reports whether a confirmed payment is still waiting for
// order acknowledgment.
func (f *Flow) PendingSubmission() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending != nil
}

func (f *Flow) orderLines() []OrderLine {
	if f.storeMu != nil {
		f.storeMu.Lock()
		defer f.storeMu.Unlock()
	}
	cartLines := f.store.Lines()
	lines := make([]OrderLine, 0, len(cartLines))
	for _, l := range cartLines {
		lines = append(lines, OrderLine{ProductID: l.Product.ID, Quantity: l.Quantity})
	}
	return lines
}

func (f *Flow) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		return ErrInFlight
	}
	f.inFlight = true
	return nil
}

func (f *Flow) end() {
	f.mu.Lock()
	f.inFlight = false
	f.mu.Unlock()
}

func (f *Flow) finish(ctx context.Context) {
	f.mu.Lock()
	f.pending = nil
	f.mu.Unlock()

	if f.storeMu != nil {
		f.storeMu.Lock()
		defer f.storeMu.Unlock()
	}
	f.store.Clear(ctx)
}
