package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sharifboss/bookhaven/internal/checkout"
	"github.com/sharifboss/bookhaven/internal/middleware"
	"github.com/sharifboss/bookhaven/internal/order"
)

// LocalBackend adapts the in-process order service to the checkout flow's
// backend interface. The acting user comes from the request context, so one
// backend serves every session.
type LocalBackend struct {
	Orders *order.Service
}

func (b *LocalBackend) CreatePaymentIntent(ctx context.Context, lines []checkout.OrderLine) (checkout.PaymentIntent, error) {
	reqs := make([]order.LineRequest, 0, len(lines))
	for _, l := range lines {
		reqs = append(reqs, order.LineRequest{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	resp, err := b.Orders.CreatePaymentIntent(ctx, reqs)
	if err != nil {
		return checkout.PaymentIntent{}, err
	}
	return checkout.PaymentIntent{
		ClientSecret: resp.ClientSecret,
		AmountCents:  resp.AmountCents,
		Currency:     resp.Currency,
	}, nil
}

func (b *LocalBackend) SubmitOrder(ctx context.Context, sub checkout.OrderSubmission) (checkout.OrderRef, error) {
	user, ok := middleware.GetUser(ctx)
	if !ok {
		return checkout.OrderRef{}, errors.New("no authenticated user")
	}

	items := make([]order.LineRequest, 0, len(sub.Lines))
	for _, l := range sub.Lines {
		items = append(items, order.LineRequest{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	o, err := b.Orders.Place(ctx, user.ID, order.PlaceRequest{
		Items:     items,
		PaymentID: sub.PaymentID,
		Shipping: order.Address{
			Line1:      sub.Shipping.Line1,
			City:       sub.Shipping.City,
			PostalCode: sub.Shipping.PostalCode,
			Country:    sub.Shipping.Country,
		},
	})
	if err != nil {
		return checkout.OrderRef{}, err
	}
	return checkout.OrderRef{OrderID: o.ID}, nil
}

type CheckoutHandler struct {
	sessions *Sessions
}

func NewCheckoutHandler(sessions *Sessions) *CheckoutHandler {
	return &CheckoutHandler{sessions: sessions}
}

type checkoutRequest struct {
	Card struct {
		Token string `json:"token"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"card"`
	Shipping checkout.Address `json:"shippingAddress"`
}

type checkoutResponse struct {
	OrderID string `json:"orderId"`
}

// Submit runs the whole sequence for the session cart. The session lock is
// released before the flow runs: the flow serializes itself, so a second
// submit while one is in flight gets an immediate 409 instead of queueing on
// the session. A failure after the charge reports 502 with pendingOrder so
// the client knows to retry the submission, not the payment.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var body checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sess, release := h.sessions.Acquire(w, r)
	flow := sess.Flow
	release()

	ref, err := flow.Submit(r.Context(), checkout.Card{
		Token: body.Card.Token,
		Name:  body.Card.Name,
		Email: body.Card.Email,
	}, body.Shipping)
	if err != nil {
		writeCheckoutError(w, flow, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{OrderID: ref.OrderID})
}

// Retry re-sends a confirmed-but-unacknowledged order. No payment happens
// here.
func (h *CheckoutHandler) Retry(w http.ResponseWriter, r *http.Request) {
	sess, release := h.sessions.Acquire(w, r)
	flow := sess.Flow
	release()

	ref, err := flow.RetrySubmit(r.Context())
	if err != nil {
		writeCheckoutError(w, flow, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{OrderID: ref.OrderID})
}

func writeCheckoutError(w http.ResponseWriter, flow *checkout.Flow, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, checkout.ErrInFlight):
		writeError(w, http.StatusConflict, "checkout already in progress")
	case errors.Is(err, checkout.ErrNoPendingOrder):
		writeError(w, http.StatusConflict, "no pending order to retry")
	case errors.Is(err, checkout.ErrPaymentDeclined):
		writeError(w, http.StatusPaymentRequired, "payment declined")
	default:
		var se *order.StockError
		if errors.As(err, &se) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":    "insufficient stock",
				"depleted": se.Depleted,
			})
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":        "order submission failed",
			"pendingOrder": flow.PendingSubmission(),
		})
	}
}
