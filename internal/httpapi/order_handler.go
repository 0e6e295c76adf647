package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sharifboss/bookhaven/internal/middleware"
	"github.com/sharifboss/bookhaven/internal/order"
)

type OrderHandler struct {
	orders *order.Service
}

func NewOrderHandler(orders *order.Service) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createIntentRequest struct {
	Items []order.LineRequest `json:"items"`
}

// CreateIntent prices the submitted lines from the catalog and opens a
// payment intent for that amount. Any total the client computed is ignored.
func (h *OrderHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var body createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	resp, err := h.orders.CreatePaymentIntent(r.Context(), body.Items)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// PlaceOrder records a paid order. Idempotent on paymentId: resubmitting
// after a timeout returns the already-recorded order.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var body order.PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	o, err := h.orders.Place(r.Context(), user.ID, body)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	orders, err := h.orders.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, map[string][]order.Order{"orders": orders})
}

func writeOrderError(w http.ResponseWriter, err error) {
	var se *order.StockError
	switch {
	case errors.Is(err, order.ErrNoLines),
		errors.Is(err, order.ErrBadQuantity),
		errors.Is(err, order.ErrMissingPayment):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrUnknownProduct):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &se):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "insufficient stock",
			"depleted": se.Depleted,
		})
	default:
		writeError(w, http.StatusInternalServerError, "order operation failed")
	}
}
