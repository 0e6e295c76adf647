package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sharifboss/bookhaven/internal/cart"
	"github.com/sharifboss/bookhaven/internal/catalog"
)

// BookSource is the slice of the catalog the cart endpoints need: the server
// copy of a product snapshot, so stock checks run against current stock.
type BookSource interface {
	Get(ctx context.Context, productID string) (catalog.Book, error)
}

type CartHandler struct {
	sessions *Sessions
	books    BookSource
}

func NewCartHandler(sessions *Sessions, books BookSource) *CartHandler {
	return &CartHandler{sessions: sessions, books: books}
}

type cartLineView struct {
	Product  cart.Product `json:"product"`
	Quantity int          `json:"quantity"`
	Subtotal float64      `json:"subtotal"`
}

type cartView struct {
	Items         []cartLineView `json:"items"`
	Total         float64        `json:"total"`
	DistinctLines int            `json:"distinctLines"`
	TotalUnits    int            `json:"totalUnits"`
}

func viewOf(s *cart.Store) cartView {
	lines := s.Lines()
	items := make([]cartLineView, 0, len(lines))
	for _, l := range lines {
		items = append(items, cartLineView{Product: l.Product, Quantity: l.Quantity, Subtotal: l.Subtotal()})
	}
	return cartView{
		Items:         items,
		Total:         s.Total(),
		DistinctLines: s.DistinctLineCount(),
		TotalUnits:    s.TotalUnitCount(),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, release := h.sessions.Acquire(w, r)
	defer release()

	writeJSON(w, http.StatusOK, viewOf(sess.Store))
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var body addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.ProductID == "" {
		writeError(w, http.StatusBadRequest, "missing productId")
		return
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}

	book, err := h.books.Get(r.Context(), body.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown product")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	sess, release := h.sessions.Acquire(w, r)
	defer release()

	err = sess.Store.AddItem(r.Context(), cart.Product{
		ID:       book.ID,
		Title:    book.Title,
		Price:    book.Price,
		Stock:    book.Stock,
		ImageURL: book.ImageURL,
	}, body.Quantity)
	if err != nil {
		writeCartError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewOf(sess.Store))
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var body setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sess, release := h.sessions.Acquire(w, r)
	defer release()

	if err := sess.Store.SetQuantity(r.Context(), productID, body.Quantity); err != nil {
		writeCartError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewOf(sess.Store))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	sess, release := h.sessions.Acquire(w, r)
	defer release()

	sess.Store.RemoveItem(r.Context(), productID)
	writeJSON(w, http.StatusOK, viewOf(sess.Store))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess, release := h.sessions.Acquire(w, r)
	defer release()

	sess.Store.Clear(r.Context())
	writeJSON(w, http.StatusOK, viewOf(sess.Store))
}

func writeCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrStockExceeded):
		writeError(w, http.StatusConflict, "requested quantity exceeds available stock")
	case errors.Is(err, cart.ErrInvalidProduct), errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "cart update failed")
	}
}
