package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sharifboss/bookhaven/internal/middleware"
	"github.com/sharifboss/bookhaven/internal/shelf"
)

type ShelfHandler struct {
	shelf shelf.Repository
}

func NewShelfHandler(repo shelf.Repository) *ShelfHandler {
	return &ShelfHandler{shelf: repo}
}

func (h *ShelfHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookId")
	user, _ := middleware.GetUser(r.Context())

	e, err := h.shelf.Get(r.Context(), user.ID, bookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load reading status")
		return
	}
	if e == nil {
		writeJSON(w, http.StatusOK, map[string]any{"bookId": bookID, "status": nil})
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type setStatusRequest struct {
	Status shelf.Status `json:"status"`
}

func (h *ShelfHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookId")
	user, _ := middleware.GetUser(r.Context())

	var body setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !body.Status.Valid() {
		writeError(w, http.StatusBadRequest, shelf.ErrBadStatus.Error())
		return
	}

	e := &shelf.Entry{UserID: user.ID, BookID: bookID, Status: body.Status}
	if err := h.shelf.Set(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save reading status")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (h *ShelfHandler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	entries, err := h.shelf.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reading statuses")
		return
	}
	if entries == nil {
		entries = []shelf.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string][]shelf.Entry{"statuses": entries})
}
