package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sharifboss/bookhaven/internal/catalog"
	"github.com/sharifboss/bookhaven/internal/middleware"
	"github.com/sharifboss/bookhaven/internal/review"
)

type CatalogHandler struct {
	books   catalog.Repository
	reviews review.Repository
}

func NewCatalogHandler(books catalog.Repository, reviews review.Repository) *CatalogHandler {
	return &CatalogHandler{books: books, reviews: reviews}
}

type bookListResponse struct {
	Books []catalog.Book `json:"books"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int            `json:"total"`
}

func (h *CatalogHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := catalog.ListParams{
		Page:   atoiDefault(q.Get("page"), 1),
		Limit:  atoiDefault(q.Get("limit"), 12),
		Genre:  q.Get("genre"),
		Search: q.Get("search"),
	}

	books, total, err := h.books.List(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list books")
		return
	}
	if books == nil {
		books = []catalog.Book{}
	}

	writeJSON(w, http.StatusOK, bookListResponse{Books: books, Page: p.Page, Limit: p.Limit, Total: total})
}

func (h *CatalogHandler) Genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.books.Genres(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list genres")
		return
	}
	if genres == nil {
		genres = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"genres": genres})
}

type bookDetailResponse struct {
	catalog.Book
	AverageRating float64         `json:"averageRating"`
	RatingCount   int             `json:"ratingCount"`
	Reviews       []review.Review `json:"reviews"`
}

func (h *CatalogHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookId")

	book, err := h.books.Get(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load book")
		return
	}

	avg, count, err := h.reviews.AverageRating(r.Context(), bookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load ratings")
		return
	}
	revs, err := h.reviews.ListByBook(r.Context(), bookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load reviews")
		return
	}
	if revs == nil {
		revs = []review.Review{}
	}

	writeJSON(w, http.StatusOK, bookDetailResponse{
		Book:          book,
		AverageRating: avg,
		RatingCount:   count,
		Reviews:       revs,
	})
}

type addReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *CatalogHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookId")
	user, _ := middleware.GetUser(r.Context())

	var body addReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	// Reviews attach to real books only.
	if _, err := h.books.Get(r.Context(), bookID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load book")
		return
	}

	rv := &review.Review{BookID: bookID, UserID: user.ID, Rating: body.Rating, Comment: body.Comment}
	if err := h.reviews.Add(r.Context(), rv); err != nil {
		if errors.Is(err, review.ErrBadRating) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to save review")
		return
	}

	writeJSON(w, http.StatusCreated, rv)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
