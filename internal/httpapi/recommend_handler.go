package httpapi

import (
	"net/http"

	"github.com/sharifboss/bookhaven/internal/middleware"
	"github.com/sharifboss/bookhaven/internal/recommend"
)

type RecommendHandler struct {
	recs recommend.Repository
}

func NewRecommendHandler(recs recommend.Repository) *RecommendHandler {
	return &RecommendHandler{recs: recs}
}

// ForUser returns the personalized book list. A user with no shelf or order
// history gets a message instead of an empty grid.
func (h *RecommendHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	books, err := h.recs.ForUser(r.Context(), user.ID, recommend.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load recommendations")
		return
	}

	if len(books) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Rate some books or add them to your shelf to get recommendations.",
		})
		return
	}

	writeJSON(w, http.StatusOK, books)
}
