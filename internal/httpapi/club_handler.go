package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sharifboss/bookhaven/internal/club"
	"github.com/sharifboss/bookhaven/internal/middleware"
)

type ClubHandler struct {
	clubs club.Repository
}

func NewClubHandler(clubs club.Repository) *ClubHandler {
	return &ClubHandler{clubs: clubs}
}

func (h *ClubHandler) ListClubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.clubs.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list clubs")
		return
	}
	if clubs == nil {
		clubs = []club.Club{}
	}
	writeJSON(w, http.StatusOK, map[string][]club.Club{"clubs": clubs})
}

type clubRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *ClubHandler) CreateClub(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var body clubRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "missing club name")
		return
	}

	c := &club.Club{Name: body.Name, Description: body.Description, OwnerID: user.ID}
	if err := h.clubs.Create(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create club")
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *ClubHandler) GetClub(w http.ResponseWriter, r *http.Request) {
	c, err := h.clubs.Get(r.Context(), chi.URLParam(r, "clubId"))
	if err != nil {
		writeClubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ClubHandler) UpdateClub(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var body clubRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	c := &club.Club{ID: chi.URLParam(r, "clubId"), Name: body.Name, Description: body.Description}
	if err := h.clubs.Update(r.Context(), user.ID, c); err != nil {
		writeClubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ClubHandler) DeleteClub(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	if err := h.clubs.Delete(r.Context(), user.ID, chi.URLParam(r, "clubId")); err != nil {
		writeClubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *ClubHandler) Join(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	if err := h.clubs.Join(r.Context(), chi.URLParam(r, "clubId"), user.ID); err != nil {
		writeClubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"joined": true})
}

func (h *ClubHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	if err := h.clubs.Leave(r.Context(), chi.URLParam(r, "clubId"), user.ID); err != nil {
		writeClubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"left": true})
}

func (h *ClubHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.clubs.ListPosts(r.Context(), chi.URLParam(r, "clubId"))
	if err != nil {
		writeClubError(w, err)
		return
	}
	if posts == nil {
		posts = []club.Post{}
	}
	writeJSON(w, http.StatusOK, map[string][]club.Post{"posts": posts})
}

type postRequest struct {
	ClubID string `json:"clubId"`
	Body   string `json:"body"`
}

func (h *ClubHandler) AddPost(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var body postRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.ClubID == "" || body.Body == "" {
		writeError(w, http.StatusBadRequest, "missing clubId or body")
		return
	}

	p := &club.Post{ClubID: body.ClubID, AuthorID: user.ID, Body: body.Body}
	if err := h.clubs.AddPost(r.Context(), p); err != nil {
		writeClubError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ClubHandler) LikePost(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	if err := h.clubs.LikePost(r.Context(), chi.URLParam(r, "postId"), user.ID); err != nil {
		writeClubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": true})
}

type commentRequest struct {
	Body string `json:"body"`
}

func (h *ClubHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var body commentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Body == "" {
		writeError(w, http.StatusBadRequest, "missing comment body")
		return
	}

	c := &club.Comment{PostID: chi.URLParam(r, "postId"), AuthorID: user.ID, Body: body.Body}
	if err := h.clubs.AddComment(r.Context(), c); err != nil {
		writeClubError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func writeClubError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, club.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, club.ErrNotOwner):
		writeError(w, http.StatusForbidden, club.ErrNotOwner.Error())
	default:
		writeError(w, http.StatusInternalServerError, "club operation failed")
	}
}
