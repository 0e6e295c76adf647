package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharifboss/bookhaven/internal/cart"
	"github.com/sharifboss/bookhaven/internal/checkout"
	"github.com/sharifboss/bookhaven/internal/httpapi"
	"github.com/sharifboss/bookhaven/internal/identity"
	"github.com/sharifboss/bookhaven/internal/recommend"
)

type fakeRecs struct {
	byUser map[string][]recommend.Book
	err    error
}

func (f *fakeRecs) ForUser(ctx context.Context, userID string, limit int) ([]recommend.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUser[userID], nil
}

func newRecommendRouter(t *testing.T, recs recommend.Repository) http.Handler {
	t.Helper()

	log := logrus.New()
	log.SetOutput(testWriter{t})

	sessions := httpapi.NewSessions(
		func(string) cart.Slot { return cart.NewMemorySlot() },
		func(store *cart.Store) *checkout.Flow {
			return checkout.NewFlow(store, &fakeCheckoutBackend{}, &fakeCheckoutProvider{}, log)
		},
		log,
	)

	return httpapi.NewRouter(httpapi.Deps{
		Log:      log,
		Verifier: identity.StaticVerifier{"tok-amira": {ID: "u1", Email: "amira@example.com"}},
		Books:    testBooks(),
		Recs:     recs,
		Sessions: sessions,

		CORSAllowOrigins: []string{"*"},
	})
}

func TestRecommendationsEndpoint(t *testing.T) {
	t.Run("requires auth", func(t *testing.T) {
		c := &client{t: t, handler: newRecommendRouter(t, &fakeRecs{})}

		w := c.do(http.MethodGet, "/api/recommendations", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("returns the user's picks", func(t *testing.T) {
		recs := &fakeRecs{byUser: map[string][]recommend.Book{
			"u1": {
				{ID: "b3", Title: "The Fifth Season", Genre: "Fantasy", Price: 11.00, Stock: 4, AverageRating: 4.6},
				{ID: "b4", Title: "Gideon the Ninth", Genre: "Fantasy", Price: 9.50, Stock: 2, AverageRating: 4.2},
			},
		}}
		c := &client{t: t, handler: newRecommendRouter(t, recs), token: "tok-amira"}

		w := c.do(http.MethodGet, "/api/recommendations", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var books []recommend.Book
		require.NoError(t, json.NewDecoder(w.Body).Decode(&books))
		require.Len(t, books, 2)
		assert.Equal(t, "b3", books[0].ID)
		assert.Equal(t, 4.6, books[0].AverageRating)
	})

	t.Run("no history gets a nudge instead of an empty grid", func(t *testing.T) {
		c := &client{t: t, handler: newRecommendRouter(t, &fakeRecs{}), token: "tok-amira"}

		w := c.do(http.MethodGet, "/api/recommendations", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Contains(t, resp["message"], "shelf")
	})

	t.Run("repository failure is a 500", func(t *testing.T) {
		c := &client{t: t, handler: newRecommendRouter(t, &fakeRecs{err: errors.New("db down")}), token: "tok-amira"}

		w := c.do(http.MethodGet, "/api/recommendations", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
