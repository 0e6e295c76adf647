package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/sharifboss/bookhaven/internal/catalog"
	"github.com/sharifboss/bookhaven/internal/club"
	"github.com/sharifboss/bookhaven/internal/identity"
	"github.com/sharifboss/bookhaven/internal/middleware"
	"github.com/sharifboss/bookhaven/internal/order"
	"github.com/sharifboss/bookhaven/internal/recommend"
	"github.com/sharifboss/bookhaven/internal/review"
	"github.com/sharifboss/bookhaven/internal/shelf"
)

type Deps struct {
	Log      *logrus.Logger
	Verifier identity.Verifier

	Books   catalog.Repository
	Reviews review.Repository
	Shelf   shelf.Repository
	Clubs   club.Repository
	Orders  *order.Service
	Recs    recommend.Repository

	Sessions *Sessions

	CORSAllowOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.CORS(d.CORSAllowOrigins, d.Log))
	r.Use(middleware.Recover(d.Log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "bookhaven"})
	})

	cat := NewCatalogHandler(d.Books, d.Reviews)
	cart := NewCartHandler(d.Sessions, d.Books)
	co := NewCheckoutHandler(d.Sessions)
	ord := NewOrderHandler(d.Orders)
	sh := NewShelfHandler(d.Shelf)
	cl := NewClubHandler(d.Clubs)
	rec := NewRecommendHandler(d.Recs)

	r.Route("/api", func(r chi.Router) {
		// Public: browsing and the session cart need no login.
		r.Get("/books", cat.ListBooks)
		r.Get("/books/genres", cat.Genres)
		r.Get("/books/{bookId}", cat.GetBook)

		r.Get("/cart", cart.GetCart)
		r.Post("/cart/items", cart.AddItem)
		r.Put("/cart/items/{productId}", cart.SetQuantity)
		r.Delete("/cart/items/{productId}", cart.RemoveItem)
		r.Delete("/cart", cart.ClearCart)

		r.Get("/clubs", cl.ListClubs)
		r.Get("/clubs/{clubId}", cl.GetClub)
		r.Get("/clubs/{clubId}/posts", cl.ListPosts)

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.Verifier, d.Log))

			r.Post("/books/{bookId}/reviews", cat.AddReview)

			r.Get("/recommendations", rec.ForUser)

			r.Get("/status", sh.ListStatuses)
			r.Get("/status/{bookId}", sh.GetStatus)
			r.Put("/status/{bookId}", sh.SetStatus)

			r.Post("/clubs", cl.CreateClub)
			r.Put("/clubs/{clubId}", cl.UpdateClub)
			r.Delete("/clubs/{clubId}", cl.DeleteClub)
			r.Post("/clubs/{clubId}/join", cl.Join)
			r.Post("/clubs/{clubId}/leave", cl.Leave)
			r.Post("/posts", cl.AddPost)
			r.Post("/posts/{postId}/like", cl.LikePost)
			r.Post("/posts/{postId}/comment", cl.AddComment)

			r.Post("/checkout", co.Submit)
			r.Post("/checkout/retry", co.Retry)

			r.Post("/orders/create-payment-intent", ord.CreateIntent)
			r.Post("/orders", ord.PlaceOrder)
			r.Get("/orders", ord.ListOrders)
		})
	})

	return r
}
