package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/sharifboss/bookhaven/internal/cart"
	"github.com/sharifboss/bookhaven/internal/catalog"
	"github.com/sharifboss/bookhaven/internal/checkout"
	"github.com/sharifboss/bookhaven/internal/clients"
	"github.com/sharifboss/bookhaven/internal/club"
	"github.com/sharifboss/bookhaven/internal/config"
	"github.com/sharifboss/bookhaven/internal/db"
	"github.com/sharifboss/bookhaven/internal/events"
	"github.com/sharifboss/bookhaven/internal/httpapi"
	"github.com/sharifboss/bookhaven/internal/identity"
	"github.com/sharifboss/bookhaven/internal/order"
	"github.com/sharifboss/bookhaven/internal/recommend"
	"github.com/sharifboss/bookhaven/internal/review"
	"github.com/sharifboss/bookhaven/internal/shelf"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// Postgres
	if err := db.RunMigrations(cfg.DatabaseDSN, log); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}

	database, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.OpenPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).Fatal("open pgx pool")
	}
	defer pool.Close()

	// Redis backs the per-session carts.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("redis unreachable")
	}
	defer rdb.Close()

	// RabbitMQ
	rabbitConn := events.MustDial(cfg.RabbitURL)
	defer rabbitConn.Close()

	publisher, err := events.NewPublisher(rabbitConn, events.NewSequenceRepository(database))
	if err != nil {
		log.WithError(err).Fatal("open event publisher")
	}
	defer publisher.Close()

	// Repositories + services
	books := catalog.NewPostgresRepository(pool)
	orders := order.NewRepository(database)
	reviews := review.NewRepository(database)
	shelves := shelf.NewRepository(database)
	clubs := club.NewRepository(database)
	recs := recommend.NewRepository(database)

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	payments := clients.NewPaymentClient(clients.NewClient("payment-provider", cfg.PaymentURL, httpClient))

	orderSvc := order.NewService(books, orders, payments, publisher, log)

	verifier, err := identity.NewHTTPVerifier(cfg.IdentityURL, httpClient)
	if err != nil {
		log.WithError(err).Fatal("identity verifier")
	}

	backend := &httpapi.LocalBackend{Orders: orderSvc}
	sessions := httpapi.NewSessions(
		func(sessionID string) cart.Slot {
			return cart.NewRedisSlot(rdb, "cart:"+sessionID, cfg.CartTTL)
		},
		func(store *cart.Store) *checkout.Flow {
			return checkout.NewFlow(store, backend, payments, log)
		},
		log,
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Log:      log,
		Verifier: verifier,

		Books:   books,
		Reviews: reviews,
		Shelf:   shelves,
		Clubs:   clubs,
		Orders:  orderSvc,
		Recs:    recs,

		Sessions: sessions,

		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("bookhaven listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
}
