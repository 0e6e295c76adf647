package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sharifboss/bookhaven/internal/identity"
)

// RequireAuth verifies the bearer token on every request and stores the
// resolved user in the request context. Routes that work anonymously (catalog
// browsing, the session cart) are simply not wrapped with it.
func RequireAuth(verifier identity.Verifier, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := identity.FromAuthHeader(r.Header.Get("Authorization"))
			if !ok {
				writeAuthError(w, r, "missing bearer token")
				return
			}

			user, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, identity.ErrInvalidToken) {
					log.WithError(err).Warn("auth: verifier error")
				}
				writeAuthError(w, r, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUser(ctx context.Context) (identity.User, bool) {
	if v := ctx.Value(ctxUser); v != nil {
		if u, ok := v.(identity.User); ok {
			return u, true
		}
	}
	return identity.User{}, false
}

func writeAuthError(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":         msg,
		"correlationId": GetCorrelationID(r.Context()),
	})
}
