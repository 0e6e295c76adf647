package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Recover converts handler panics into 500 responses instead of killing
// the connection. chi ships its own Recoverer but this one logs through
// logrus with the request correlation ID attached.
func Recover(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithFields(logrus.Fields{
						"panic":         rec,
						"path":          r.URL.Path,
						"method":        r.Method,
						"correlationId": GetCorrelationID(r.Context()),
					}).Error("panic recovered in handler")
					log.Debug(string(debug.Stack()))
					http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
