package middleware

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	corsMethods = "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	corsHeaders = "Content-Type, Authorization, X-Correlation-Id"
)

// CORS admits the configured browser origins. The cart rides on a cookie, so
// allowed origins are reflected with credentials enabled rather than answered
// with a bare "*". Requests from unlisted origins pass through without CORS
// headers; the browser enforces the block.
func CORS(allowOrigins []string, log logrus.FieldLogger) func(http.Handler) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}

	allowAll := false
	allowed := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "*" {
			allowAll = true
			continue
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}

	admit := func(w http.ResponseWriter, origin string) {
		if origin == "" {
			return
		}
		if _, ok := allowed[strings.ToLower(origin)]; !ok && !allowAll {
			log.WithField("origin", origin).Debug("cors: origin not allowed")
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			admit(w, origin)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
