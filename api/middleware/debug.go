package middleware

import (
	"net/http"

	"github.com/radarprecios/radarprecios-backend/api/responses"
)

// Debug exposes internal error chains in error envelopes. Only mounted in dev.
func Debug(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(responses.WithDebug(r.Context(), true)))
		})
	}
}
