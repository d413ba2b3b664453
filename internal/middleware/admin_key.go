package middleware

import (
	"crypto/subtle"
	"net/http"
)

const adminKeyHeader = "X-Platform-Admin-Key"

// RequireAdminKey guards platform administration endpoints with a shared
// secret header. An empty configured key disables the endpoints entirely.
func RequireAdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				http.Error(w, `{"error":"platform administration is disabled"}`, http.StatusForbidden)
				return
			}
			got := r.Header.Get(adminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				http.Error(w, `{"error":"invalid admin key"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
