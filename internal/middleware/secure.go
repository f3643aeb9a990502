package middleware

import (
	"net/http"

	"github.com/skumar/authdemo/internal/config"
)

// SecureHeaders stamps the fixed security headers on every response,
// success or failure. It is stateless and makes no decisions beyond
// "always apply".
func SecureHeaders(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Strict-Transport-Security", cfg.StrictTransport)
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("X-XSS-Protection", "1; mode=block")
			next.ServeHTTP(w, r)
		})
	}
}
