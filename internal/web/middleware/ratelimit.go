package middleware

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/znz-systems/triage/internal/ratelimit"
)

// RateLimit returns middleware that rate-limits requests per client IP
// within scope, so different route groups have separate buckets. When the
// limit is exceeded it responds 429 with a JSON error body.
func RateLimit(limiter *ratelimit.Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				// If RemoteAddr has no port, use it as-is.
				ip = r.RemoteAddr
			}

			if !limiter.Allow(scope + "|" + ip) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
