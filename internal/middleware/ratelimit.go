package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// readBudgetFactor is how many more reads than writes a client may issue.
// Availability grids are polled far more often than slots are booked.
const readBudgetFactor = 4

// RateLimit caps requests per client IP and endpoint. Writes get the base
// budget; safe methods get readBudgetFactor times as much.
func RateLimit(writesPerMinute int) func(http.Handler) http.Handler {
	writes := limiter(writesPerMinute)
	reads := limiter(writesPerMinute * readBudgetFactor)

	return func(next http.Handler) http.Handler {
		limitedWrites := writes(next)
		limitedReads := reads(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				limitedReads.ServeHTTP(w, r)
			default:
				limitedWrites.ServeHTTP(w, r)
			}
		})
	}
}

func limiter(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSONError(w, http.StatusTooManyRequests, "too many requests, slow down", "rate_limited")
		}),
	)
}
