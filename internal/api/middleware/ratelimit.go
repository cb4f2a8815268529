package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

// RateLimit rejects requests from client IPs that are currently backing
// off after failed handshakes. Handlers record the failures themselves.
func RateLimit(limiter *auth.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, retryAfter, err := limiter.CheckLimit(ClientIP(r))
			if err != nil {
				secs := auth.FormatRetryAfter(retryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(secs))

				resp := protocol.NewRateLimitExceededError(secs)
				if errors.Is(err, auth.ErrClientLocked) {
					resp.Message = "Too many failed attempts, client locked out"
				}
				WriteError(w, resp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so that the first one is outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
