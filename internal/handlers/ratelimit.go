package handlers

import (
	"net/http"

	"github.com/paideia-labs/paideia/internal/config"
	"github.com/paideia-labs/paideia/pkg/httpext"
	"github.com/paideia-labs/paideia/pkg/ratelimit"
	"github.com/rs/zerolog/log"
)

// RateLimit bounds question submissions per client. Keyed by client address
// because the session id lives in the request body, which must stay
// unconsumed for the handler.
func RateLimit() func(http.Handler) http.Handler {
	cfg := config.GetQuestionRateLimit()
	limiter := ratelimit.NewLimiter(cfg.Window, cfg.MaxHits)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			// Use X-Forwarded-For if behind proxy, otherwise remote address
			addr := r.Header.Get("X-Forwarded-For")
			if addr == "" {
				addr = r.RemoteAddr
			}

			if !limiter.Allow(addr) {
				log.Warn().Str("addr", addr).Str("path", r.URL.Path).Msg("Rate limit exceeded")
				httpext.JsonError(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
