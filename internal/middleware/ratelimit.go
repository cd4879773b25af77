package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AnshRaj112/empowerment-backend/internal/apperr"
	"github.com/AnshRaj112/empowerment-backend/internal/metrics"
	"github.com/AnshRaj112/empowerment-backend/internal/ratelimit"
	"github.com/AnshRaj112/empowerment-backend/internal/respond"
	"github.com/AnshRaj112/empowerment-backend/pkg/clientip"
)

// RateLimit applies limiter per client address. Limiter errors let the
// request through.
func RateLimit(limiter ratelimit.Limiter, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), clientip.Key(r))
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

			if !res.Allowed {
				if m != nil {
					m.RateLimited.Inc()
				}
				respond.Error(w, r, logger, &apperr.Error{
					Kind:    apperr.KindRateLimited,
					Message: "Too many requests from this IP, please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
