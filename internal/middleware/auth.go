package middleware

import (
	"log/slog"
	"net/http"

	"github.com/AnshRaj112/empowerment-backend/internal/apperr"
	"github.com/AnshRaj112/empowerment-backend/internal/auth"
	"github.com/AnshRaj112/empowerment-backend/internal/metrics"
	"github.com/AnshRaj112/empowerment-backend/internal/respond"
)

// RequireAuth verifies the bearer token and stores the claims in the request
// context. A missing or malformed header is 401, a rejected token is 403;
// neither reaches the wrapped handler.
func RequireAuth(v auth.Verifier, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.ExtractBearer(r.Header.Get("Authorization"))
			if !ok {
				if m != nil {
					m.IncAuthFailure("missing")
				}
				respond.Error(w, r, logger, apperr.AuthMissing("No token provided"))
				return
			}

			claims, err := v.Verify(r.Context(), token)
			if err != nil {
				if m != nil {
					m.IncAuthFailure("rejected")
				}
				logger.WarnContext(r.Context(), "token rejected", "path", r.URL.Path, "error", err)
				respond.Error(w, r, logger, apperr.AuthRejected(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
