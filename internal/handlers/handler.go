// Package handlers adapts HTTP requests onto the services. Handlers read
// the principal only from the verified claims placed in the context by
// middleware.RequireAuth.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AnshRaj112/empowerment-backend/internal/apperr"
	"github.com/AnshRaj112/empowerment-backend/internal/auth"
	"github.com/AnshRaj112/empowerment-backend/internal/calendar"
	"github.com/AnshRaj112/empowerment-backend/internal/metrics"
	"github.com/AnshRaj112/empowerment-backend/internal/realtime"
	"github.com/AnshRaj112/empowerment-backend/internal/respond"
	"github.com/AnshRaj112/empowerment-backend/internal/services"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators built once at startup.
type Deps struct {
	Records  *services.RecordService
	Profiles *services.ProfileService
	Safety   *services.SafetyService
	Family   *services.FamilyService
	Calendar *calendar.Service // nil when Google OAuth is not configured
	Hub      *realtime.Hub
	Verifier auth.Verifier
	Logger   *slog.Logger
	Metrics  *metrics.Metrics

	// ClientURL is the frontend origin; websocket upgrades and calendar
	// redirects are bound to it.
	ClientURL string
}

type Handler struct {
	Deps
	now func() time.Time
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{Deps: d, now: time.Now}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.Logger, err)
}

func success(w http.ResponseWriter) {
	respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// decodeBody reads a JSON object body. Numbers are kept as json.Number so
// integer columns are not routed through float64. An empty body is an
// empty object.
func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	body := map[string]any{}
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return body, nil
		case errors.As(err, &tooLarge):
			return nil, apperr.BadRequest("request body exceeds %d bytes", tooLarge.Limit)
		default:
			return nil, apperr.BadRequest("invalid JSON body")
		}
	}
	if dec.More() {
		return nil, apperr.BadRequest("invalid JSON body")
	}
	return body, nil
}

func claims(r *http.Request) *auth.Claims {
	c, _ := auth.ClaimsFrom(r.Context())
	return c
}

func uid(r *http.Request) string { return auth.UIDFrom(r.Context()) }
