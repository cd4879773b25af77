// Package respond writes JSON bodies and the public error envelope.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/AnshRaj112/empowerment-backend/internal/apperr"
)

// Envelope is the body of every error response.
type Envelope struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// Error renders err as an envelope. Server-side failures are logged with
// their cause; the cause never reaches the client beyond Message/Details.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e := apperr.From(err)
	status := e.Status()
	if status >= http.StatusInternalServerError && logger != nil {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	JSON(w, status, Envelope{Error: e.Tag(), Message: e.Message, Details: e.Details})
}
