package handlers

import (
	"net/http"
	"time"

	"github.com/AnshRaj112/empowerment-backend/internal/respond"
)

const serviceName = "Women Empowerment Super App Lite API"

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"service":   serviceName,
	})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusNotFound, respond.Envelope{Error: "Not found"})
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusMethodNotAllowed, respond.Envelope{
		Error:   "Method not allowed",
		Message: r.Method + " is not supported for " + r.URL.Path,
	})
}
