package handlers

import (
	"net/http"

	"github.com/AnshRaj112/empowerment-backend/internal/respond"
	"github.com/AnshRaj112/empowerment-backend/internal/safety"
)

func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	alert, err := h.Safety.CreateAlert(r.Context(), uid(r), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, alert)
}

// SOS handles the panic button. The body may carry latitude and longitude.
func (h *Handler) SOS(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Safety.SOS(r.Context(), uid(r), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func (h *Handler) timer(op func(string) safety.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, op(uid(r)))
	}
}

func (h *Handler) TimerStatus() http.HandlerFunc { return h.timer(h.Safety.TimerStatus) }
func (h *Handler) StartTimer() http.HandlerFunc { return h.timer(h.Safety.StartTimer) }
func (h *Handler) StopTimer() http.HandlerFunc { return h.timer(h.Safety.StopTimer) }
func (h *Handler) CheckIn() http.HandlerFunc { return h.timer(h.Safety.CheckIn) }
