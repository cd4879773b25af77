package handlers

import (
	"net/http"

	"github.com/AnshRaj112/empowerment-backend/internal/respond"
)

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Profiles.Get(r.Context(), claims(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, rec)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.Profiles.Update(r.Context(), claims(r), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, rec)
}
