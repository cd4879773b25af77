package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/empowerment-backend/internal/models"
	"github.com/AnshRaj112/empowerment-backend/internal/respond"
)

// The record handlers serve every owned resource the same way; res picks
// the table and its columns.

func (h *Handler) ListRecords(res models.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := h.Records.List(r.Context(), res, uid(r), r.URL.Query())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, recs)
	}
}

func (h *Handler) GetRecord(res models.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.Records.Get(r.Context(), res, uid(r), chi.URLParam(r, "id"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, rec)
	}
}

func (h *Handler) CreateRecord(res models.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeBody(w, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		rec, err := h.Records.Create(r.Context(), res, uid(r), body)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, rec)
	}
}

func (h *Handler) UpdateRecord(res models.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeBody(w, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		rec, err := h.Records.Update(r.Context(), res, uid(r), chi.URLParam(r, "id"), body)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, rec)
	}
}

func (h *Handler) DeleteRecord(res models.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.Records.Delete(r.Context(), res, uid(r), chi.URLParam(r, "id")); err != nil {
			h.writeError(w, r, err)
			return
		}
		success(w)
	}
}
