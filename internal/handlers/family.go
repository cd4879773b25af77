package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/empowerment-backend/internal/respond"
)

func (h *Handler) ListFamilyGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Family.ListGroups(r.Context(), uid(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, groups)
}

func (h *Handler) CreateFamilyGroup(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	group, err := h.Family.CreateGroup(r.Context(), uid(r), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, group)
}

func (h *Handler) ListFamilyTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Family.ListTasks(r.Context(), uid(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, tasks)
}

func (h *Handler) CreateFamilyTask(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	task, err := h.Family.CreateTask(r.Context(), uid(r), chi.URLParam(r, "id"), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

func (h *Handler) UpdateFamilyTask(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	task, err := h.Family.UpdateTask(r.Context(), uid(r), chi.URLParam(r, "id"), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, task)
}
