package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/empowerment-backend/internal/apperr"
	"github.com/AnshRaj112/empowerment-backend/internal/calendar"
	"github.com/AnshRaj112/empowerment-backend/internal/respond"
)

// calendarReady writes 503 and reports false when Google OAuth is not configured.
func (h *Handler) calendarReady(w http.ResponseWriter, r *http.Request) bool {
	if h.Calendar == nil {
		h.writeError(w, r, apperr.Unavailable("Google Calendar is not configured"))
		return false
	}
	return true
}

func (h *Handler) countCalendar(op string, err error) {
	if h.Metrics != nil {
		h.Metrics.IncCalendar(op, err)
	}
}

func (h *Handler) calendarError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.countCalendar(op, err)
	switch {
	case errors.Is(err, calendar.ErrNotConnected):
		h.writeError(w, r, apperr.BadRequest("Google Calendar is not connected"))
	case errors.Is(err, calendar.ErrEventNotFound):
		h.writeError(w, r, apperr.NotFound("calendar event not found"))
	default:
		h.writeError(w, r, &apperr.Error{Kind: apperr.KindUnavailable, Message: "Google Calendar request failed", Err: err})
	}
}

func (h *Handler) CalendarStatus(w http.ResponseWriter, r *http.Request) {
	if h.Calendar == nil {
		respond.JSON(w, http.StatusOK, map[string]bool{"enabled": false, "connected": false})
		return
	}
	connected, err := h.Calendar.Connected(r.Context(), uid(r))
	if err != nil {
		h.writeError(w, r, apperr.Storage(err))
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"enabled": true, "connected": connected})
}

// CalendarConnect returns the Google consent URL. The SPA navigates to it;
// a plain redirect would lose the Authorization header.
func (h *Handler) CalendarConnect(w http.ResponseWriter, r *http.Request) {
	if !h.calendarReady(w, r) {
		return
	}
	link, err := h.Calendar.AuthURL(r.Context(), uid(r))
	if err != nil {
		h.writeError(w, r, apperr.Storage(err))
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"url": link})
}

// CalendarCallback is Google's redirect target. It is not behind
// RequireAuth; the one-time state identifies the principal.
func (h *Handler) CalendarCallback(w http.ResponseWriter, r *http.Request) {
	if !h.calendarReady(w, r) {
		return
	}
	q := r.URL.Query()
	outcome := "connected"
	if errParam := q.Get("error"); errParam != "" {
		outcome = "denied"
	} else if _, err := h.Calendar.Complete(r.Context(), q.Get("state"), q.Get("code")); err != nil {
		h.Logger.WarnContext(r.Context(), "calendar connect failed", "error", err)
		outcome = "error"
	}
	var failed error
	if outcome != "connected" {
		failed = errors.New(outcome)
	}
	h.countCalendar("connect", failed)
	http.Redirect(w, r, h.ClientURL+"/?calendar="+url.QueryEscape(outcome), http.StatusFound)
}

func (h *Handler) CalendarDisconnect(w http.ResponseWriter, r *http.Request) {
	if !h.calendarReady(w, r) {
		return
	}
	if err := h.Calendar.Disconnect(r.Context(), uid(r)); err != nil {
		h.writeError(w, r, apperr.Storage(err))
		return
	}
	success(w)
}

func (h *Handler) ListCalendarEvents(w http.ResponseWriter, r *http.Request) {
	if !h.calendarReady(w, r) {
		return
	}
	limit := calendar.DefaultMax
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, r, apperr.BadRequest("max must be a positive integer"))
			return
		}
		limit = n
	}
	events, err := h.Calendar.ListEvents(r.Context(), uid(r), limit)
	if err != nil {
		h.calendarError(w, r, "list", err)
		return
	}
	h.countCalendar("list", nil)
	respond.JSON(w, http.StatusOK, events)
}

func (h *Handler) CreateCalendarEvent(w http.ResponseWriter, r *http.Request) {
	if !h.calendarReady(w, r) {
		return
	}
	in, err := decodeEvent(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ev, err := h.Calendar.CreateEvent(r.Context(), uid(r), in)
	if err != nil {
		h.calendarError(w, r, "create", err)
		return
	}
	h.countCalendar("create", nil)
	respond.JSON(w, http.StatusOK, ev)
}

func (h *Handler) UpdateCalendarEvent(w http.ResponseWriter, r *http.Request) {
	if !h.calendarReady(w, r) {
		return
	}
	in, err := decodeEvent(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ev, err := h.Calendar.UpdateEvent(r.Context(), uid(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.calendarError(w, r, "update", err)
		return
	}
	h.countCalendar("update", nil)
	respond.JSON(w, http.StatusOK, ev)
}

func (h *Handler) DeleteCalendarEvent(w http.ResponseWriter, r *http.Request) {
	if !h.calendarReady(w, r) {
		return
	}
	if err := h.Calendar.DeleteEvent(r.Context(), uid(r), chi.URLParam(r, "id")); err != nil {
		h.calendarError(w, r, "delete", err)
		return
	}
	h.countCalendar("delete", nil)
	success(w)
}

func decodeEvent(w http.ResponseWriter, r *http.Request) (calendar.EventInput, error) {
	var in calendar.EventInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, apperr.BadRequest("invalid event: %v", err)
	}
	if err := in.Validate(); err != nil {
		return in, apperr.BadRequest("%s", err.Error())
	}
	return in, nil
}
