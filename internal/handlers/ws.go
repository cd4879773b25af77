package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AnshRaj112/empowerment-backend/internal/apperr"
	"github.com/AnshRaj112/empowerment-backend/internal/auth"
)

const (
	wsReadLimit  = 4 * 1024
	wsPongWait   = 90 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// deadlineConn bounds every hub write so a peer that stops reading cannot
// stall the writer.
type deadlineConn struct {
	*websocket.Conn
}

func (c deadlineConn) WriteJSON(v any) error {
	if err := c.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return c.Conn.WriteJSON(v)
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Native clients send no Origin header.
			return origin == "" || strings.EqualFold(strings.TrimRight(origin, "/"), h.ClientURL)
		},
	}
}

// SafetySocket streams safety alerts for the caller and their family.
// Browsers cannot set headers on a websocket handshake, so the ID token may
// also arrive as ?token=.
func (h *Handler) SafetySocket(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.ExtractBearer(r.Header.Get("Authorization"))
	if !ok {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		h.writeError(w, r, apperr.AuthMissing("No token provided"))
		return
	}
	c, err := h.Verifier.Verify(r.Context(), token)
	if err != nil {
		h.writeError(w, r, apperr.AuthRejected(err))
		return
	}

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	unregister := h.Hub.Register(c.UID, deadlineConn{conn})
	defer unregister()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	// Clients only listen; reading keeps the pong handler and close
	// detection running.
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}
