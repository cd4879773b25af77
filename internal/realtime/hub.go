// Package realtime pushes safety alerts to the websocket connections of the
// affected principals. With Redis configured, events travel through one
// Pub/Sub channel so every gateway instance delivers to its own clients.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/empowerment-backend/internal/metrics"
)

// Channel is the Redis Pub/Sub channel carrying alert events.
const Channel = "safety:alerts"

const sendBuffer = 16

// Event is the payload written to websocket clients.
type Event struct {
	Type       string         `json:"type"`
	From       string         `json:"from"`
	Recipients []string       `json:"-"`
	Alert      map[string]any `json:"alert,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// wire is Event plus the routing field, as published on Redis.
type wire struct {
	Event
	Recipients []string `json:"recipients"`
}

// Event types
const (
	EventAlert     = "safety_alert"
	EventTriggered = "safety_timer_triggered"
)

// Conn is the part of *websocket.Conn the hub writes to. WriteJSON must
// not block past the connection's write deadline; Close must unblock it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

type client struct {
	uid  string
	conn Conn
	send chan Event
}

type Hub struct {
	redis   redis.UniversalClient
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub builds a hub; rdb may be nil for single-instance delivery.
func NewHub(rdb redis.UniversalClient, logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		redis:   rdb,
		logger:  logger,
		metrics: m,
		clients: make(map[string]map[*client]struct{}),
	}
}

// Register attaches conn to uid and starts its writer. The returned
// function detaches it, closes conn and waits for the writer to exit. It
// must be called once the connection is done.
func (h *Hub) Register(uid string, conn Conn) (unregister func()) {
	c := &client{uid: uid, conn: conn, send: make(chan Event, sendBuffer)}

	h.mu.Lock()
	if h.clients[uid] == nil {
		h.clients[uid] = make(map[*client]struct{})
	}
	h.clients[uid][c] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.RealtimeClients.Inc()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range c.send {
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed", "uid", uid, "error", err)
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients[uid], c)
			if len(h.clients[uid]) == 0 {
				delete(h.clients, uid)
			}
			close(c.send)
			h.mu.Unlock()
			// A peer that stopped reading can hold the writer in WriteJSON.
			if err := conn.Close(); err != nil {
				h.logger.Debug("websocket close failed", "uid", uid, "error", err)
			}
			<-done
			if h.metrics != nil {
				h.metrics.RealtimeClients.Dec()
			}
		})
	}
}

// Publish routes ev to its recipients, through Redis when configured.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if h.redis == nil {
		h.deliver(ev)
		return nil
	}
	data, err := json.Marshal(wire{Event: ev, Recipients: ev.Recipients})
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, Channel, data).Err()
}

// deliver hands ev to every local connection of its recipients. A client
// whose buffer is full misses the event rather than blocking the hub.
func (h *Hub) deliver(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, uid := range ev.Recipients {
		for c := range h.clients[uid] {
			select {
			case c.send <- ev:
			default:
				h.logger.Warn("dropping realtime event for slow client", "uid", uid)
			}
		}
	}
}

// Run consumes the Redis channel until ctx is done, reconnecting with
// backoff. Without Redis it just waits.
func (h *Hub) Run(ctx context.Context) error {
	if h.redis == nil {
		<-ctx.Done()
		return nil
	}

	backoff := time.Second
	for ctx.Err() == nil {
		err := h.subscribe(ctx)
		if ctx.Err() != nil {
			return nil
		}
		h.logger.Warn("realtime subscriber stopped, retrying", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
	return nil
}

func (h *Hub) subscribe(ctx context.Context) error {
	pubsub := h.redis.Subscribe(ctx, Channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	h.logger.Info("realtime subscriber started", "channel", Channel)

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		var w wire
		if err := json.Unmarshal([]byte(msg.Payload), &w); err != nil {
			h.logger.Warn("bad realtime payload", "error", err)
			continue
		}
		w.Event.Recipients = w.Recipients
		h.deliver(w.Event)
	}
}
