package safety

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// DefaultSOSPhone receives the message when no phone is configured.
const DefaultSOSPhone = "60123456789"

var ErrNoLocation = errors.New("location unavailable")

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator queries the device position once.
type Locator interface {
	Locate(ctx context.Context) (Location, error)
}

// Messenger opens an external messaging URL.
type Messenger interface {
	Open(ctx context.Context, rawURL string) error
}

func MapLink(loc Location) string {
	return "https://www.google.com/maps?q=" + formatCoord(loc.Latitude) + "," + formatCoord(loc.Longitude)
}

func SOSMessage(loc Location) string {
	return "EMERGENCY: I need help. My location: " + MapLink(loc)
}

// WhatsAppURL builds a wa.me link with the message pre-filled.
func WhatsAppURL(phone, message string) string {
	phone = strings.TrimLeft(strings.TrimSpace(phone), "+")
	if phone == "" {
		phone = DefaultSOSPhone
	}
	return "https://wa.me/" + phone + "?text=" + strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}

func formatCoord(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// Responder handles the Triggered state: locate once, then hand the SOS
// link to the messenger. When the position cannot be read the last known
// one is used instead.
type Responder struct {
	Locator   Locator
	Messenger Messenger
	Phone     string

	mu   sync.Mutex
	last *Location
}

// Remember records a known position for later fallback.
func (r *Responder) Remember(loc Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &loc
}

// Respond returns the location used, or ErrNoLocation when neither a fresh
// nor a remembered position exists.
func (r *Responder) Respond(ctx context.Context) (Location, error) {
	loc, err := r.Locator.Locate(ctx)
	if err == nil {
		r.Remember(loc)
	} else {
		r.mu.Lock()
		last := r.last
		r.mu.Unlock()
		if last == nil {
			return Location{}, fmt.Errorf("%w: %v", ErrNoLocation, err)
		}
		loc = *last
	}

	if err := r.Messenger.Open(ctx, WhatsAppURL(r.Phone, SOSMessage(loc))); err != nil {
		return loc, fmt.Errorf("open messenger: %w", err)
	}
	return loc, nil
}
