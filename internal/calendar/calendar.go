// Package calendar connects a principal's Google Calendar through a
// server-side OAuth flow. Tokens are stored sealed and never returned to
// clients.
package calendar

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	Scope           = gcal.CalendarEventsScope
	DefaultTimeZone = "Asia/Kuala_Lumpur"
	DefaultTitle    = "Journal Entry"
	DefaultMax      = 10
	maxEvents       = 250
	primaryCalendar = "primary"
)

var ErrEventNotFound = errors.New("calendar event not found")

// Event is the client-facing view of a calendar event.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day,omitempty"`
	Link        string    `json:"html_link,omitempty"`
}

// EventInput is what clients send to create or replace an event.
type EventInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	TimeZone    string    `json:"time_zone"`
}

func (in EventInput) Validate() error {
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return errors.New("start_time and end_time are required")
	}
	if in.EndTime.Before(in.StartTime) {
		return errors.New("end_time must not be before start_time")
	}
	return nil
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Service struct {
	oauth    *oauth2.Config
	states   StateStore
	tokens   TokenStore
	endpoint string
	now      func() time.Time
}

type Option func(*Service)

// WithEndpoint points Calendar API calls somewhere other than Google.
func WithEndpoint(u string) Option {
	return func(s *Service) { s.endpoint = u }
}

// WithOAuthEndpoint overrides Google's authorization and token URLs.
func WithOAuthEndpoint(e oauth2.Endpoint) Option {
	return func(s *Service) { s.oauth.Endpoint = e }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(c Config, states StateStore, tokens TokenStore, opts ...Option) *Service {
	s := &Service{
		oauth: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{Scope},
		},
		states: states,
		tokens: tokens,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuthURL starts a consent flow for uid and returns the Google URL to visit.
func (s *Service) AuthURL(ctx context.Context, uid string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	if err := s.states.Put(ctx, state, uid); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Complete finishes the flow started by AuthURL and returns the principal
// it belongs to.
func (s *Service) Complete(ctx context.Context, state, code string) (string, error) {
	if state == "" || code == "" {
		return "", ErrStateInvalid
	}
	uid, err := s.states.Take(ctx, state)
	if err != nil {
		return "", err
	}
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange oauth code: %w", err)
	}
	if err := s.tokens.Put(ctx, uid, tok); err != nil {
		return "", fmt.Errorf("save calendar token: %w", err)
	}
	return uid, nil
}

func (s *Service) Connected(ctx context.Context, uid string) (bool, error) {
	_, err := s.tokens.Get(ctx, uid)
	if errors.Is(err, ErrNotConnected) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) Disconnect(ctx context.Context, uid string) error {
	return s.tokens.Delete(ctx, uid)
}

// ListEvents returns upcoming events on the primary calendar.
func (s *Service) ListEvents(ctx context.Context, uid string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultMax
	}
	if limit > maxEvents {
		limit = maxEvents
	}
	var events []Event
	err := s.call(ctx, uid, func(api *gcal.Service) error {
		res, err := api.Events.List(primaryCalendar).
			TimeMin(s.now().Format(time.RFC3339)).
			MaxResults(int64(limit)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		events = make([]Event, 0, len(res.Items))
		for _, item := range res.Items {
			events = append(events, fromAPI(item))
		}
		return nil
	})
	return events, err
}

func (s *Service) CreateEvent(ctx context.Context, uid string, in EventInput) (Event, error) {
	if in.Title == "" {
		in.Title = DefaultTitle
	}
	ev := toAPI(in)
	ev.Reminders = &gcal.EventReminders{UseDefault: true}

	var out Event
	err := s.call(ctx, uid, func(api *gcal.Service) error {
		created, err := api.Events.Insert(primaryCalendar, ev).Context(ctx).Do()
		if err != nil {
			return err
		}
		out = fromAPI(created)
		return nil
	})
	return out, err
}

func (s *Service) UpdateEvent(ctx context.Context, uid, eventID string, in EventInput) (Event, error) {
	var out Event
	err := s.call(ctx, uid, func(api *gcal.Service) error {
		updated, err := api.Events.Update(primaryCalendar, eventID, toAPI(in)).Context(ctx).Do()
		if err != nil {
			return err
		}
		out = fromAPI(updated)
		return nil
	})
	return out, err
}

func (s *Service) DeleteEvent(ctx context.Context, uid, eventID string) error {
	return s.call(ctx, uid, func(api *gcal.Service) error {
		return api.Events.Delete(primaryCalendar, eventID).Context(ctx).Do()
	})
}

// call runs fn with a Calendar client for uid and persists the token
// afterwards if it was refreshed.
func (s *Service) call(ctx context.Context, uid string, fn func(*gcal.Service) error) error {
	tok, err := s.tokens.Get(ctx, uid)
	if err != nil {
		return err
	}
	src := &trackingSource{base: s.oauth.TokenSource(ctx, tok), last: tok.AccessToken}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, src))}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	api, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("calendar client: %w", err)
	}

	callErr := fn(api)
	if refreshed := src.refreshed(); refreshed != nil {
		if err := s.tokens.Put(ctx, uid, refreshed); err != nil && callErr == nil {
			callErr = fmt.Errorf("save refreshed calendar token: %w", err)
		}
	}
	return translate(callErr)
}

func translate(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound, http.StatusGone:
			return ErrEventNotFound
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrNotConnected, gerr.Message)
		}
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%w: %s", ErrNotConnected, rerr.ErrorCode)
	}
	return err
}

// trackingSource remembers the newest token handed out so a refresh can be
// written back to the TokenStore.
type trackingSource struct {
	base oauth2.TokenSource
	last string

	mu     sync.Mutex
	latest *oauth2.Token
}

func (t *trackingSource) Token() (*oauth2.Token, error) {
	tok, err := t.base.Token()
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	if tok.AccessToken != t.last {
		t.latest = tok
	}
	t.mu.Unlock()
	return tok, nil
}

func (t *trackingSource) refreshed() *oauth2.Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

func toAPI(in EventInput) *gcal.Event {
	tz := in.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}
	return &gcal.Event{
		Summary:     in.Title,
		Description: in.Description,
		Start:       &gcal.EventDateTime{DateTime: in.StartTime.Format(time.RFC3339), TimeZone: tz},
		End:         &gcal.EventDateTime{DateTime: in.EndTime.Format(time.RFC3339), TimeZone: tz},
	}
}

func fromAPI(ev *gcal.Event) Event {
	out := Event{
		ID:          ev.Id,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Link:        ev.HtmlLink,
	}
	out.StartTime, out.AllDay = eventTime(ev.Start)
	out.EndTime, _ = eventTime(ev.End)
	return out
}

func eventTime(dt *gcal.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, _ := time.Parse(time.RFC3339, dt.DateTime)
		return t, false
	}
	if dt.Date != "" {
		t, _ := time.Parse(time.DateOnly, dt.Date)
		return t, true
	}
	return time.Time{}, false
}
