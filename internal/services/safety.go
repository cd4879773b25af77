package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AnshRaj112/empowerment-backend/internal/metrics"
	"github.com/AnshRaj112/empowerment-backend/internal/models"
	"github.com/AnshRaj112/empowerment-backend/internal/realtime"
	"github.com/AnshRaj112/empowerment-backend/internal/safety"
	"github.com/AnshRaj112/empowerment-backend/internal/store"
)

// Alert types
const (
	AlertSOS   = "sos"
	AlertTimer = "timer"
)

const (
	alertActive       = "active"
	noLocationMessage = "EMERGENCY: I need help."
)

var errLocationNotReported = errors.New("request carried no coordinates")

// Publisher delivers realtime events.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// SOSResult is returned to the client that raised an SOS.
type SOSResult struct {
	Alert       models.Record    `json:"alert"`
	WhatsAppURL string           `json:"whatsapp_url"`
	Location    *safety.Location `json:"location,omitempty"`
	Timer       safety.Status    `json:"timer"`
}

// SafetyService records alerts, notifies family members and owns the
// server-side check-in timers.
type SafetyService struct {
	store   store.Store
	hub     Publisher
	timers  *safety.Manager
	phone   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewSafetyService(st store.Store, hub Publisher, timer time.Duration, phone string, logger *slog.Logger, m *metrics.Metrics) *SafetyService {
	s := &SafetyService{store: st, hub: hub, phone: phone, logger: logger, metrics: m}
	s.timers = safety.NewManager(timer, s.timerFired)
	return s
}

// Timers exposes the manager so the server can drive its ticker.
func (s *SafetyService) Timers() *safety.Manager { return s.timers }

func (s *SafetyService) TimerStatus(uid string) safety.Status { return s.timers.Status(uid) }
func (s *SafetyService) StartTimer(uid string) safety.Status { return s.timers.Start(uid) }
func (s *SafetyService) StopTimer(uid string) safety.Status { return s.timers.Stop(uid) }
func (s *SafetyService) CheckIn(uid string) safety.Status { return s.timers.CheckIn(uid) }

// CreateAlert records an alert and pushes it to uid and their family.
// Coordinates, when present, fill in map_link and a default message.
func (s *SafetyService) CreateAlert(ctx context.Context, uid string, body map[string]any) (models.Record, error) {
	rec, err := models.SafetyAlerts.Sanitize(body, false)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, uid, rec, locationOf(rec), realtime.EventAlert)
}

// SOS moves the principal's timer to triggered and records an alert. A
// missing location falls back to the last one on record.
func (s *SafetyService) SOS(ctx context.Context, uid string, body map[string]any) (SOSResult, error) {
	rec, err := models.SafetyAlerts.Sanitize(body, false)
	if err != nil {
		return SOSResult{}, err
	}
	status := s.timers.Panic(uid)
	if s.metrics != nil {
		s.metrics.SOSTriggered.Inc()
	}

	rec["alert_type"] = AlertSOS
	loc, link := s.respond(ctx, uid, locationOf(rec))
	alert, err := s.record(ctx, uid, rec, loc, realtime.EventAlert)
	if err != nil {
		return SOSResult{}, err
	}
	return SOSResult{Alert: alert, WhatsAppURL: link, Location: loc, Timer: status}, nil
}

// timerFired runs when a check-in timer reaches zero without a check-in.
func (s *SafetyService) timerFired(ctx context.Context, uid string) {
	if s.metrics != nil {
		s.metrics.SOSTriggered.Inc()
	}
	loc, _ := s.respond(ctx, uid, nil)
	rec := models.Record{"alert_type": AlertTimer}
	if _, err := s.record(ctx, uid, rec, loc, realtime.EventTriggered); err != nil {
		s.logger.ErrorContext(ctx, "safety timer alert not recorded", "uid", uid, "error", err)
		return
	}
	s.logger.WarnContext(ctx, "safety timer triggered", "uid", uid, "located", loc != nil)
}

// respond resolves the location to report and the pre-filled WhatsApp link.
func (s *SafetyService) respond(ctx context.Context, uid string, reported *safety.Location) (*safety.Location, string) {
	links := &linkRecorder{}
	r := &safety.Responder{Locator: reportedLocation{reported}, Messenger: links, Phone: s.phone}
	if reported == nil {
		if last := s.lastKnownLocation(ctx, uid); last != nil {
			r.Remember(*last)
		}
	}

	loc, err := r.Respond(ctx)
	if errors.Is(err, safety.ErrNoLocation) {
		s.logger.WarnContext(ctx, "sos without location", "uid", uid)
		return nil, safety.WhatsAppURL(s.phone, noLocationMessage)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "sos link not prepared", "uid", uid, "error", err)
	}
	return &loc, links.url
}

func (s *SafetyService) lastKnownLocation(ctx context.Context, uid string) *safety.Location {
	alerts, err := s.store.List(ctx, models.SafetyAlerts, uid, store.ListOptions{})
	if err != nil {
		s.logger.WarnContext(ctx, "last known location unavailable", "uid", uid, "error", err)
		return nil
	}
	for _, a := range alerts {
		if loc := locationOf(a); loc != nil {
			return loc
		}
	}
	return nil
}

func (s *SafetyService) record(ctx context.Context, uid string, rec models.Record, loc *safety.Location, eventType string) (models.Record, error) {
	if rec.String("alert_type") == "" {
		rec["alert_type"] = AlertSOS
	}
	if rec.String("status") == "" {
		rec["status"] = alertActive
	}
	if loc != nil {
		rec["latitude"] = loc.Latitude
		rec["longitude"] = loc.Longitude
		rec["map_link"] = safety.MapLink(*loc)
		if rec.String("message") == "" {
			rec["message"] = safety.SOSMessage(*loc)
		}
	} else if rec.String("message") == "" {
		rec["message"] = noLocationMessage
	}

	alert, err := s.store.Create(ctx, models.SafetyAlerts, uid, rec)
	if err != nil {
		return nil, storeError(models.SafetyAlerts, err)
	}
	if s.metrics != nil {
		s.metrics.AlertsCreated.Inc()
	}
	s.notify(ctx, uid, eventType, alert)
	return alert, nil
}

// notify is best-effort: the alert is already stored.
func (s *SafetyService) notify(ctx context.Context, uid, eventType string, alert models.Record) {
	if s.hub == nil {
		return
	}
	recipients := []string{uid}
	family, err := s.store.FamilyMemberUIDs(ctx, uid)
	if err != nil {
		s.logger.WarnContext(ctx, "family lookup failed", "uid", uid, "error", err)
	}
	recipients = append(recipients, family...)

	err = s.hub.Publish(ctx, realtime.Event{
		Type:       eventType,
		From:       uid,
		Recipients: recipients,
		Alert:      alert,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "alert not published", "uid", uid, "error", err)
	}
}

func locationOf(rec models.Record) *safety.Location {
	lat, latOK := rec["latitude"].(float64)
	lon, lonOK := rec["longitude"].(float64)
	if !latOK || !lonOK {
		return nil
	}
	return &safety.Location{Latitude: lat, Longitude: lon}
}

type reportedLocation struct{ loc *safety.Location }

func (r reportedLocation) Locate(context.Context) (safety.Location, error) {
	if r.loc == nil {
		return safety.Location{}, errLocationNotReported
	}
	return *r.loc, nil
}

// linkRecorder keeps the SOS link for the client to open.
type linkRecorder struct{ url string }

func (l *linkRecorder) Open(_ context.Context, rawURL string) error {
	l.url = rawURL
	return nil
}
