package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/AnshRaj112/empowerment-backend/internal/handlers"
	"github.com/AnshRaj112/empowerment-backend/internal/metrics"
	"github.com/AnshRaj112/empowerment-backend/internal/middleware"
	"github.com/AnshRaj112/empowerment-backend/internal/models"
	"github.com/AnshRaj112/empowerment-backend/internal/ratelimit"
)

type Options struct {
	ClientURL string
	Limiter   ratelimit.Limiter
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// New builds the router. Everything under /api is rate limited; all API
// routes except health and the OAuth callback require a verified token.
func New(h *handlers.Handler, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(opts.Logger))
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(opts.ClientURL))

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Handle("/metrics", opts.Metrics.Handler())
	r.Get("/ws/safety", h.SafetySocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.Limiter, opts.Logger, opts.Metrics))

		r.Get("/health", h.Health)
		r.Get("/calendar/callback", h.CalendarCallback)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.Verifier, opts.Logger, opts.Metrics))

			r.Get("/user/profile", h.GetProfile)
			r.Put("/user/profile", h.UpdateProfile)

			r.Route("/vault/documents", func(r chi.Router) {
				crud(r, h, models.VaultDocuments, true)
			})
			r.Post("/vault/upload", h.UploadDocument)

			r.Route("/journals", func(r chi.Router) {
				crud(r, h, models.Journals, false)
			})
			r.Route("/career/goals", func(r chi.Router) {
				crud(r, h, models.CareerGoals, false)
			})

			r.Route("/safety", func(r chi.Router) {
				r.Route("/contacts", func(r chi.Router) {
					crud(r, h, models.TrustedContacts, false)
				})
				r.Get("/alerts", h.ListRecords(models.SafetyAlerts))
				r.Post("/alerts", h.CreateAlert)
				r.Get("/timer", h.TimerStatus())
				r.Post("/timer/start", h.StartTimer())
				r.Post("/timer/stop", h.StopTimer())
				r.Post("/timer/checkin", h.CheckIn())
				r.Post("/sos", h.SOS)
			})

			r.Route("/family", func(r chi.Router) {
				r.Get("/groups", h.ListFamilyGroups)
				r.Post("/groups", h.CreateFamilyGroup)
				r.Get("/groups/{id}/tasks", h.ListFamilyTasks)
				r.Post("/groups/{id}/tasks", h.CreateFamilyTask)
				r.Put("/tasks/{id}", h.UpdateFamilyTask)
			})

			r.Route("/calendar", func(r chi.Router) {
				r.Get("/status", h.CalendarStatus)
				r.Get("/connect", h.CalendarConnect)
				r.Delete("/connection", h.CalendarDisconnect)
				r.Get("/events", h.ListCalendarEvents)
				r.Post("/events", h.CreateCalendarEvent)
				r.Put("/events/{id}", h.UpdateCalendarEvent)
				r.Delete("/events/{id}", h.DeleteCalendarEvent)
			})
		})
	})

	return r
}

// crud mounts list, create, update and delete for res; withGet adds a
// single-record read.
func crud(r chi.Router, h *handlers.Handler, res models.Resource, withGet bool) {
	r.Get("/", h.ListRecords(res))
	r.Post("/", h.CreateRecord(res))
	if withGet {
		r.Get("/{id}", h.GetRecord(res))
	}
	r.Put("/{id}", h.UpdateRecord(res))
	r.Delete("/{id}", h.DeleteRecord(res))
}
