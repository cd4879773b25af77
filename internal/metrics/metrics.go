// Package metrics holds the Prometheus collectors for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	AuthFailures     *prometheus.CounterVec
	RateLimited      prometheus.Counter
	PointsFailures   prometheus.Counter
	AlertsCreated    prometheus.Counter
	SOSTriggered     prometheus.Counter
	RealtimeClients  prometheus.Gauge
	CalendarRequests *prometheus.CounterVec
}

// New registers every collector on a private registry, so several instances
// can coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "empower_http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		}, []string{"route", "method", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "empower_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method"}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "empower_auth_failures_total",
			Help: "Rejected requests by failure kind (missing, rejected)",
		}, []string{"kind"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "empower_rate_limited_total",
			Help: "Requests refused by the rate limiter",
		}),
		PointsFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "empower_points_increment_failures_total",
			Help: "Best-effort point increments that failed",
		}),
		AlertsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "empower_safety_alerts_created_total",
			Help: "Safety alerts recorded",
		}),
		SOSTriggered: f.NewCounter(prometheus.CounterOpts{
			Name: "empower_sos_triggered_total",
			Help: "Safety timers and panic requests that reached the triggered state",
		}),
		RealtimeClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "empower_realtime_clients",
			Help: "Open safety websocket connections",
		}),
		CalendarRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "empower_calendar_requests_total",
			Help: "Google Calendar API calls by operation and outcome",
		}, []string{"op", "outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(route, method string, status int, start time.Time) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncAuthFailure(kind string) { m.AuthFailures.WithLabelValues(kind).Inc() }

func (m *Metrics) IncCalendar(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CalendarRequests.WithLabelValues(op, outcome).Inc()
}
