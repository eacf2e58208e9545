package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors the platform exports.
type Metrics struct {
	// HTTP request duration histogram with method, route, and status labels.
	RequestDuration *prometheus.HistogramVec
	// Login attempts counter labelled success/failure.
	LoginAttempts *prometheus.CounterVec
	// Suspicious-login verdicts counter labelled by risk level.
	LoginVerdicts *prometheus.CounterVec
	// Session lifecycle counter labelled created/refreshed/terminated/evicted.
	SessionEvents *prometheus.CounterVec
	// Database query duration histogram with query name and status labels.
	DBQueryDuration *prometheus.HistogramVec
	// Outbox events published to the broker.
	OutboxPublished prometheus.Counter
}

// NewMetrics builds and registers the collectors on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "staffhub_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds.",
		},
			[]string{"method", "route", "status"},
		),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffhub_login_attempts_total",
			Help: "Total number of login attempts.",
		},
			[]string{"status"},
		),
		LoginVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffhub_login_verdicts_total",
			Help: "Suspicious-login verdicts by risk level.",
		},
			[]string{"risk_level"},
		),
		SessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffhub_session_events_total",
			Help: "Session lifecycle events.",
		},
			[]string{"event"},
		),
		DBQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staffhub_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
			[]string{"query", "status"},
		),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staffhub_outbox_published_total",
			Help: "Activity events shipped from the outbox to the broker.",
		}),
	}
	reg.MustRegister(
		m.RequestDuration,
		m.LoginAttempts,
		m.LoginVerdicts,
		m.SessionEvents,
		m.DBQueryDuration,
		m.OutboxPublished,
	)
	return m
}

// ObserveDB records one query's duration and outcome.
func (m *Metrics) ObserveDB(query string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.DBQueryDuration.WithLabelValues(query, status).Observe(time.Since(start).Seconds())
}
