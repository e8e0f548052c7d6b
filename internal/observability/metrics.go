package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/movie-auth-gateway/auth"
)

// Metrics holds the Prometheus collectors for the gateway
type Metrics struct {
	AuthOutcomes    *prometheus.CounterVec
	KeyRefreshes    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers all collectors on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		AuthOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movieauth_authentication_outcomes_total",
				Help: "Authentication outcomes by scheme, result and failure reason",
			},
			[]string{"scheme", "result", "reason"},
		),
		KeyRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movieauth_sso_key_refreshes_total",
				Help: "Identity provider key set fetch attempts",
			},
			[]string{"success"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "movieauth_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		gatherer: registry,
	}
}

// RecordOutcome implements auth.OutcomeRecorder
func (m *Metrics) RecordOutcome(outcome auth.Outcome) {
	result := "rejected"
	if outcome.Accepted {
		result = "accepted"
	}
	m.AuthOutcomes.WithLabelValues(string(outcome.Scheme), result, string(outcome.Reason)).Inc()
}

// RecordKeyRefresh counts a key set fetch attempt
func (m *Metrics) RecordKeyRefresh(success bool) {
	m.KeyRefreshes.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// ObserveRequest records the duration of a served request
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Handler serves the registered collectors in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
