// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for
// the member client.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the client.
// Pass to components that need to record metrics. A nil *Metrics records
// nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RetriesTotal    prometheus.Counter
	RenewalsTotal   *prometheus.CounterVec
	RenewalWaits    *prometheus.CounterVec
	SessionClears   *prometheus.CounterVec
	BootstrapTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "saccosphere",
				Name:      "api_requests_total",
				Help:      "Total API calls issued through the request gateway",
			},
			[]string{"status"}, // status=2xx/4xx/401/5xx/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "saccosphere",
				Name:      "api_request_duration_seconds",
				Help:      "Gateway request duration in seconds, including renewal and retry",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RetriesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "saccosphere",
				Name:      "api_retries_total",
				Help:      "Requests re-issued after a successful credential renewal",
			},
		),
		RenewalsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "saccosphere",
				Name:      "credential_renewals_total",
				Help:      "Renewal calls sent to the refresh endpoint",
			},
			[]string{"result"}, // result=success/failure
		),
		RenewalWaits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "saccosphere",
				Name:      "credential_renewal_waits_total",
				Help:      "Renewal requests answered without a new network call",
			},
			[]string{"reason"}, // reason=joined/already_renewed
		),
		SessionClears: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "saccosphere",
				Name:      "session_clears_total",
				Help:      "Times the local session was cleared",
			},
			[]string{"reason"}, // reason=renewal_failed/bootstrap/logout
		),
		BootstrapTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "saccosphere",
				Name:      "bootstrap_total",
				Help:      "Bootstrap outcomes",
			},
			[]string{"result"}, // result=authenticated/renewed/unauthenticated/aborted
		),
	}
}

// ObserveRequest records one gateway call.
func (m *Metrics) ObserveRequest(method string, status int, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(StatusLabel(status, err)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// IncRetry records a re-issued request.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncRenewal records a renewal network call outcome.
func (m *Metrics) IncRenewal(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.RenewalsTotal.WithLabelValues(result).Inc()
}

// IncRenewalWait records a renewal request served without a network call.
func (m *Metrics) IncRenewalWait(reason string) {
	if m == nil {
		return
	}
	m.RenewalWaits.WithLabelValues(reason).Inc()
}

// IncSessionClear records a session clear.
func (m *Metrics) IncSessionClear(reason string) {
	if m == nil {
		return
	}
	m.SessionClears.WithLabelValues(reason).Inc()
}

// IncBootstrap records a bootstrap outcome.
func (m *Metrics) IncBootstrap(result string) {
	if m == nil {
		return
	}
	m.BootstrapTotal.WithLabelValues(result).Inc()
}

// StatusLabel buckets a status code into a low-cardinality label.
// 401 is kept separate because it drives renewal.
func StatusLabel(status int, err error) string {
	switch {
	case err != nil:
		return "error"
	case status == 401:
		return "401"
	case status >= 100 && status < 600:
		return strconv.Itoa(status/100) + "xx"
	default:
		return "unknown"
	}
}

// WriteTextfile writes the current metrics from g in Prometheus text format
// to path, for node_exporter's textfile collector or ad-hoc inspection.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
