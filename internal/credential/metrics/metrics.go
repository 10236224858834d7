// Package metrics provides Prometheus metrics for the credential registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the registry collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	CredentialsIssued  prometheus.Counter
	CredentialsRevoked prometheus.Counter
	Rejections         *prometheus.CounterVec // by operation and reason
	ValidityChecks     *prometheus.CounterVec // by result: valid, invalid, missing

	StoreOpDuration *prometheus.HistogramVec // by operation
	TxLockWait      prometheus.Histogram
	EventsPublished *prometheus.CounterVec // by event type and outcome
	EventSinkOpen   prometheus.Gauge
}

// New registers the registry metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "vcreg_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		CredentialsRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "vcreg_credentials_revoked_total",
			Help: "Total number of successful revoke calls, including repeats",
		}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcreg_credential_rejections_total",
			Help: "Registry calls rejected by a precondition, by operation and reason",
		}, []string{"operation", "reason"}),
		ValidityChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcreg_validity_checks_total",
			Help: "Validity checks by result",
		}, []string{"result"}),
		StoreOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vcreg_store_operation_duration_seconds",
			Help:    "Duration of credential store operations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
		TxLockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vcreg_tx_lock_wait_seconds",
			Help:    "Time spent waiting for the in-memory per-key lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcreg_events_published_total",
			Help: "Credential lifecycle events by type and outcome",
		}, []string{"type", "outcome"}),
		EventSinkOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "vcreg_event_sink_circuit_open",
			Help: "1 while the event sink circuit breaker is open",
		}),
	}
}

func (m *Metrics) SetEventSinkOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.EventSinkOpen.Set(1)
		return
	}
	m.EventSinkOpen.Set(0)
}

func (m *Metrics) IncIssued() {
	if m == nil {
		return
	}
	m.CredentialsIssued.Inc()
}

func (m *Metrics) IncRevoked() {
	if m == nil {
		return
	}
	m.CredentialsRevoked.Inc()
}

func (m *Metrics) IncRejected(operation, reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(operation, reason).Inc()
}

// Validity check results.
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
	ResultMissing = "missing"
)

func (m *Metrics) IncValidityCheck(result string) {
	if m == nil {
		return
	}
	m.ValidityChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStoreOp(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.StoreOpDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) ObserveLockWait(seconds float64) {
	if m == nil {
		return
	}
	m.TxLockWait.Observe(seconds)
}

func (m *Metrics) IncEventPublished(eventType, outcome string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType, outcome).Inc()
}
