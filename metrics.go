package gourdianauth

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "gourdianauth"

// Outcome labels used by Metrics.
const (
	resultSuccess  = "success"
	resultFailure  = "failure"
	resultMismatch = "identity_mismatch"
	resultError    = "error"
)

// Metrics holds the Prometheus collectors for the token engine. A nil *Metrics
// records nothing.
type Metrics struct {
	tokensIssued  prometheus.Counter
	rotations     *prometheus.CounterVec
	verifications *prometheus.CounterVec
	purged        prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "token_pairs_issued_total",
			Help:      "Token pairs issued by login or rotation.",
		}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rotations_total",
			Help:      "Refresh token rotation attempts by result.",
		}, []string{"result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verifications_total",
			Help:      "Access token verifications by result.",
		}, []string{"result"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_purged_total",
			Help:      "Expired refresh sessions removed by purge.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.tokensIssued, m.rotations, m.verifications, m.purged} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) pairIssued() {
	if m == nil {
		return
	}
	m.tokensIssued.Inc()
}

func (m *Metrics) rotation(result string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(result).Inc()
}

func (m *Metrics) verification(ok bool) {
	if m == nil {
		return
	}
	result := resultSuccess
	if !ok {
		result = resultFailure
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) sessionsPurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}
