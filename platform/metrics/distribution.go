// Package metrics exposes Prometheus collectors for lead distribution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DistributionMetrics records distribution outcomes and sweep runs.
type DistributionMetrics struct {
	outcomes      *prometheus.CounterVec
	claims        *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweepResolved prometheus.Counter
}

// NewDistributionMetrics registers the collectors on reg. A nil registerer
// yields a no-op recorder.
func NewDistributionMetrics(reg prometheus.Registerer) *DistributionMetrics {
	if reg == nil {
		return &DistributionMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_distribution_outcomes_total",
		Help: "Lead distribution outcomes by kind.",
	}, []string{"outcome"})
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_claim_attempts_total",
		Help: "Claim attempts by result.",
	}, []string{"result"})
	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lead_claim_sweep_duration_seconds",
		Help:    "Duration of claim expiry sweeps.",
		Buckets: prometheus.DefBuckets,
	})
	sweepResolved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lead_claim_sweep_resolved_total",
		Help: "Expired reservations closed by the sweep.",
	})
	reg.MustRegister(outcomes, claims, sweepDuration, sweepResolved)
	return &DistributionMetrics{
		outcomes:      outcomes,
		claims:        claims,
		sweepDuration: sweepDuration,
		sweepResolved: sweepResolved,
	}
}

// IncOutcome counts a distribution outcome such as "reserved" or "escalated".
func (m *DistributionMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncClaim counts a claim attempt result.
func (m *DistributionMetrics) IncClaim(result string) {
	if m == nil || m.claims == nil {
		return
	}
	m.claims.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveSweep records one sweep run.
func (m *DistributionMetrics) ObserveSweep(duration time.Duration, resolved int) {
	if m == nil || m.sweepDuration == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	m.sweepResolved.Add(float64(resolved))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
