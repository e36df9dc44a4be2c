package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RetentionMetrics tracks retention sweeps.
//
// Metrics:
//   - sentinel_compliance_retention_records_total: records archived or deleted by policy
//   - sentinel_compliance_retention_errors_total: policy errors
//   - sentinel_compliance_retention_duration_seconds: per-policy sweep latency
type RetentionMetrics struct {
	recordsTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewRetentionMetrics creates and registers retention metrics.
func NewRetentionMetrics(cfg *Config, registry *prometheus.Registry) *RetentionMetrics {
	rm := &RetentionMetrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retention_records_total",
				Help:      "Total number of records archived or deleted by retention policies",
			},
			[]string{"policy_id", "operation"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retention_errors_total",
				Help:      "Total number of retention policy errors",
			},
			[]string{"policy_id"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retention_duration_seconds",
				Help:      "Duration of a retention policy run in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
			},
			[]string{"policy_id"},
		),
	}

	registry.MustRegister(rm.recordsTotal, rm.errorsTotal, rm.duration)
	return rm
}

// RecordResult records one policy run.
func (rm *RetentionMetrics) RecordResult(policyID string, archived, deleted, errors int, duration time.Duration) {
	rm.recordsTotal.WithLabelValues(policyID, "archived").Add(float64(archived))
	rm.recordsTotal.WithLabelValues(policyID, "deleted").Add(float64(deleted))
	if errors > 0 {
		rm.errorsTotal.WithLabelValues(policyID).Add(float64(errors))
	}
	rm.duration.WithLabelValues(policyID).Observe(duration.Seconds())
}
