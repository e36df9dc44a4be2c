package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckMetrics tracks compliance checks and what they produced.
//
// Metrics:
//   - sentinel_compliance_checks_total: checks by outcome (compliant, violation, blocked)
//   - sentinel_compliance_check_duration_seconds: check latency
//   - sentinel_compliance_violations_total: violations by rule type and severity
//   - sentinel_compliance_actions_total: response actions by type and status
type CheckMetrics struct {
	checksTotal     *prometheus.CounterVec
	checkDuration   prometheus.Histogram
	violationsTotal *prometheus.CounterVec
	actionsTotal    *prometheus.CounterVec
}

// NewCheckMetrics creates and registers check metrics.
func NewCheckMetrics(cfg *Config, registry *prometheus.Registry) *CheckMetrics {
	cm := &CheckMetrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "checks_total",
				Help:      "Total number of compliance checks by outcome",
			},
			[]string{"outcome"},
		),

		checkDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "check_duration_seconds",
				Help:      "Duration of compliance checks in seconds",
				Buckets:   cfg.DurationBuckets,
			},
		),

		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "violations_total",
				Help:      "Total number of detected violations",
			},
			[]string{"type", "severity"},
		),

		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "actions_total",
				Help:      "Total number of executed response actions",
			},
			[]string{"action_type", "status"},
		),
	}

	registry.MustRegister(cm.checksTotal, cm.checkDuration, cm.violationsTotal, cm.actionsTotal)
	return cm
}

// RecordCheck records a completed check.
func (cm *CheckMetrics) RecordCheck(outcome string, duration time.Duration) {
	cm.checksTotal.WithLabelValues(outcome).Inc()
	cm.checkDuration.Observe(duration.Seconds())
}

// RecordViolation records a detected violation.
func (cm *CheckMetrics) RecordViolation(ruleType, severity string) {
	cm.violationsTotal.WithLabelValues(ruleType, severity).Inc()
}

// RecordAction records a response action result.
func (cm *CheckMetrics) RecordAction(actionType string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	cm.actionsTotal.WithLabelValues(actionType, status).Inc()
}
