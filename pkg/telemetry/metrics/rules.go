package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RuleMetrics tracks per-rule evaluation.
//
// Metrics:
//   - sentinel_compliance_rule_evaluations_total: evaluations by rule and outcome
//   - sentinel_compliance_rule_evaluation_duration_seconds: evaluation latency by rule
type RuleMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
}

// NewRuleMetrics creates and registers rule metrics.
func NewRuleMetrics(cfg *Config, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations",
			},
			[]string{"rule_id", "outcome"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluation_duration_seconds",
				Help:      "Duration of rule evaluation in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"rule_id"},
		),
	}

	registry.MustRegister(rm.evaluationsTotal, rm.evaluationDuration)
	return rm
}

// RecordEvaluation records one rule evaluation. The outcome label is
// "violated" or "passed".
func (rm *RuleMetrics) RecordEvaluation(ruleID string, violated bool, duration time.Duration) {
	outcome := "passed"
	if violated {
		outcome = "violated"
	}
	rm.evaluationsTotal.WithLabelValues(ruleID, outcome).Inc()
	rm.evaluationDuration.WithLabelValues(ruleID).Observe(duration.Seconds())
}
