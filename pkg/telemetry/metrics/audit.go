package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/sentinel/pkg/audit"
)

// RegisterAuditStats exposes audit trail counters read from stats on every
// scrape. Only the first call registers.
func (c *Collector) RegisterAuditStats(stats func() audit.Stats) {
	c.auditOnce.Do(func() {
		opts := func(name, help string) prometheus.GaugeOpts {
			return prometheus.GaugeOpts{
				Namespace: c.config.Namespace,
				Subsystem: c.config.Subsystem,
				Name:      name,
				Help:      help,
			}
		}
		counterOpts := func(name, help string) prometheus.CounterOpts {
			return prometheus.CounterOpts(opts(name, help))
		}

		c.registry.MustRegister(
			prometheus.NewGaugeFunc(opts("audit_trail_size", "Number of audit entries held in memory"),
				func() float64 { return float64(stats().Size) }),
			prometheus.NewCounterFunc(counterOpts("audit_entries_total", "Total number of audit entries appended"),
				func() float64 { return float64(stats().Appended) }),
			prometheus.NewCounterFunc(counterOpts("audit_evicted_total", "Total number of audit entries evicted from memory"),
				func() float64 { return float64(stats().Evicted) }),
			prometheus.NewCounterFunc(counterOpts("audit_persisted_total", "Total number of audit entries persisted"),
				func() float64 { return float64(stats().Persisted) }),
			prometheus.NewCounterFunc(counterOpts("audit_persist_failures_total", "Total number of failed audit persistence writes"),
				func() float64 { return float64(stats().PersistFailures) }),
			prometheus.NewCounterFunc(counterOpts("audit_dropped_total", "Total number of audit entries not queued for persistence"),
				func() float64 { return float64(stats().Dropped) }),
		)
	})
}
