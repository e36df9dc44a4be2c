// Package metrics exposes compliance engine measurements to Prometheus.
//
// # Metrics
//
//   - Rule metrics: evaluations by rule and outcome, evaluation latency
//   - Check metrics: checks by outcome, check latency, violations by type
//     and severity, response action results
//   - Retention metrics: records archived and deleted per policy, sweep
//     errors and latency
//   - Audit metrics: trail size and persistence counters, read from the
//     trail on every scrape
//
// # Usage
//
//	collector := metrics.NewCollector(metrics.DefaultConfig(), nil)
//
//	mgr, err := manager.New(manager.Config{Metrics: collector})
//	collector.RegisterAuditStats(mgr.AuditStats)
//
//	http.Handle("/metrics", collector.Handler())
//
// Rule and policy ids are label values. Once MaxCardinality distinct ids
// have been seen, further ids are reported as "other".
package metrics
