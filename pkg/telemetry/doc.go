// Package telemetry groups the observability packages of the compliance
// service. It has no code of its own.
//
//   - logging: slog handlers built from configuration, with PII redaction
//     and trace ids on every record
//   - metrics: Prometheus collector for checks, rule evaluations, retention
//     sweeps and the audit trail, on an explicit registry
//   - tracing: OpenTelemetry tracer provider exporting over OTLP/gRPC, plus
//     span attribute helpers for checks and sweeps
//   - health: liveness and readiness probes with per-component checks
//
// Everything is wired in cmd/sentinel:
//
//	logger, _ := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	collector := metrics.NewCollector(metrics.DefaultConfig(), prometheus.NewRegistry())
//	tracer, _ := tracing.New(ctx, tracing.DefaultConfig(), version)
//	defer tracer.Shutdown(ctx)
package telemetry
