// Package tracing sets up OpenTelemetry tracing for the sentinel service.
//
// New builds an SDK tracer provider that exports over OTLP gRPC with a
// parent-based sampler, and installs it with the W3C trace context
// propagator. When tracing is disabled the returned Tracer hands out a
// noop tracer, so callers always get a usable trace.Tracer:
//
//	tracer, err := tracing.New(ctx, cfg, version)
//	defer tracer.Shutdown(context.Background())
//
//	mgr, err := manager.New(manager.Config{Tracer: tracer.Tracer()})
//
// Spans opened by the manager carry the attributes defined in this
// package. The logging handler copies the active span's ids into every
// log record.
package tracing
