package manager

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/sentinel/pkg/audit"
	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/compliance/engine"
	"mercator-hq/sentinel/pkg/compliance/violations"
	"mercator-hq/sentinel/pkg/events"
	"mercator-hq/sentinel/pkg/retention"
	"mercator-hq/sentinel/pkg/statestore"
)

// MetricsRecorder receives measurements from every component the manager
// owns. It is satisfied by the Prometheus collector in
// pkg/telemetry/metrics.
type MetricsRecorder interface {
	engine.MetricsRecorder
	retention.MetricsRecorder
	RecordCheck(result *compliance.Result)
}

// Config contains configuration and dependencies for a Manager. Every
// dependency is optional; missing ones are replaced with in-memory
// implementations.
type Config struct {
	// Engine configures rule evaluation. Nil uses engine.DefaultEngineConfig.
	Engine *engine.EngineConfig

	// Audit configures the audit trail. Nil uses audit.DefaultConfig.
	Audit *audit.Config

	// ViolationCapacity bounds the default in-memory violation store.
	// Ignored when Violations is set. Zero means unbounded.
	ViolationCapacity int

	// RejectInvalidActions makes CheckCompliance refuse actions whose
	// payload does not match the schema registered for their type.
	RejectInvalidActions bool

	// StateStore persists audit entries. Nil keeps them in memory only.
	StateStore statestore.Store

	// Violations stores detected violations.
	Violations violations.Store

	// Dataset is the data the retention engine sweeps.
	Dataset retention.Dataset

	// Archiver receives records the retention engine archives.
	Archiver retention.Archiver

	// Events receives compliance signals. Nil creates a private bus,
	// available through Manager.Events.
	Events *events.Bus

	// Schemas validates action payloads per action type.
	Schemas *compliance.SchemaRegistry

	// Tracer opens spans around checks, sweeps and reports. Nil uses a
	// noop tracer.
	Tracer trace.Tracer

	Metrics MetricsRecorder
	Logger  *slog.Logger
}
