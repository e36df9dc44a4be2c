// Package manager wires the compliance components into one service object.
//
// A Manager owns the rule registry, the evaluation engine, the audit trail,
// the retention engine and the report generator. It is constructed once at
// process start and passed to whoever needs it; there is no global
// instance.
//
//	mgr, err := manager.New(manager.Config{
//	    StateStore: statestore.NewMemoryStore(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer mgr.Close()
//
//	if err := mgr.AddRule(rule); err != nil {
//	    return err
//	}
//	result, err := mgr.CheckCompliance(ctx, action, "tenant-1")
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/sentinel/pkg/audit"
	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/compliance/engine"
	"mercator-hq/sentinel/pkg/compliance/violations"
	"mercator-hq/sentinel/pkg/events"
	"mercator-hq/sentinel/pkg/report"
	"mercator-hq/sentinel/pkg/retention"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
)

// Metrics is a point-in-time view of the service counters.
type Metrics struct {
	RulesEvaluated         int64   `json:"rules_evaluated"`
	ViolationsDetected     int64   `json:"violations_detected"`
	ComplianceRate         float64 `json:"compliance_rate"`
	AuditTrailSize         int     `json:"audit_trail_size"`
	RetentionPoliciesCount int     `json:"retention_policies_count"`

	RulesCount     int   `json:"rules_count"`
	OpenViolations int64 `json:"open_violations"`
}

// Manager is the compliance service.
type Manager struct {
	config    Config
	registry  *engine.Registry
	engine    *engine.Engine
	store     violations.Store
	trail     *audit.Trail
	retention *retention.Engine
	reports   *report.Generator
	bus       *events.Bus
	ownsBus   bool
	schemas   *compliance.SchemaRegistry
	metrics   MetricsRecorder
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// New builds a Manager from config.
func New(config Config) (*Manager, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bus, ownsBus := config.Events, false
	if bus == nil {
		bus, ownsBus = events.NewBus(logger), true
	}

	store := config.Violations
	if store == nil {
		store = violations.NewMemoryStore(config.ViolationCapacity)
	}

	dataset := config.Dataset
	if dataset == nil {
		dataset = retention.NewMemoryDataset()
	}

	schemas := config.Schemas
	if schemas == nil {
		schemas = compliance.NewSchemaRegistry()
	}

	tracer := config.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(tracing.InstrumentationName)
	}

	registry := engine.NewRegistry(logger)
	executor := engine.NewExecutor(bus, logger)

	var engineMetrics engine.MetricsRecorder
	var retentionMetrics retention.MetricsRecorder
	if config.Metrics != nil {
		engineMetrics = config.Metrics
		retentionMetrics = config.Metrics
	}

	eng, err := engine.New(config.Engine, registry, executor, store,
		engine.WithLogger(logger),
		engine.WithMetrics(engineMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create compliance engine: %w", err)
	}

	trail, err := audit.NewTrail(config.Audit, config.StateStore, logger)
	if err != nil {
		return nil, fmt.Errorf("create audit trail: %w", err)
	}

	retentionOpts := []retention.Option{
		retention.WithLogger(logger),
		retention.WithMetrics(retentionMetrics),
	}
	if config.Archiver != nil {
		retentionOpts = append(retentionOpts, retention.WithArchiver(config.Archiver))
	}

	m := &Manager{
		config:    config,
		registry:  registry,
		engine:    eng,
		store:     store,
		trail:     trail,
		retention: retention.NewEngine(dataset, retentionOpts...),
		reports:   report.NewGenerator(registry, store, logger),
		bus:       bus,
		ownsBus:   ownsBus,
		schemas:   schemas,
		metrics:   config.Metrics,
		tracer:    tracer,
		logger:    logger.With("component", "manager"),
		now:       time.Now,
	}

	m.logger.Info("compliance manager started",
		"persistent_audit", config.StateStore != nil,
		"schemas", schemas.Len(),
	)
	return m, nil
}

// CheckCompliance evaluates an action against every enabled rule, appends
// the outcome to the audit trail and emits a complianceChecked event. An
// empty tenantID falls back to the action's tenant.
//
// The returned error is non-nil only when RejectInvalidActions is set and
// the action fails validation; rule failures never surface as errors.
func (m *Manager) CheckCompliance(ctx context.Context, action *compliance.Action, tenantID string) (*compliance.Result, error) {
	ctx, span := m.tracer.Start(ctx, "compliance.check",
		trace.WithAttributes(tracing.ActionAttributes(action, tenantID)...))
	defer span.End()

	if problems := compliance.ActionProblems(action, m.schemas); len(problems) > 0 {
		actionType := ""
		if action != nil {
			actionType = action.Type
		}
		if m.config.RejectInvalidActions {
			err := compliance.NewActionValidationError(actionType, problems)
			tracing.SetError(span, err)
			return nil, err
		}
		m.logger.WarnContext(ctx, "checking action that fails validation",
			"action_type", actionType,
			"problems", problems,
		)
	}

	result := m.engine.Check(ctx, action, tenantID)
	tracing.SetResultAttributes(span, result)
	m.trail.Log(ctx, action, result)

	if m.metrics != nil {
		m.metrics.RecordCheck(result)
	}

	m.bus.Emit(ctx, events.Event{
		Name:     events.ComplianceChecked,
		TenantID: result.TenantID,
		Action:   action.Clone(),
		Result:   result,
	})

	if !result.Compliant {
		m.logger.InfoContext(ctx, "compliance check found violations",
			"check_id", result.CheckID,
			"tenant_id", result.TenantID,
			"violations", len(result.Violations),
			"severity", result.Severity,
			"blocked", result.Blocked,
		)
	}
	return result, nil
}

// AddRule validates and registers a rule, replacing any rule with the same
// id. Invalid rules are rejected with a *compliance.ValidationError.
func (m *Manager) AddRule(rule *compliance.Rule) error {
	if problems := compliance.RuleProblems(rule); len(problems) > 0 {
		id := ""
		if rule != nil {
			id = rule.ID
		}
		return compliance.NewRuleValidationError(id, problems)
	}
	for _, w := range compliance.RuleWarnings(rule) {
		m.logger.Warn("compliance rule warning", "rule_id", rule.ID, "warning", w)
	}
	m.registry.Add(rule)
	return nil
}

// RemoveRule deletes a rule and reports whether it existed.
func (m *Manager) RemoveRule(id string) bool {
	return m.registry.Remove(id)
}

// UpdateRule merges a partial change into a rule. It returns
// compliance.ErrRuleNotFound for an unknown id and a
// *compliance.ValidationError when the merged rule would be invalid, in
// which case the rule is left unchanged.
func (m *Manager) UpdateRule(id string, update engine.RuleUpdate) error {
	current, ok := m.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", compliance.ErrRuleNotFound, id)
	}
	if problems := compliance.RuleProblems(update.Apply(current)); len(problems) > 0 {
		return compliance.NewRuleValidationError(id, problems)
	}
	if !m.registry.Update(id, update) {
		return fmt.Errorf("%w: %s", compliance.ErrRuleNotFound, id)
	}
	return nil
}

// GetRule returns a copy of one rule.
func (m *Manager) GetRule(id string) (*compliance.Rule, bool) {
	return m.registry.Get(id)
}

// GetRules returns copies of every rule in evaluation order.
func (m *Manager) GetRules() []*compliance.Rule {
	return m.registry.Rules()
}

// ValidateRule reports whether a rule is structurally complete.
func (m *Manager) ValidateRule(rule *compliance.Rule) bool {
	return compliance.ValidateRule(rule)
}

// ValidateAction reports whether an action has a type and a payload that
// matches the schema registered for that type.
func (m *Manager) ValidateAction(action *compliance.Action) bool {
	return compliance.ValidateAction(action, m.schemas)
}

// RegisterSchema adds or replaces the payload schema for an action type.
func (m *Manager) RegisterSchema(s *compliance.Schema) {
	m.schemas.Register(s)
}

// AddRetentionPolicy validates and registers a retention policy.
func (m *Manager) AddRetentionPolicy(p *retention.Policy) error {
	return m.retention.AddPolicy(p)
}

// RemoveRetentionPolicy deletes a retention policy and reports whether it
// existed.
func (m *Manager) RemoveRetentionPolicy(id string) bool {
	return m.retention.RemovePolicy(id)
}

// GetRetentionPolicies returns copies of every retention policy.
func (m *Manager) GetRetentionPolicies() []*retention.Policy {
	return m.retention.Policies()
}

// ValidateRetentionPolicy reports whether a retention policy is well formed.
func (m *Manager) ValidateRetentionPolicy(p *retention.Policy) bool {
	return retention.ValidatePolicy(p)
}

// EnforceDataRetention runs one retention sweep. An empty tenantID sweeps
// every tenant.
func (m *Manager) EnforceDataRetention(ctx context.Context, tenantID string) *retention.Run {
	ctx, span := m.tracer.Start(ctx, "retention.enforce",
		trace.WithAttributes(attribute.String(tracing.AttrTenant, tenantID)))
	defer span.End()

	run := m.retention.Enforce(ctx, tenantID)
	span.SetAttributes(
		attribute.Int(tracing.AttrArchived, run.ArchivedCount),
		attribute.Int(tracing.AttrDeleted, run.DeletedCount),
		attribute.Int(tracing.AttrPolicyErrs, len(run.Errors)),
	)
	return run
}

// TrackRecord registers a record with the retention dataset.
func (m *Manager) TrackRecord(ctx context.Context, rec *retention.Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	return m.retention.Dataset().Put(ctx, rec)
}

// LogAuditTrail appends an entry for an action and an optional result.
func (m *Manager) LogAuditTrail(ctx context.Context, action *compliance.Action, result *compliance.Result) *audit.Entry {
	return m.trail.Log(ctx, action, result)
}

// GetAuditTrail returns the in-memory audit entries matching filter.
func (m *Manager) GetAuditTrail(filter *audit.Filter) []*audit.Entry {
	return m.trail.Query(filter)
}

// GenerateComplianceReport builds a report for one rule type, or every
// type when ruleType is empty.
func (m *Manager) GenerateComplianceReport(ctx context.Context, ruleType compliance.RuleType, period report.Period, tenantID string) (*report.Report, error) {
	ctx, span := m.tracer.Start(ctx, "report.generate", trace.WithAttributes(
		attribute.String(tracing.AttrReportType, string(ruleType)),
		attribute.String(tracing.AttrTenant, tenantID),
	))
	defer span.End()

	rep, err := m.reports.Generate(ctx, ruleType, period, tenantID)
	tracing.SetError(span, err)
	return rep, err
}

// ResolveViolation marks a violation resolved and reports whether it
// exists. Resolving again overwrites the earlier resolution.
func (m *Manager) ResolveViolation(ctx context.Context, id, resolvedBy, notes string) (bool, error) {
	ok, err := m.store.Resolve(ctx, id, resolvedBy, notes, m.now())
	if err != nil {
		return false, fmt.Errorf("resolve violation %s: %w", id, err)
	}
	if ok {
		m.logger.InfoContext(ctx, "violation resolved",
			"violation_id", id,
			"resolved_by", resolvedBy,
		)
	}
	return ok, nil
}

// GetViolations lists stored violations matching filter, oldest first.
func (m *Manager) GetViolations(ctx context.Context, filter *violations.Filter) ([]*compliance.Violation, error) {
	return m.store.List(ctx, filter)
}

// GetMetrics returns the service counters.
func (m *Manager) GetMetrics(ctx context.Context) Metrics {
	evaluations, detected := m.registry.Totals()
	met := Metrics{
		RulesEvaluated:         evaluations,
		ViolationsDetected:     detected,
		ComplianceRate:         compliance.Rate(evaluations, detected),
		AuditTrailSize:         m.trail.Size(),
		RetentionPoliciesCount: m.retention.Len(),
		RulesCount:             m.registry.Len(),
	}

	unresolved := false
	open, err := m.store.Count(ctx, &violations.Filter{Resolved: &unresolved})
	if err != nil {
		m.logger.WarnContext(ctx, "failed to count open violations", "error", err)
	} else {
		met.OpenViolations = open
	}
	return met
}

// Events returns the bus compliance signals are emitted on.
func (m *Manager) Events() *events.Bus {
	return m.bus
}

// Retention returns the retention engine, for scheduling sweeps.
func (m *Manager) Retention() *retention.Engine {
	return m.retention
}

// AuditStats returns the audit trail counters.
func (m *Manager) AuditStats() audit.Stats {
	return m.trail.Stats()
}

// Close drains pending audit writes and closes the event bus when the
// manager created it. Stores passed in through Config are left open.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.trail.Close()
		if m.ownsBus {
			m.bus.Close()
		}
		m.logger.Info("compliance manager stopped")
	})
	return m.closeErr
}
