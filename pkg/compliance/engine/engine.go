package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/compliance/violations"
	"mercator-hq/sentinel/pkg/events"
)

// MetricsRecorder receives engine measurements. It is satisfied by the
// Prometheus collector in pkg/telemetry/metrics.
type MetricsRecorder interface {
	RecordRuleEvaluation(ruleID string, violated bool, duration time.Duration)
	RecordViolation(ruleType compliance.RuleType, severity compliance.Severity)
	RecordActionResult(actionType compliance.ResponseActionType, success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordRuleEvaluation(string, bool, time.Duration)         {}
func (nopRecorder) RecordViolation(compliance.RuleType, compliance.Severity) {}
func (nopRecorder) RecordActionResult(compliance.ResponseActionType, bool)   {}

// Engine evaluates actions against the rules of a Registry.
type Engine struct {
	config   *EngineConfig
	registry *Registry
	executor *Executor
	store    violations.Store
	metrics  MetricsRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.With("component", "compliance.engine")
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine. A nil config uses DefaultEngineConfig.
func New(config *EngineConfig, registry *Registry, executor *Executor, store violations.Store, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: violation store is required", ErrInvalidConfig)
	}
	if executor == nil {
		executor = NewExecutor(events.Discard, nil)
	}

	e := &Engine{
		config:   config,
		registry: registry,
		executor: executor,
		store:    store,
		metrics:  nopRecorder{},
		logger:   slog.Default().With("component", "compliance.engine"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Registry returns the engine's rule registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Check evaluates every enabled rule against the action. Each failing
// condition becomes a stored violation and triggers the rule's response
// actions. Rule counters are updated for every enabled rule evaluated. A
// rule whose evaluation panics contributes no violations and is reported
// in Result.RuleFailures.
func (e *Engine) Check(ctx context.Context, action *compliance.Action, tenantID string) *compliance.Result {
	start := e.now()
	if tenantID == "" && action != nil {
		tenantID = action.TenantID
	}

	result := &compliance.Result{
		CheckID:    uuid.New().String(),
		TenantID:   tenantID,
		Violations: []*compliance.Violation{},
		Timestamp:  start,
	}

	for _, entry := range e.registry.entries() {
		rule := entry.current()
		if !rule.Enabled {
			continue
		}

		ruleStart := time.Now()
		found, err := e.evaluateRule(ctx, rule, action, tenantID)
		entry.recordEvaluation(e.now(), err == nil && len(found) > 0)
		e.metrics.RecordRuleEvaluation(rule.ID, len(found) > 0, time.Since(ruleStart))

		if err != nil {
			e.logger.ErrorContext(ctx, "compliance rule evaluation failed",
				"rule_id", rule.ID,
				"check_id", result.CheckID,
				"error", err,
			)
			result.RuleFailures = append(result.RuleFailures, compliance.RuleFailure{
				RuleID: rule.ID,
				Error:  err.Error(),
			})
			continue
		}

		for _, v := range found {
			v.CheckID = result.CheckID
			e.saveViolation(ctx, v)
			e.metrics.RecordViolation(v.Type, v.Severity)
			result.Violations = append(result.Violations, v)

			for _, ar := range e.executor.Execute(ctx, v, rule.Actions) {
				e.metrics.RecordActionResult(ar.ActionType, ar.Success)
				if ar.ActionType == compliance.ResponseBlock && ar.Success {
					result.Blocked = true
				}
				result.ActionResults = append(result.ActionResults, ar)
			}
		}
	}

	result.Summarize()
	result.Duration = e.now().Sub(start)

	e.logger.DebugContext(ctx, "compliance check completed",
		"check_id", result.CheckID,
		"tenant_id", tenantID,
		"compliant", result.Compliant,
		"violations", len(result.Violations),
		"severity", result.Severity,
	)
	return result
}

// evaluateRule returns one violation per failing condition. A panicking
// predicate aborts the rule with an error.
func (e *Engine) evaluateRule(ctx context.Context, rule *compliance.Rule, action *compliance.Action, tenantID string) (found []*compliance.Violation, err error) {
	defer func() {
		if r := recover(); r != nil {
			found = nil
			err = fmt.Errorf("rule %s: condition panicked: %v", rule.ID, r)
		}
	}()

	for _, cond := range rule.Conditions {
		matched, present := evaluateCondition(cond, action)
		if matched {
			continue
		}
		if !present {
			e.logger.DebugContext(ctx, "condition field not present",
				"rule_id", rule.ID,
				"field", cond.Field,
			)
		}
		found = append(found, e.newViolation(rule, cond, action, tenantID))
	}
	return found, nil
}

func (e *Engine) newViolation(rule *compliance.Rule, cond compliance.Condition, action *compliance.Action, tenantID string) *compliance.Violation {
	description := fmt.Sprintf("%s: %s", rule.Name, describeCondition(cond))
	cond.Predicate = nil
	v := &compliance.Violation{
		ID:          uuid.New().String(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Type:        rule.Type,
		Severity:    rule.Severity,
		Description: description,
		Data: compliance.ViolationData{
			Condition: cond,
			TenantID:  tenantID,
		},
		Timestamp: e.now(),
	}
	if e.config.SnapshotActions {
		v.Data.Action = action.Clone()
	}
	return v
}

func (e *Engine) saveViolation(ctx context.Context, v *compliance.Violation) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.StoreTimeout)
	defer cancel()

	if err := e.store.Save(storeCtx, v); err != nil {
		e.logger.ErrorContext(ctx, "failed to store violation",
			"violation_id", v.ID,
			"rule_id", v.RuleID,
			"error", err,
		)
	}
}
