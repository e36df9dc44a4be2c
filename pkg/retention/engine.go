package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Knetic/govaluate"
)

const day = 24 * time.Hour

// MetricsRecorder receives sweep measurements.
type MetricsRecorder interface {
	RecordRetentionResult(policyID string, archived, deleted, errors int, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRetentionResult(string, int, int, int, time.Duration) {}

// compiledPolicy pairs a policy with its parsed exception conditions.
type compiledPolicy struct {
	policy     *Policy
	exceptions []*govaluate.EvaluableExpression
}

// Engine holds retention policies and enforces them over a Dataset.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	order    []string

	sweepMu  sync.Mutex
	dataset  Dataset
	archiver Archiver
	metrics  MetricsRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithArchiver exports archived records through a.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archiver = a }
}

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
			e.logger = l.With("component", "retention.engine")
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

// NewEngine creates a retention engine over dataset.
func NewEngine(dataset Dataset, opts ...Option) *Engine {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		dataset:  dataset,
		metrics:  nopRecorder{},
		logger:   slog.Default().With("component", "retention.engine"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddPolicy validates and stores a policy, replacing any policy with the
// same id. Invalid policies are rejected with an error wrapping
// ErrInvalidPolicy.
func (e *Engine) AddPolicy(p *Policy) error {
	if problems := PolicyProblems(p); len(problems) > 0 {
		id := ""
		if p != nil {
			id = p.ID
		}
		return &PolicyError{PolicyID: id, Problems: problems, Cause: ErrInvalidPolicy}
	}

	cp := &compiledPolicy{policy: p.Clone()}
	for i, exc := range p.Exceptions {
		expr, err := govaluate.NewEvaluableExpression(exc.Condition)
		if err != nil {
			return &PolicyError{PolicyID: p.ID, Cause: fmt.Errorf("%w: exception %d: %v", ErrInvalidPolicy, i, err)}
		}
		cp.exceptions = append(cp.exceptions, expr)
	}

	e.mu.Lock()
	_, replaced := e.policies[p.ID]
	e.policies[p.ID] = cp
	if !replaced {
		e.order = append(e.order, p.ID)
	}
	e.mu.Unlock()

	e.logger.Info("retention policy added",
		"policy_id", p.ID,
		"data_types", p.DataTypes,
		"archive_after_days", p.ArchiveAfter,
		"delete_after_days", p.DeleteAfter,
		"exceptions", len(p.Exceptions),
		"replaced", replaced,
	)
	return nil
}

// RemovePolicy deletes a policy and reports whether it existed.
func (e *Engine) RemovePolicy(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.policies[id]; !ok {
		return false
	}
	delete(e.policies, id)
	for i, existing := range e.order {
		if existing == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

// Policy returns a copy of a policy.
func (e *Engine) Policy(id string) (*Policy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp, ok := e.policies[id]
	if !ok {
		return nil, false
	}
	return cp.policy.Clone(), true
}

// Policies returns copies of all policies in insertion order.
func (e *Engine) Policies() []*Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Policy, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.policies[id].policy.Clone())
	}
	return out
}

// Len returns the number of policies.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.policies)
}

// Dataset returns the dataset the engine sweeps.
func (e *Engine) Dataset() Dataset {
	return e.dataset
}

// Enforce runs every enabled policy once. An empty tenantID sweeps all
// tenants. Sweeps are serialized.
func (e *Engine) Enforce(ctx context.Context, tenantID string) *Run {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()

	run := &Run{TenantID: tenantID, StartedAt: e.now(), Policies: []*Result{}}

	e.mu.RLock()
	active := make([]*compiledPolicy, 0, len(e.order))
	for _, id := range e.order {
		if cp := e.policies[id]; cp.policy.Enabled {
			active = append(active, cp)
		}
	}
	e.mu.RUnlock()

	for _, cp := range active {
		res := e.enforcePolicy(ctx, cp, tenantID)
		e.metrics.RecordRetentionResult(res.PolicyID, res.ArchivedCount, res.DeletedCount, len(res.Errors), res.Duration)
		run.add(res)
	}

	run.Duration = e.now().Sub(run.StartedAt)

	e.logger.InfoContext(ctx, "retention sweep completed",
		"tenant_id", tenantID,
		"policies", len(run.Policies),
		"processed", run.ProcessedCount,
		"archived", run.ArchivedCount,
		"deleted", run.DeletedCount,
		"errors", len(run.Errors),
	)
	return run
}

func (e *Engine) enforcePolicy(ctx context.Context, cp *compiledPolicy, tenantID string) (res *Result) {
	p := cp.policy
	start := e.now()
	res = &Result{PolicyID: p.ID}

	defer func() {
		if r := recover(); r != nil {
			err := &PolicyError{PolicyID: p.ID, Cause: fmt.Errorf("panic: %v", r)}
			e.logger.ErrorContext(ctx, "retention policy panicked", "policy_id", p.ID, "error", err)
			res.Errors = append(res.Errors, err.Error())
		}
		res.Duration = e.now().Sub(start)
	}()

	if e.dataset == nil {
		res.Errors = append(res.Errors, "no dataset configured")
		return res
	}

	records, err := e.dataset.Records(ctx, p.DataTypes, tenantID)
	if err != nil {
		perr := &PolicyError{PolicyID: p.ID, Cause: err}
		e.logger.ErrorContext(ctx, "failed to load retention records", "policy_id", p.ID, "error", perr)
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	now := e.now()
	var toArchive []*Record

	for _, rec := range records {
		if !p.governs(rec.DataType) {
			continue
		}
		res.ProcessedCount++
		age := now.Sub(rec.CreatedAt)

		deleteAfter := p.DeleteAfter
		if idx, err := e.matchException(cp, rec, age); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("record %s: %v", rec.ID, err))
		} else if idx >= 0 {
			deleteAfter = p.Exceptions[idx].RetentionPeriod
			res.ExceptionCount++
		}

		if deleteAfter > 0 && age > time.Duration(deleteAfter)*day {
			if err := e.dataset.Delete(ctx, rec.ID); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("delete %s: %v", rec.ID, err))
				continue
			}
			res.DeletedCount++
			continue
		}

		if p.ArchiveAfter > 0 && !rec.Archived && age > time.Duration(p.ArchiveAfter)*day {
			toArchive = append(toArchive, rec)
		}
	}

	if len(toArchive) > 0 {
		e.archive(ctx, p, toArchive, res)
	}

	if len(res.Errors) > 0 {
		e.logger.WarnContext(ctx, "retention policy completed with errors",
			"policy_id", p.ID,
			"errors", len(res.Errors),
		)
	}
	return res
}

func (e *Engine) archive(ctx context.Context, p *Policy, records []*Record, res *Result) {
	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, p, records); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("archive: %v", err))
			return
		}
	}

	at := e.now()
	for _, rec := range records {
		if err := e.dataset.MarkArchived(ctx, rec.ID, at); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("archive %s: %v", rec.ID, err))
			continue
		}
		res.ArchivedCount++
	}
}

// matchException returns the index of the first exception whose condition
// holds for rec, or -1.
func (e *Engine) matchException(cp *compiledPolicy, rec *Record, age time.Duration) (int, error) {
	if len(cp.exceptions) == 0 {
		return -1, nil
	}

	params := make(map[string]any, len(rec.Attributes)+3)
	for k, v := range rec.Attributes {
		params[k] = v
	}
	params["dataType"] = rec.DataType
	params["tenantId"] = rec.TenantID
	params["ageDays"] = age.Hours() / 24

	for i, expr := range cp.exceptions {
		for _, v := range expr.Vars() {
			if _, ok := params[v]; !ok {
				params[v] = nil
			}
		}
		out, err := expr.Evaluate(params)
		if err != nil {
			return -1, fmt.Errorf("exception %d: %w", i, err)
		}
		if matched, ok := out.(bool); ok && matched {
			return i, nil
		}
	}
	return -1, nil
}
