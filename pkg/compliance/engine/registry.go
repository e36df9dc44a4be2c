package engine

import (
	"log/slog"
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/compliance"
)

// ruleEntry owns one rule. The rule body is replaced, never mutated, so a
// pointer read under mu stays valid after mu is released. Counters are
// guarded by mu.
type ruleEntry struct {
	mu            sync.Mutex
	rule          *compliance.Rule
	evaluations   int64
	violations    int64
	lastEvaluated *time.Time
}

func (e *ruleEntry) current() *compliance.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rule
}

func (e *ruleEntry) recordEvaluation(at time.Time, violated bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evaluations++
	if violated {
		e.violations++
	}
	e.lastEvaluated = &at
}

// snapshot returns a copy of the rule with live counters.
func (e *ruleEntry) snapshot() *compliance.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.rule.Clone()
	r.Metadata.EvaluationCount = e.evaluations
	r.Metadata.ViolationCount = e.violations
	if e.lastEvaluated != nil {
		t := *e.lastEvaluated
		r.Metadata.LastEvaluated = &t
	}
	return r
}

// RuleUpdate is a partial rule change. Nil fields are left unchanged.
type RuleUpdate struct {
	Name        *string
	Description *string
	Type        *compliance.RuleType
	Category    *compliance.Category
	Severity    *compliance.Severity
	Enabled     *bool
	Conditions  []compliance.Condition
	Actions     []compliance.ResponseAction
	Tags        []string
	UpdatedBy   string
}

// Apply returns a copy of rule with the update merged in. Version and
// timestamps are left to the registry.
func (u RuleUpdate) Apply(rule *compliance.Rule) *compliance.Rule {
	next := rule.Clone()
	if u.Name != nil {
		next.Name = *u.Name
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Type != nil {
		next.Type = *u.Type
	}
	if u.Category != nil {
		next.Category = *u.Category
	}
	if u.Severity != nil {
		next.Severity = *u.Severity
	}
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}
	if u.Conditions != nil {
		next.Conditions = append([]compliance.Condition(nil), u.Conditions...)
	}
	if u.Actions != nil {
		next.Actions = append([]compliance.ResponseAction(nil), u.Actions...)
	}
	if u.Tags != nil {
		next.Metadata.Tags = append([]string(nil), u.Tags...)
	}
	if u.UpdatedBy != "" {
		next.Metadata.UpdatedBy = u.UpdatedBy
	}
	return next
}

// Registry holds compliance rules keyed by id, in insertion order. The map
// is guarded by a read/write lock; each rule has its own lock so that
// evaluating different rules never contends.
type Registry struct {
	mu     sync.RWMutex
	rules  map[string]*ruleEntry
	order  []string
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates an empty rule registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rules:  make(map[string]*ruleEntry),
		logger: logger.With("component", "compliance.registry"),
		now:    time.Now,
	}
}

// Add inserts a rule, replacing any rule with the same id. A replaced rule
// keeps its position in evaluation order. The registry stores a copy and
// takes its counters from the rule's metadata.
func (r *Registry) Add(rule *compliance.Rule) {
	if rule == nil {
		return
	}
	c := rule.Clone()
	now := r.now()
	if c.Metadata.CreatedAt.IsZero() {
		c.Metadata.CreatedAt = now
	}
	if c.Metadata.UpdatedAt.IsZero() {
		c.Metadata.UpdatedAt = now
	}
	if c.Metadata.Version == 0 {
		c.Metadata.Version = 1
	}

	entry := &ruleEntry{
		rule:          c,
		evaluations:   c.Metadata.EvaluationCount,
		violations:    c.Metadata.ViolationCount,
		lastEvaluated: c.Metadata.LastEvaluated,
	}

	r.mu.Lock()
	_, replaced := r.rules[c.ID]
	r.rules[c.ID] = entry
	if !replaced {
		r.order = append(r.order, c.ID)
	}
	r.mu.Unlock()

	r.logger.Info("compliance rule added",
		"rule_id", c.ID,
		"rule_name", c.Name,
		"rule_type", c.Type,
		"severity", c.Severity,
		"replaced", replaced,
	)
}

// Remove deletes a rule and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.rules[id]
	if ok {
		delete(r.rules, id)
		for i, existing := range r.order {
			if existing == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if ok {
		r.logger.Info("compliance rule removed", "rule_id", id)
	}
	return ok
}

// Update merges a partial change into an existing rule, bumps its version
// and updated timestamp, and reports whether the rule existed.
func (r *Registry) Update(id string, u RuleUpdate) bool {
	r.mu.RLock()
	entry, ok := r.rules[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	entry.mu.Lock()
	next := u.Apply(entry.rule)
	next.Metadata.UpdatedAt = r.now()
	next.Metadata.Version++
	entry.rule = next
	version := next.Metadata.Version
	entry.mu.Unlock()

	r.logger.Info("compliance rule updated", "rule_id", id, "version", version)
	return true
}

// Get returns a copy of a rule with its current counters.
func (r *Registry) Get(id string) (*compliance.Rule, bool) {
	r.mu.RLock()
	entry, ok := r.rules[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return entry.snapshot(), true
}

// Rules returns copies of all rules in insertion order.
func (r *Registry) Rules() []*compliance.Rule {
	entries := r.entries()
	out := make([]*compliance.Rule, len(entries))
	for i, e := range entries {
		out[i] = e.snapshot()
	}
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Totals returns the summed evaluation and violation counters.
func (r *Registry) Totals() (evaluations, violations int64) {
	for _, e := range r.entries() {
		e.mu.Lock()
		evaluations += e.evaluations
		violations += e.violations
		e.mu.Unlock()
	}
	return evaluations, violations
}

func (r *Registry) entries() []*ruleEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ruleEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rules[id])
	}
	return out
}
