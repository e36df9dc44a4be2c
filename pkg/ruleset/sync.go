package ruleset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/retention"
)

// Target is what a Syncer applies a Set to. *manager.Manager satisfies it.
type Target interface {
	AddRule(rule *compliance.Rule) error
	GetRule(id string) (*compliance.Rule, bool)
	RemoveRule(id string) bool
	AddRetentionPolicy(p *retention.Policy) error
	RemoveRetentionPolicy(id string) bool
	RegisterSchema(s *compliance.Schema)
}

// SyncResult summarizes one Sync.
type SyncResult struct {
	RulesApplied      int
	RulesRemoved      int
	PoliciesApplied   int
	PoliciesRemoved   int
	SchemasRegistered int
}

// Syncer applies sets to a target and remembers which ids came from files.
type Syncer struct {
	target Target
	logger *slog.Logger

	mu       sync.Mutex
	rules    map[string]struct{}
	policies map[string]struct{}
}

// NewSyncer creates a syncer for target.
func NewSyncer(target Target, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		target:   target,
		logger:   logger.With("component", "ruleset"),
		rules:    make(map[string]struct{}),
		policies: make(map[string]struct{}),
	}
}

// carryCounters returns r with the counters of the live rule of the same id.
func (s *Syncer) carryCounters(r *compliance.Rule) *compliance.Rule {
	if r == nil {
		return r
	}
	live, ok := s.target.GetRule(r.ID)
	if !ok {
		return r
	}
	c := r.Clone()
	c.Metadata.EvaluationCount = live.Metadata.EvaluationCount
	c.Metadata.ViolationCount = live.Metadata.ViolationCount
	c.Metadata.LastEvaluated = live.Metadata.LastEvaluated
	return c
}

// Sync adds or replaces every rule, policy and schema in set, then removes
// file-sourced rules and policies that set no longer contains. A replaced
// rule keeps the evaluation counters of the rule it replaces. Entries the
// target rejects are skipped and reported in the joined error.
func (s *Syncer) Sync(set *Set) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &SyncResult{}
	var errs []error

	for _, sc := range set.Schemas {
		s.target.RegisterSchema(sc)
		res.SchemasRegistered++
	}

	rules := make(map[string]struct{}, len(set.Rules))
	for _, r := range set.Rules {
		r = s.carryCounters(r)
		if err := s.target.AddRule(r); err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", r.ID, err))
			continue
		}
		rules[r.ID] = struct{}{}
		res.RulesApplied++
	}
	for id := range s.rules {
		if _, keep := rules[id]; !keep && s.target.RemoveRule(id) {
			res.RulesRemoved++
		}
	}
	s.rules = rules

	policies := make(map[string]struct{}, len(set.RetentionPolicies))
	for _, p := range set.RetentionPolicies {
		if err := s.target.AddRetentionPolicy(p); err != nil {
			errs = append(errs, fmt.Errorf("retention policy %q: %w", p.ID, err))
			continue
		}
		policies[p.ID] = struct{}{}
		res.PoliciesApplied++
	}
	for id := range s.policies {
		if _, keep := policies[id]; !keep && s.target.RemoveRetentionPolicy(id) {
			res.PoliciesRemoved++
		}
	}
	s.policies = policies

	s.logger.Info("rule set applied",
		"sources", len(set.Sources),
		"rules", res.RulesApplied,
		"rules_removed", res.RulesRemoved,
		"policies", res.PoliciesApplied,
		"policies_removed", res.PoliciesRemoved,
		"schemas", res.SchemasRegistered,
	)
	for _, w := range set.Warnings {
		s.logger.Warn("rule warning", "warning", w)
	}

	return res, errors.Join(errs...)
}

// Reloader loads a fixed list of paths and syncs the result. A failed load
// leaves the target untouched.
type Reloader struct {
	paths  []string
	syncer *Syncer
	logger *slog.Logger
}

// NewReloader creates a reloader for paths.
func NewReloader(paths []string, syncer *Syncer, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		paths:  paths,
		syncer: syncer,
		logger: logger.With("component", "ruleset"),
	}
}

// Paths returns the watched paths.
func (r *Reloader) Paths() []string {
	return r.paths
}

// Reload loads and applies the rule files.
func (r *Reloader) Reload(ctx context.Context) (*SyncResult, error) {
	set, err := Load(r.paths...)
	if err != nil {
		r.logger.ErrorContext(ctx, "rule files rejected, keeping current rules", "error", err)
		return nil, err
	}
	return r.syncer.Sync(set)
}
