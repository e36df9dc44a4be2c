package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/compliance/violations"
)

// RuleSource lists rules with their current counters.
type RuleSource interface {
	Rules() []*compliance.Rule
}

// Generator builds compliance reports.
type Generator struct {
	rules  RuleSource
	store  violations.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewGenerator creates a report generator.
func NewGenerator(rules RuleSource, store violations.Store, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		rules:  rules,
		store:  store,
		logger: logger.With("component", "report.generator"),
		now:    time.Now,
	}
}

// Generate builds a report for one rule type (empty for all types) over a
// period, optionally restricted to a tenant. Evaluation counts are lifetime
// totals; compliance rates count only the evaluations that failed inside
// the period, so a period without violations reports 100. A zero period end
// means now.
func (g *Generator) Generate(ctx context.Context, ruleType compliance.RuleType, period Period, tenantID string) (*Report, error) {
	now := g.now()
	if period.End.IsZero() {
		period.End = now
	}
	if period.End.Before(period.Start) {
		return nil, fmt.Errorf("invalid report period: end %v is before start %v", period.End, period.Start)
	}

	start, end := period.Start, period.End
	found, err := g.store.List(ctx, &violations.Filter{
		Type:      ruleType,
		TenantID:  tenantID,
		StartTime: &start,
		EndTime:   &end,
	})
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}

	byRule := make(map[string][]*compliance.Violation)
	for _, v := range found {
		byRule[v.RuleID] = append(byRule[v.RuleID], v)
	}

	r := &Report{
		ID:          uuid.New().String(),
		Type:        ruleType,
		TenantID:    tenantID,
		Period:      period,
		GeneratedAt: now,
		Rules:       []RuleSummary{},
		Summary: Summary{
			BySeverity: make(map[compliance.Severity]int),
		},
	}

	var periodFailed int64
	for _, rule := range g.rules.Rules() {
		if ruleType != "" && rule.Type != ruleType {
			continue
		}
		ruleViolations := byRule[rule.ID]
		failed := failedChecks(ruleViolations)
		r.Rules = append(r.Rules, RuleSummary{
			RuleID:              rule.ID,
			RuleName:            rule.Name,
			Type:                rule.Type,
			Severity:            rule.Severity,
			Enabled:             rule.Enabled,
			Evaluations:         rule.Metadata.EvaluationCount,
			Violations:          rule.Metadata.ViolationCount,
			ComplianceRate:      compliance.Rate(rule.Metadata.EvaluationCount, failed),
			PeriodViolations:    len(ruleViolations),
			MostCommonViolation: mostCommon(ruleViolations),
			LastEvaluated:       rule.Metadata.LastEvaluated,
		})

		r.Summary.TotalRules++
		if rule.Enabled {
			r.Summary.EnabledRules++
		}
		r.Summary.TotalEvaluations += rule.Metadata.EvaluationCount
		r.Summary.TotalViolations += rule.Metadata.ViolationCount
		periodFailed += failed
	}
	r.Summary.ComplianceRate = compliance.Rate(r.Summary.TotalEvaluations, periodFailed)

	r.Summary.PeriodViolations = len(found)
	for _, v := range found {
		if v.Resolved {
			r.Summary.ResolvedViolations++
		} else {
			r.Summary.OpenViolations++
		}
		r.Summary.BySeverity[v.Severity]++
	}
	r.Summary.MostCommonViolation = mostCommon(found)
	r.Recommendations = compliance.Recommendations(found)

	g.logger.InfoContext(ctx, "compliance report generated",
		"report_id", r.ID,
		"type", ruleType,
		"tenant_id", tenantID,
		"rules", r.Summary.TotalRules,
		"period_violations", r.Summary.PeriodViolations,
	)
	return r, nil
}

// failedChecks counts the distinct checks that produced the violations. A
// violation without a check id counts on its own.
func failedChecks(vs []*compliance.Violation) int64 {
	seen := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		key := v.CheckID
		if key == "" {
			key = "violation:" + v.ID
		}
		seen[key] = struct{}{}
	}
	return int64(len(seen))
}
