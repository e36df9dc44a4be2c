// Package report builds point-in-time compliance reports from rule counters
// and stored violations.
package report

import (
	"time"

	"mercator-hq/sentinel/pkg/compliance"
)

// Period is a reporting window. Both bounds are inclusive.
type Period struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Contains reports whether t falls within the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// LastDays returns the period ending at now and spanning n days.
func LastDays(now time.Time, n int) Period {
	return Period{Start: now.AddDate(0, 0, -n), End: now}
}

// Summary aggregates rule counters and period violations.
type Summary struct {
	TotalRules          int                         `json:"total_rules" yaml:"total_rules"`
	EnabledRules        int                         `json:"enabled_rules" yaml:"enabled_rules"`
	TotalEvaluations    int64                       `json:"total_evaluations" yaml:"total_evaluations"`
	TotalViolations     int64                       `json:"total_violations" yaml:"total_violations"`
	ComplianceRate      float64                     `json:"compliance_rate" yaml:"compliance_rate"`
	PeriodViolations    int                         `json:"period_violations" yaml:"period_violations"`
	OpenViolations      int                         `json:"open_violations" yaml:"open_violations"`
	ResolvedViolations  int                         `json:"resolved_violations" yaml:"resolved_violations"`
	BySeverity          map[compliance.Severity]int `json:"by_severity" yaml:"by_severity"`
	MostCommonViolation string                      `json:"most_common_violation,omitempty" yaml:"most_common_violation,omitempty"`
}

// RuleSummary is the per-rule section of a report.
type RuleSummary struct {
	RuleID              string              `json:"rule_id" yaml:"rule_id"`
	RuleName            string              `json:"rule_name" yaml:"rule_name"`
	Type                compliance.RuleType `json:"type" yaml:"type"`
	Severity            compliance.Severity `json:"severity" yaml:"severity"`
	Enabled             bool                `json:"enabled" yaml:"enabled"`
	Evaluations         int64               `json:"evaluations" yaml:"evaluations"`
	Violations          int64               `json:"violations" yaml:"violations"`
	ComplianceRate      float64             `json:"compliance_rate" yaml:"compliance_rate"`
	PeriodViolations    int                 `json:"period_violations" yaml:"period_violations"`
	MostCommonViolation string              `json:"most_common_violation,omitempty" yaml:"most_common_violation,omitempty"`
	LastEvaluated       *time.Time          `json:"last_evaluated,omitempty" yaml:"last_evaluated,omitempty"`
}

// Report is an immutable compliance report. An empty Type covers every
// rule type.
type Report struct {
	ID              string              `json:"id" yaml:"id"`
	Type            compliance.RuleType `json:"type,omitempty" yaml:"type,omitempty"`
	TenantID        string              `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	Period          Period              `json:"period" yaml:"period"`
	GeneratedAt     time.Time           `json:"generated_at" yaml:"generated_at"`
	Summary         Summary             `json:"summary" yaml:"summary"`
	Rules           []RuleSummary       `json:"rules" yaml:"rules"`
	Recommendations []string            `json:"recommendations" yaml:"recommendations"`
}

// mostCommon returns the most frequent description. Ties go to the
// description seen first.
func mostCommon(violations []*compliance.Violation) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, v := range violations {
		counts[v.Description]++
	}
	for _, v := range violations {
		if c := counts[v.Description]; c > bestCount {
			best, bestCount = v.Description, c
		}
	}
	return best
}
