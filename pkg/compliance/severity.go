package compliance

import "strings"

// Severity is the impact level of a rule or violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the position of s in the severity order, starting at 1 for
// low. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// IsValid reports whether s is one of the four known severities.
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// RequiresAudit reports whether results at this severity need an audit follow-up.
func (s Severity) RequiresAudit() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// ParseSeverity converts a case-insensitive string to a Severity.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	return sev, sev.IsValid()
}

// HighestSeverity returns the highest severity among violations, or low when
// there are none.
func HighestSeverity(violations []*Violation) Severity {
	highest := SeverityLow
	for _, v := range violations {
		if v == nil {
			continue
		}
		if v.Severity.Rank() > highest.Rank() {
			highest = v.Severity
		}
	}
	return highest
}
