package retention

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// ValidatePolicy reports whether a policy is well formed.
func ValidatePolicy(p *Policy) bool {
	return len(PolicyProblems(p)) == 0
}

// PolicyProblems lists what is wrong with a policy. The windows must
// satisfy ArchiveAfter <= DeleteAfter <= max(RetentionPeriod, exception
// periods) when both are set, and every exception must compile.
func PolicyProblems(p *Policy) []string {
	if p == nil {
		return []string{"policy is nil"}
	}

	var problems []string
	if p.ID == "" {
		problems = append(problems, "id is required")
	}
	if p.Name == "" {
		problems = append(problems, "name is required")
	}
	if len(p.DataTypes) == 0 {
		problems = append(problems, "at least one data type is required")
	}
	if p.RetentionPeriod <= 0 {
		problems = append(problems, fmt.Sprintf("retention period must be positive, got %d", p.RetentionPeriod))
	}
	if p.ArchiveAfter < 0 {
		problems = append(problems, fmt.Sprintf("archive after cannot be negative, got %d", p.ArchiveAfter))
	}
	if p.DeleteAfter < 0 {
		problems = append(problems, fmt.Sprintf("delete after cannot be negative, got %d", p.DeleteAfter))
	}
	if p.ArchiveAfter > 0 && p.DeleteAfter > 0 && p.ArchiveAfter > p.DeleteAfter {
		problems = append(problems, fmt.Sprintf("archive after (%d) exceeds delete after (%d)", p.ArchiveAfter, p.DeleteAfter))
	}

	maxRetention := p.RetentionPeriod
	for i, exc := range p.Exceptions {
		if exc.RetentionPeriod <= 0 {
			problems = append(problems, fmt.Sprintf("exception %d: retention period must be positive", i))
		}
		if exc.RetentionPeriod > maxRetention {
			maxRetention = exc.RetentionPeriod
		}
		if exc.Condition == "" {
			problems = append(problems, fmt.Sprintf("exception %d: condition is required", i))
			continue
		}
		if _, err := govaluate.NewEvaluableExpression(exc.Condition); err != nil {
			problems = append(problems, fmt.Sprintf("exception %d: invalid condition: %v", i, err))
		}
	}
	if p.DeleteAfter > maxRetention {
		problems = append(problems, fmt.Sprintf("delete after (%d) exceeds maximum retention (%d)", p.DeleteAfter, maxRetention))
	}

	return problems
}
