package engine

import (
	"fmt"

	"mercator-hq/sentinel/pkg/compliance"
)

// Evaluate reports whether a condition holds for an action. A condition
// with a Predicate is decided by the predicate alone. Evaluate has no side
// effects; a panicking predicate propagates to the caller.
func Evaluate(cond compliance.Condition, action *compliance.Action) bool {
	matched, _ := evaluateCondition(cond, action)
	return matched
}

// evaluateCondition also reports whether the condition's field resolved.
// Predicate conditions always report the field as present.
func evaluateCondition(cond compliance.Condition, action *compliance.Action) (matched, present bool) {
	if cond.Predicate != nil {
		return cond.Predicate(cond, action), true
	}
	actual, present := ResolveField(action, cond.Field)
	return evaluateOperator(cond.Operator, actual, present, cond.Value), present
}

// describeCondition renders a condition for violation descriptions.
func describeCondition(cond compliance.Condition) string {
	if cond.Predicate != nil {
		if cond.Type != "" {
			return fmt.Sprintf("custom %s check failed", cond.Type)
		}
		return "custom check failed"
	}
	return fmt.Sprintf("%s %s %v", cond.Field, cond.Operator, cond.Value)
}
