package compliance

import "fmt"

// ValidateRule reports whether a rule is structurally complete: it has an
// id, a name, a type, at least one condition and at least one action.
func ValidateRule(r *Rule) bool {
	return len(RuleProblems(r)) == 0
}

// RuleProblems returns the structural problems that make ValidateRule fail.
func RuleProblems(r *Rule) []string {
	if r == nil {
		return []string{"rule is nil"}
	}
	var problems []string
	if r.ID == "" {
		problems = append(problems, "id is required")
	}
	if r.Name == "" {
		problems = append(problems, "name is required")
	}
	if r.Type == "" {
		problems = append(problems, "type is required")
	}
	if len(r.Conditions) == 0 {
		problems = append(problems, "at least one condition is required")
	}
	if len(r.Actions) == 0 {
		problems = append(problems, "at least one action is required")
	}
	return problems
}

// RuleWarnings returns issues that do not make a rule invalid but usually
// indicate a mistake, such as an unknown operator or severity.
func RuleWarnings(r *Rule) []string {
	if r == nil {
		return nil
	}
	var warnings []string
	if r.Type != "" && !r.Type.IsValid() {
		warnings = append(warnings, fmt.Sprintf("unknown rule type %q", r.Type))
	}
	if r.Severity != "" && !r.Severity.IsValid() {
		warnings = append(warnings, fmt.Sprintf("unknown severity %q", r.Severity))
	}
	for i, c := range r.Conditions {
		if c.Predicate != nil {
			continue
		}
		if c.Field == "" {
			warnings = append(warnings, fmt.Sprintf("condition %d has no field", i))
		}
		if !c.Operator.IsValid() {
			warnings = append(warnings, fmt.Sprintf("condition %d has unknown operator %q", i, c.Operator))
		}
	}
	for i, a := range r.Actions {
		if !a.Type.IsValid() {
			warnings = append(warnings, fmt.Sprintf("action %d has unknown type %q", i, a.Type))
		}
		if a.Type == ResponseCustom && a.Handler == nil {
			warnings = append(warnings, fmt.Sprintf("custom action %d has no handler", i))
		}
	}
	return warnings
}

// ValidateAction reports whether an action can be checked: it must have a
// type, and its payload must conform to the schema registered for that
// type, if any. A nil registry accepts any payload.
func ValidateAction(a *Action, schemas *SchemaRegistry) bool {
	return len(ActionProblems(a, schemas)) == 0
}

// ActionProblems returns the structural problems that make ValidateAction fail.
func ActionProblems(a *Action, schemas *SchemaRegistry) []string {
	if a == nil {
		return []string{"action is nil"}
	}
	var problems []string
	if a.Type == "" {
		problems = append(problems, "type is required")
	}
	if schemas != nil {
		if schema, ok := schemas.Lookup(a.Type); ok {
			problems = append(problems, schema.Problems(a.Data)...)
		}
	}
	return problems
}
