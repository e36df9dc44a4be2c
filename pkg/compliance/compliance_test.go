package compliance

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestHighestSeverity(t *testing.T) {
	tests := []struct {
		name       string
		severities []Severity
		want       Severity
	}{
		{name: "no violations defaults to low", want: SeverityLow},
		{name: "single medium", severities: []Severity{SeverityMedium}, want: SeverityMedium},
		{name: "critical wins", severities: []Severity{SeverityLow, SeverityCritical, SeverityHigh}, want: SeverityCritical},
		{name: "high over medium", severities: []Severity{SeverityMedium, SeverityHigh, SeverityLow}, want: SeverityHigh},
		{name: "unknown ignored", severities: []Severity{"bogus"}, want: SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var violations []*Violation
			for _, s := range tt.severities {
				violations = append(violations, &Violation{Severity: s})
			}
			if got := HighestSeverity(violations); got != tt.want {
				t.Errorf("HighestSeverity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSeverity_RequiresAudit(t *testing.T) {
	for sev, want := range map[Severity]bool{
		SeverityLow:      false,
		SeverityMedium:   false,
		SeverityHigh:     true,
		SeverityCritical: true,
	} {
		if got := sev.RequiresAudit(); got != want {
			t.Errorf("%s.RequiresAudit() = %v, want %v", sev, got, want)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	if sev, ok := ParseSeverity(" HIGH "); !ok || sev != SeverityHigh {
		t.Errorf("ParseSeverity(HIGH) = %q, %v", sev, ok)
	}
	if _, ok := ParseSeverity("severe"); ok {
		t.Error("ParseSeverity(severe) should fail")
	}
}

func TestRecommendations(t *testing.T) {
	violations := []*Violation{
		{Type: RuleTypeHIPAA, Severity: SeverityMedium},
		{Type: RuleTypeGDPR, Severity: SeverityCritical},
		{Type: RuleTypeGDPR, Severity: SeverityHigh},
		{Type: RuleTypeHIPAA, Severity: SeverityLow},
	}

	got := Recommendations(violations)
	want := []string{
		recommendCritical,
		recommendHigh,
		typeRecommendations[RuleTypeHIPAA],
		typeRecommendations[RuleTypeGDPR],
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recommendations() = %v, want %v", got, want)
	}
}

func TestRecommendations_NoDuplicates(t *testing.T) {
	var violations []*Violation
	for i := 0; i < 50; i++ {
		violations = append(violations, &Violation{Type: RuleTypeGDPR, Severity: SeverityCritical})
	}
	got := Recommendations(violations)

	seen := make(map[string]bool)
	for _, r := range got {
		if seen[r] {
			t.Fatalf("duplicate recommendation %q in %v", r, got)
		}
		seen[r] = true
	}
	if len(got) != 2 {
		t.Errorf("expected 2 recommendations, got %d: %v", len(got), got)
	}
}

func TestRecommendations_Empty(t *testing.T) {
	if got := Recommendations(nil); len(got) != 0 {
		t.Errorf("Recommendations(nil) = %v, want empty", got)
	}
}

func TestResult_Summarize(t *testing.T) {
	r := &Result{}
	r.Summarize()
	if !r.Compliant || r.Severity != SeverityLow || r.AuditRequired {
		t.Errorf("empty result summarized incorrectly: %+v", r)
	}

	r = &Result{Violations: []*Violation{
		{RuleID: "a", Type: RuleTypeSOX, Severity: SeverityHigh},
		{RuleID: "b", Type: RuleTypeSOX, Severity: SeverityLow},
		{RuleID: "a", Type: RuleTypeSOX, Severity: SeverityHigh},
	}}
	r.Summarize()
	if r.Compliant {
		t.Error("result with violations should not be compliant")
	}
	if r.Severity != SeverityHigh {
		t.Errorf("Severity = %q, want high", r.Severity)
	}
	if !r.AuditRequired {
		t.Error("high severity should require audit")
	}
	if ids := r.RuleIDs(); !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Errorf("RuleIDs() = %v", ids)
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		evaluations, violations int64
		want                    float64
	}{
		{0, 0, 100},
		{10, 0, 100},
		{10, 5, 50},
		{4, 1, 75},
		{2, 5, 0},
	}
	for _, tt := range tests {
		if got := Rate(tt.evaluations, tt.violations); got != tt.want {
			t.Errorf("Rate(%d, %d) = %v, want %v", tt.evaluations, tt.violations, got, tt.want)
		}
	}
}

func validRule() *Rule {
	return &Rule{
		ID:         "r1",
		Name:       "Rule one",
		Type:       RuleTypeGDPR,
		Severity:   SeverityMedium,
		Enabled:    true,
		Conditions: []Condition{{Field: "data.consent", Operator: OperatorEquals, Value: true}},
		Actions:    []ResponseAction{{Type: ResponseLog}},
	}
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Rule)
		want   bool
	}{
		{name: "valid", mutate: func(r *Rule) {}, want: true},
		{name: "missing id", mutate: func(r *Rule) { r.ID = "" }},
		{name: "missing name", mutate: func(r *Rule) { r.Name = "" }},
		{name: "missing type", mutate: func(r *Rule) { r.Type = "" }},
		{name: "no conditions", mutate: func(r *Rule) { r.Conditions = nil }},
		{name: "no actions", mutate: func(r *Rule) { r.Actions = nil }},
		{name: "unknown operator still valid", mutate: func(r *Rule) { r.Conditions[0].Operator = "matches" }, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(r)
			if got := ValidateRule(r); got != tt.want {
				t.Errorf("ValidateRule() = %v, want %v (problems: %v)", got, tt.want, RuleProblems(r))
			}
		})
	}

	if ValidateRule(nil) {
		t.Error("ValidateRule(nil) should be false")
	}
}

func TestRuleWarnings(t *testing.T) {
	r := validRule()
	r.Conditions = append(r.Conditions, Condition{Field: "x", Operator: "matches"})
	r.Actions = append(r.Actions, ResponseAction{Type: ResponseCustom})

	warnings := RuleWarnings(r)
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "unknown operator") {
		t.Errorf("unexpected warning %q", warnings[0])
	}
}

func TestValidationError(t *testing.T) {
	err := NewRuleValidationError("r1", []string{"name is required", "type is required"})
	if !errors.Is(err, ErrInvalidRule) {
		t.Error("rule validation error should wrap ErrInvalidRule")
	}
	if !strings.Contains(err.Error(), `rule "r1"`) {
		t.Errorf("Error() = %q", err.Error())
	}

	var verr *ValidationError
	if !errors.As(error(NewActionValidationError("export", nil)), &verr) || !errors.Is(verr, ErrInvalidAction) {
		t.Error("action validation error should wrap ErrInvalidAction")
	}
}

func TestValidateAction(t *testing.T) {
	schemas := NewSchemaRegistry(&Schema{
		ActionType: "data_export",
		Fields: []FieldSpec{
			{Name: "records", Kind: KindNumber, Required: true},
			{Name: "destination", Kind: KindString, Required: true},
			{Name: "encrypted", Kind: KindBool},
			{Name: "requested_at", Kind: KindTime},
		},
		Strict: true,
	})

	tests := []struct {
		name   string
		action *Action
		want   bool
	}{
		{name: "nil action", action: nil},
		{name: "missing type", action: &Action{}},
		{name: "unregistered type accepts anything", action: &Action{Type: "login", Data: map[string]any{"x": 1}}, want: true},
		{
			name: "conforming payload",
			action: &Action{Type: "data_export", Data: map[string]any{
				"records": 10, "destination": "s3", "encrypted": true, "requested_at": "2024-01-02T03:04:05Z",
			}},
			want: true,
		},
		{name: "missing required", action: &Action{Type: "data_export", Data: map[string]any{"records": 10}}},
		{name: "wrong kind", action: &Action{Type: "data_export", Data: map[string]any{"records": "ten", "destination": "s3"}}},
		{name: "bad time", action: &Action{Type: "data_export", Data: map[string]any{"records": 1, "destination": "s3", "requested_at": "yesterday"}}},
		{name: "strict rejects extras", action: &Action{Type: "data_export", Data: map[string]any{"records": 1, "destination": "s3", "extra": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateAction(tt.action, schemas); got != tt.want {
				t.Errorf("ValidateAction() = %v, want %v (problems: %v)", got, tt.want, ActionProblems(tt.action, schemas))
			}
		})
	}
}

func TestRuleClone_Isolated(t *testing.T) {
	now := time.Now()
	r := validRule()
	r.Actions[0].Parameters = map[string]any{"severity": "high"}
	r.Metadata.Tags = []string{"pii"}
	r.Metadata.LastEvaluated = &now

	c := r.Clone()
	c.Conditions[0].Field = "changed"
	c.Actions[0].Parameters["severity"] = "low"
	c.Metadata.Tags[0] = "changed"
	*c.Metadata.LastEvaluated = now.Add(time.Hour)

	if r.Conditions[0].Field != "data.consent" {
		t.Error("clone shares conditions")
	}
	if r.Actions[0].Parameters["severity"] != "high" {
		t.Error("clone shares action parameters")
	}
	if r.Metadata.Tags[0] != "pii" {
		t.Error("clone shares tags")
	}
	if !r.Metadata.LastEvaluated.Equal(now) {
		t.Error("clone shares last evaluated timestamp")
	}
}

func TestViolation_ResolveOverwrites(t *testing.T) {
	v := &Violation{ID: "v1"}
	first := time.Now()
	v.Resolve("alice", "fixed", first)
	second := first.Add(time.Minute)
	v.Resolve("bob", "fixed again", second)

	if !v.Resolved || v.ResolvedBy != "bob" || v.ResolutionNotes != "fixed again" || !v.ResolvedAt.Equal(second) {
		t.Errorf("second resolution did not overwrite: %+v", v)
	}
}

func TestActionClone_DeepCopiesPayload(t *testing.T) {
	a := &Action{
		Type:    "update",
		Data:    map[string]any{"nested": map[string]any{"k": "v"}, "list": []any{"a"}},
		Context: &NetworkContext{IPAddress: "10.0.0.1"},
	}
	c := a.Clone()
	c.Data["nested"].(map[string]any)["k"] = "changed"
	c.Data["list"].([]any)[0] = "changed"
	c.Context.IPAddress = "changed"

	if a.Data["nested"].(map[string]any)["k"] != "v" || a.Data["list"].([]any)[0] != "a" {
		t.Error("clone shares payload")
	}
	if a.Context.IPAddress != "10.0.0.1" {
		t.Error("clone shares context")
	}
}
