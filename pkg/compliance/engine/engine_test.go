package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/compliance/violations"
	"mercator-hq/sentinel/pkg/events"
)

type countingRecorder struct {
	evaluations int
	violations  int
	actions     int
}

func (c *countingRecorder) RecordRuleEvaluation(string, bool, time.Duration) { c.evaluations++ }
func (c *countingRecorder) RecordViolation(compliance.RuleType, compliance.Severity) {
	c.violations++
}
func (c *countingRecorder) RecordActionResult(compliance.ResponseActionType, bool) { c.actions++ }

type failingStore struct {
	*violations.MemoryStore
}

func (failingStore) Save(context.Context, *compliance.Violation) error {
	return errors.New("disk full")
}

func newTestEngine(t *testing.T, sink events.Sink, rules ...*compliance.Rule) (*Engine, *violations.MemoryStore) {
	t.Helper()
	registry := NewRegistry(nil)
	for _, r := range rules {
		registry.Add(r)
	}
	store := violations.NewMemoryStore(0)
	eng, err := New(nil, registry, NewExecutor(sink, nil), store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return eng, store
}

func consentRule() *compliance.Rule {
	return &compliance.Rule{
		ID:       "gdpr-consent",
		Name:     "GDPR Consent",
		Type:     compliance.RuleTypeGDPR,
		Severity: compliance.SeverityHigh,
		Enabled:  true,
		Conditions: []compliance.Condition{
			{Type: compliance.ConditionUserConsent, Field: "data.consent", Operator: compliance.OperatorEquals, Value: true},
		},
		Actions: []compliance.ResponseAction{{Type: compliance.ResponseLog}},
	}
}

func encryptionRule() *compliance.Rule {
	return &compliance.Rule{
		ID:       "pci-encryption",
		Name:     "PCI Encryption",
		Type:     compliance.RuleTypePCIDSS,
		Severity: compliance.SeverityCritical,
		Enabled:  true,
		Conditions: []compliance.Condition{
			{Type: compliance.ConditionEncryption, Field: "data.encrypted", Operator: compliance.OperatorEquals, Value: true},
			{Type: compliance.ConditionDataTransfer, Field: "data.region", Operator: compliance.OperatorIn, Value: []any{"eu", "us"}},
		},
		Actions: []compliance.ResponseAction{
			{Type: compliance.ResponseLog},
			{Type: compliance.ResponseAlert, Parameters: map[string]any{"severity": "critical"}},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	store := violations.NewMemoryStore(0)

	if _, err := New(nil, nil, nil, store); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(nil registry) error = %v, want ErrInvalidConfig", err)
	}
	if _, err := New(nil, NewRegistry(nil), nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(nil store) error = %v, want ErrInvalidConfig", err)
	}
	bad := DefaultEngineConfig().WithStoreTimeout(0)
	if _, err := New(bad, NewRegistry(nil), nil, store); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(zero timeout) error = %v, want ErrInvalidConfig", err)
	}
}

func TestCheck_Compliant(t *testing.T) {
	eng, store := newTestEngine(t, nil, consentRule())

	result := eng.Check(context.Background(), &compliance.Action{
		Type:   "data_access",
		UserID: "u1",
		Data:   map[string]any{"consent": true},
	}, "t1")

	if !result.Compliant || len(result.Violations) != 0 {
		t.Fatalf("result = %+v, want compliant", result)
	}
	if result.Severity != compliance.SeverityLow || result.AuditRequired {
		t.Errorf("severity = %s audit = %v, want low/false", result.Severity, result.AuditRequired)
	}
	if len(result.Recommendations) != 0 {
		t.Errorf("recommendations = %v, want none", result.Recommendations)
	}
	if result.CheckID == "" || result.TenantID != "t1" {
		t.Errorf("check id %q tenant %q", result.CheckID, result.TenantID)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d violations, want 0", store.Len())
	}

	rule, _ := eng.Registry().Get("gdpr-consent")
	if rule.Metadata.EvaluationCount != 1 || rule.Metadata.ViolationCount != 0 {
		t.Errorf("counters = %d/%d, want 1/0", rule.Metadata.EvaluationCount, rule.Metadata.ViolationCount)
	}
}

func TestCheck_MissingConsent(t *testing.T) {
	eng, store := newTestEngine(t, nil, consentRule())

	result := eng.Check(context.Background(), &compliance.Action{
		Type:     "data_access",
		TenantID: "t9",
		Data:     map[string]any{},
	}, "")

	if result.Compliant || len(result.Violations) != 1 {
		t.Fatalf("result = %+v, want one violation", result)
	}
	v := result.Violations[0]
	if v.RuleID != "gdpr-consent" || v.Type != compliance.RuleTypeGDPR || v.Severity != compliance.SeverityHigh {
		t.Errorf("violation = %+v", v)
	}
	if v.Description != "GDPR Consent: data.consent equals true" {
		t.Errorf("description = %q", v.Description)
	}
	if v.Data.TenantID != "t9" || result.TenantID != "t9" {
		t.Errorf("tenant should fall back to the action tenant, got %q", v.Data.TenantID)
	}
	if v.Data.Action == nil || v.Data.Action.Type != "data_access" {
		t.Error("violation should carry a snapshot of the action")
	}
	if !result.AuditRequired || result.Severity != compliance.SeverityHigh {
		t.Errorf("severity = %s audit = %v", result.Severity, result.AuditRequired)
	}
	want := []string{
		"Prioritize remediation of high-severity violations",
		"Review GDPR data protection rules and consent records",
	}
	if len(result.Recommendations) != len(want) {
		t.Fatalf("recommendations = %v, want %v", result.Recommendations, want)
	}
	for i := range want {
		if result.Recommendations[i] != want[i] {
			t.Errorf("recommendation[%d] = %q, want %q", i, result.Recommendations[i], want[i])
		}
	}

	stored, err := store.Get(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("violation not stored: %v", err)
	}
	if stored.Resolved {
		t.Error("new violation should not be resolved")
	}
}

func TestCheck_OneViolationPerFailingCondition(t *testing.T) {
	sink := &recordingSink{}
	rec := &countingRecorder{}
	registry := NewRegistry(nil)
	registry.Add(encryptionRule())
	store := violations.NewMemoryStore(0)
	eng, err := New(nil, registry, NewExecutor(sink, nil), store, WithMetrics(rec))
	if err != nil {
		t.Fatal(err)
	}

	result := eng.Check(context.Background(), &compliance.Action{
		Type: "payment",
		Data: map[string]any{"encrypted": false, "region": "apac"},
	}, "t1")

	if len(result.Violations) != 2 {
		t.Fatalf("got %d violations, want 2", len(result.Violations))
	}
	if result.Severity != compliance.SeverityCritical {
		t.Errorf("severity = %s, want critical", result.Severity)
	}
	if result.Recommendations[0] != "Address critical violations immediately" {
		t.Errorf("first recommendation = %q", result.Recommendations[0])
	}
	if len(result.ActionResults) != 4 {
		t.Errorf("got %d action results, want 4", len(result.ActionResults))
	}
	if got := len(sink.byName(events.ComplianceAlert)); got != 2 {
		t.Errorf("got %d alert events, want 2", got)
	}
	if result.Blocked {
		t.Error("result should not be blocked without a block action")
	}

	rule, _ := eng.Registry().Get("pci-encryption")
	if rule.Metadata.EvaluationCount != 1 || rule.Metadata.ViolationCount != 1 {
		t.Errorf("counters = %d/%d, want 1/1", rule.Metadata.EvaluationCount, rule.Metadata.ViolationCount)
	}
	if rec.evaluations != 1 || rec.violations != 2 || rec.actions != 4 {
		t.Errorf("metrics = %+v", rec)
	}
	if store.Len() != 2 {
		t.Errorf("store has %d violations, want 2", store.Len())
	}
}

func TestCheck_SkipsDisabledRules(t *testing.T) {
	disabled := consentRule()
	disabled.Enabled = false
	eng, _ := newTestEngine(t, nil, disabled)

	result := eng.Check(context.Background(), &compliance.Action{Type: "data_access"}, "t1")
	if !result.Compliant {
		t.Error("disabled rule should not produce violations")
	}
	rule, _ := eng.Registry().Get("gdpr-consent")
	if rule.Metadata.EvaluationCount != 0 {
		t.Errorf("disabled rule evaluated %d times", rule.Metadata.EvaluationCount)
	}
}

func TestCheck_PanickingPredicate(t *testing.T) {
	broken := &compliance.Rule{
		ID:       "broken",
		Name:     "Broken",
		Type:     compliance.RuleTypeCustom,
		Severity: compliance.SeverityCritical,
		Enabled:  true,
		Conditions: []compliance.Condition{
			{Type: compliance.ConditionCustom, Predicate: func(compliance.Condition, *compliance.Action) bool { return false }},
			{Type: compliance.ConditionCustom, Predicate: func(compliance.Condition, *compliance.Action) bool { panic("bad predicate") }},
		},
	}
	eng, store := newTestEngine(t, nil, broken, consentRule())

	result := eng.Check(context.Background(), &compliance.Action{
		Type: "data_access",
		Data: map[string]any{"consent": true},
	}, "t1")

	if !result.Compliant {
		t.Errorf("panicking rule should contribute no violations, got %d", len(result.Violations))
	}
	if len(result.RuleFailures) != 1 || result.RuleFailures[0].RuleID != "broken" {
		t.Errorf("rule failures = %+v", result.RuleFailures)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d violations, want 0", store.Len())
	}

	rule, _ := eng.Registry().Get("gdpr-consent")
	if rule.Metadata.EvaluationCount != 1 {
		t.Error("rules after a failing rule should still be evaluated")
	}
}

func TestCheck_BlockAction(t *testing.T) {
	sink := &recordingSink{}
	rule := consentRule()
	rule.Actions = []compliance.ResponseAction{
		{Type: compliance.ResponseBlock, Parameters: map[string]any{"reason": "no consent on file"}},
	}
	eng, _ := newTestEngine(t, sink, rule)

	result := eng.Check(context.Background(), &compliance.Action{Type: "export"}, "t1")

	if !result.Blocked {
		t.Error("result should be blocked")
	}
	blocks := sink.byName(events.ComplianceBlock)
	if len(blocks) != 1 || blocks[0].Reason != "no consent on file" {
		t.Errorf("block events = %+v", blocks)
	}
}

func TestCheck_StoreFailureDoesNotFailCheck(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Add(consentRule())
	eng, err := New(nil, registry, nil, failingStore{violations.NewMemoryStore(0)})
	if err != nil {
		t.Fatal(err)
	}

	result := eng.Check(context.Background(), &compliance.Action{Type: "export"}, "t1")
	if len(result.Violations) != 1 {
		t.Errorf("got %d violations, want 1", len(result.Violations))
	}
}

func TestCheck_ViolationCountPerEvaluation(t *testing.T) {
	eng, _ := newTestEngine(t, nil, consentRule())
	ctx := context.Background()

	eng.Check(ctx, &compliance.Action{Type: "a", Data: map[string]any{"consent": true}}, "t1")
	eng.Check(ctx, &compliance.Action{Type: "a"}, "t1")
	eng.Check(ctx, &compliance.Action{Type: "a"}, "t1")
	eng.Check(ctx, &compliance.Action{Type: "a", Data: map[string]any{"consent": true}}, "t1")

	rule, _ := eng.Registry().Get("gdpr-consent")
	if rule.Metadata.EvaluationCount != 4 || rule.Metadata.ViolationCount != 2 {
		t.Errorf("counters = %d/%d, want 4/2", rule.Metadata.EvaluationCount, rule.Metadata.ViolationCount)
	}
	if rule.ComplianceRate() != 50 {
		t.Errorf("ComplianceRate() = %v, want 50", rule.ComplianceRate())
	}

	evals, viols := eng.Registry().Totals()
	if evals != 4 || viols != 2 {
		t.Errorf("Totals() = %d/%d", evals, viols)
	}
}
