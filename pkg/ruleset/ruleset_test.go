package ruleset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/manager"
	"mercator-hq/sentinel/pkg/retention"
)

const consentRules = `
rules:
  - id: gdpr-consent
    name: Consent required
    type: gdpr
    category: privacy
    severity: high
    enabled: true
    conditions:
      - type: user_consent
        field: data.consent
        operator: equals
        value: true
    actions:
      - type: block
schemas:
  - action_type: data_export
    fields:
      - {name: destination, kind: string, required: true}
`

const retentionRules = `
retention_policies:
  - id: logs
    name: Access logs
    data_types: [access_log]
    retention_period: 365
    archive_after: 30
    delete_after: 365
    enabled: true
    exceptions:
      - condition: "legal_hold == true"
        retention_period: 3650
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20-retention.yml", retentionRules)
	writeFile(t, dir, "10-gdpr.yaml", consentRules)
	writeFile(t, dir, "README.md", "not a rule file")
	writeFile(t, dir, ".hidden.yaml", "rules: [")

	set, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(set.Sources) != 2 || filepath.Base(set.Sources[0]) != "10-gdpr.yaml" {
		t.Errorf("sources = %v", set.Sources)
	}
	if len(set.Rules) != 1 || set.Rules[0].ID != "gdpr-consent" {
		t.Fatalf("rules = %+v", set.Rules)
	}
	rule := set.Rules[0]
	if rule.Severity != compliance.SeverityHigh || !rule.Enabled {
		t.Errorf("rule = %+v", rule)
	}
	if v, ok := rule.Conditions[0].Value.(bool); !ok || !v {
		t.Errorf("condition value = %#v, want true", rule.Conditions[0].Value)
	}
	if len(set.RetentionPolicies) != 1 || set.RetentionPolicies[0].Exceptions[0].RetentionPeriod != 3650 {
		t.Errorf("policies = %+v", set.RetentionPolicies)
	}
	if len(set.Schemas) != 1 || !set.Schemas[0].Fields[0].Required {
		t.Errorf("schemas = %+v", set.Schemas)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  []string
	}{
		{
			name:  "unknown field",
			files: map[string]string{"a.yaml": "rules:\n  - id: r1\n    severty: high\n"},
			want:  []string{"a.yaml", "severty"},
		},
		{
			name: "duplicate rule across files",
			files: map[string]string{
				"a.yaml": consentRules,
				"b.yaml": consentRules,
			},
			want: []string{`rule "gdpr-consent" already defined`},
		},
		{
			name:  "invalid rule",
			files: map[string]string{"a.yaml": "rules:\n  - id: r1\n    name: No conditions\n    type: gdpr\n"},
			want:  []string{`rule "r1"`, "at least one condition is required"},
		},
		{
			name: "invalid policy",
			files: map[string]string{"a.yaml": `
retention_policies:
  - id: p1
    name: Bad windows
    data_types: [x]
    retention_period: 10
    archive_after: 20
    delete_after: 10
`},
			want: []string{`retention policy "p1"`, "archive after (20) exceeds delete after (10)"},
		},
		{
			name:  "schema without action type",
			files: map[string]string{"a.yaml": "schemas:\n  - fields: []\n"},
			want:  []string{"schemas[0] has no action_type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}

			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Errorf("expected *LoadError in %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q does not contain %q", err, w)
				}
			}
		})
	}
}

func TestLoad_MissingPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestLoad_Warnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", strings.Replace(consentRules, "operator: equals", "operator: matches", 1))

	set, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(set.Warnings) != 1 || !strings.Contains(set.Warnings[0], `unknown operator "matches"`) {
		t.Errorf("warnings = %v", set.Warnings)
	}
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Rules) != 0 {
		t.Errorf("expected no rules, got %d", len(f.Rules))
	}
}

type fakeTarget struct {
	mu       sync.Mutex
	rules    map[string]*compliance.Rule
	policies map[string]*retention.Policy
	schemas  map[string]*compliance.Schema
	reject   map[string]bool
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		rules:    make(map[string]*compliance.Rule),
		policies: make(map[string]*retention.Policy),
		schemas:  make(map[string]*compliance.Schema),
		reject:   make(map[string]bool),
	}
}

func (f *fakeTarget) AddRule(r *compliance.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject[r.ID] {
		return errors.New("rejected")
	}
	f.rules[r.ID] = r
	return nil
}

func (f *fakeTarget) GetRule(id string) (*compliance.Rule, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	return r, ok
}

func (f *fakeTarget) RemoveRule(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rules[id]
	delete(f.rules, id)
	return ok
}

func (f *fakeTarget) AddRetentionPolicy(p *retention.Policy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies[p.ID] = p
	return nil
}

func (f *fakeTarget) RemoveRetentionPolicy(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.policies[id]
	delete(f.policies, id)
	return ok
}

func (f *fakeTarget) RegisterSchema(s *compliance.Schema) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemas[s.ActionType] = s
}

func (f *fakeTarget) ruleIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func ruleNamed(id string) *compliance.Rule {
	return &compliance.Rule{
		ID:         id,
		Name:       id,
		Type:       compliance.RuleTypeCustom,
		Enabled:    true,
		Conditions: []compliance.Condition{{Field: "data.x", Operator: compliance.OperatorEquals, Value: 1}},
		Actions:    []compliance.ResponseAction{{Type: compliance.ResponseLog}},
	}
}

func TestSyncer_RemovesOnlyFileRules(t *testing.T) {
	target := newFakeTarget()
	// Added through the API, never owned by the syncer.
	target.AddRule(ruleNamed("api-rule"))

	s := NewSyncer(target, nil)

	res, err := s.Sync(&Set{
		Rules:             []*compliance.Rule{ruleNamed("a"), ruleNamed("b")},
		RetentionPolicies: []*retention.Policy{{ID: "logs"}},
	})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.RulesApplied != 2 || res.PoliciesApplied != 1 {
		t.Errorf("first sync = %+v", res)
	}

	res, err = s.Sync(&Set{Rules: []*compliance.Rule{ruleNamed("b")}})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.RulesRemoved != 1 || res.PoliciesRemoved != 1 {
		t.Errorf("second sync = %+v", res)
	}
	if got := strings.Join(target.ruleIDs(), ","); got != "api-rule,b" {
		t.Errorf("rules = %s, want api-rule,b", got)
	}
}

func TestSyncer_RejectedRule(t *testing.T) {
	target := newFakeTarget()
	target.reject["bad"] = true
	s := NewSyncer(target, nil)

	res, err := s.Sync(&Set{
		Rules:   []*compliance.Rule{ruleNamed("bad"), ruleNamed("good")},
		Schemas: []*compliance.Schema{{ActionType: "data_export"}},
	})
	if err == nil || !strings.Contains(err.Error(), `rule "bad"`) {
		t.Fatalf("expected rejection error, got %v", err)
	}
	if res.RulesApplied != 1 || res.SchemasRegistered != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestSyncer_KeepsCountersAcrossReload(t *testing.T) {
	m, err := manager.New(manager.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	s := NewSyncer(m, nil)

	if _, err := s.Sync(&Set{Rules: []*compliance.Rule{ruleNamed("a")}}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for range 3 {
		action := &compliance.Action{Type: "data_access", UserID: "u1", Resource: "r", Data: map[string]any{"x": 2}}
		if _, err := m.CheckCompliance(ctx, action, ""); err != nil {
			t.Fatal(err)
		}
	}

	changed := ruleNamed("a")
	changed.Name = "renamed"
	if _, err := s.Sync(&Set{Rules: []*compliance.Rule{changed}}); err != nil {
		t.Fatal(err)
	}

	got, ok := m.GetRule("a")
	if !ok {
		t.Fatal("rule a missing after reload")
	}
	if got.Name != "renamed" {
		t.Errorf("name = %q, want reloaded definition", got.Name)
	}
	if got.Metadata.EvaluationCount != 3 || got.Metadata.ViolationCount != 3 || got.Metadata.LastEvaluated == nil {
		t.Errorf("counters = %d/%d last %v, want 3/3 kept", got.Metadata.EvaluationCount, got.Metadata.ViolationCount, got.Metadata.LastEvaluated)
	}
	if changed.Metadata.EvaluationCount != 0 {
		t.Error("Sync should not modify the loaded rule")
	}
}

func TestReloader_KeepsRulesOnBadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.yaml", consentRules)

	target := newFakeTarget()
	r := NewReloader([]string{path}, NewSyncer(target, nil), nil)

	if _, err := r.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	writeFile(t, dir, "rules.yaml", "rules: [")
	if _, err := r.Reload(context.Background()); err == nil {
		t.Fatal("expected error for malformed file")
	}
	if got := target.ruleIDs(); len(got) != 1 || got[0] != "gdpr-consent" {
		t.Errorf("rules = %v, want previous set kept", got)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.yaml", consentRules)

	target := newFakeTarget()
	reloader := NewReloader([]string{dir}, NewSyncer(target, nil), nil)
	if _, err := reloader.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	w, err := NewWatcher(reloader, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	updated := strings.Replace(consentRules, "id: gdpr-consent", "id: gdpr-consent-v2", 1)
	writeFile(t, dir, "rules.yaml", updated)

	deadline := time.Now().Add(5 * time.Second)
	for {
		ids := target.ruleIDs()
		if len(ids) == 1 && ids[0] == "gdpr-consent-v2" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("rules not reloaded, have %v", ids)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	calls := 0
	for i := 0; i < 5; i++ {
		d.Trigger(func() {
			mu.Lock()
			calls++
			mu.Unlock()
		})
	}
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
