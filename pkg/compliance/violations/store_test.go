package violations

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mercator-hq/sentinel/pkg/compliance"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func violation(id, ruleID, tenant string, typ compliance.RuleType, sev compliance.Severity, offset time.Duration) *compliance.Violation {
	return &compliance.Violation{
		ID:          id,
		RuleID:      ruleID,
		Type:        typ,
		Severity:    sev,
		Description: "violation " + id,
		Data:        compliance.ViolationData{TenantID: tenant},
		Timestamp:   base.Add(offset),
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	fixtures := []*compliance.Violation{
		violation("v3", "r1", "t1", compliance.RuleTypeGDPR, compliance.SeverityHigh, 3*time.Minute),
		violation("v1", "r1", "t1", compliance.RuleTypeGDPR, compliance.SeverityLow, time.Minute),
		violation("v2", "r2", "t2", compliance.RuleTypeHIPAA, compliance.SeverityCritical, 2*time.Minute),
	}
	for _, v := range fixtures {
		if err := store.Save(ctx, v); err != nil {
			t.Fatalf("Save(%s) failed: %v", v.ID, err)
		}
	}

	all, err := store.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "v1" || all[1].ID != "v2" || all[2].ID != "v3" {
		t.Fatalf("List() should be ordered by timestamp, got %v", ids(all))
	}

	tests := []struct {
		name   string
		filter *Filter
		want   []string
	}{
		{name: "by rule", filter: &Filter{RuleID: "r1"}, want: []string{"v1", "v3"}},
		{name: "by type", filter: &Filter{Type: compliance.RuleTypeHIPAA}, want: []string{"v2"}},
		{name: "by severity", filter: &Filter{Severity: compliance.SeverityHigh}, want: []string{"v3"}},
		{name: "by tenant", filter: &Filter{TenantID: "t1"}, want: []string{"v1", "v3"}},
		{name: "time window", filter: &Filter{StartTime: ptr(base.Add(2 * time.Minute)), EndTime: ptr(base.Add(3 * time.Minute))}, want: []string{"v2", "v3"}},
		{name: "limit", filter: &Filter{Limit: 2}, want: []string{"v1", "v2"}},
		{name: "offset", filter: &Filter{Offset: 1}, want: []string{"v2", "v3"}},
		{name: "offset and limit", filter: &Filter{Offset: 1, Limit: 1}, want: []string{"v2"}},
		{name: "offset past end", filter: &Filter{Offset: 10}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			if fmt.Sprint(ids(got)) != fmt.Sprint(tt.want) {
				t.Errorf("List() = %v, want %v", ids(got), tt.want)
			}
		})
	}

	// Resolution is last-write-wins.
	ok, err := store.Resolve(ctx, "v1", "alice", "first", base.Add(time.Hour))
	if err != nil || !ok {
		t.Fatalf("Resolve() = %v, %v", ok, err)
	}
	ok, err = store.Resolve(ctx, "v1", "bob", "second", base.Add(2*time.Hour))
	if err != nil || !ok {
		t.Fatalf("second Resolve() = %v, %v", ok, err)
	}
	v, err := store.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !v.Resolved || v.ResolvedBy != "bob" || v.ResolutionNotes != "second" || !v.ResolvedAt.Equal(base.Add(2*time.Hour)) {
		t.Errorf("second resolution should win, got %+v", v)
	}

	ok, err = store.Resolve(ctx, "missing", "alice", "", base)
	if err != nil || ok {
		t.Errorf("Resolve(missing) = %v, %v; want false, nil", ok, err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, compliance.ErrViolationNotFound) {
		t.Errorf("Get(missing) = %v, want ErrViolationNotFound", err)
	}

	resolved := true
	if n, err := store.Count(ctx, &Filter{Resolved: &resolved}); err != nil || n != 1 {
		t.Errorf("Count(resolved) = %d, %v; want 1", n, err)
	}
	if n, err := store.Count(ctx, nil); err != nil || n != 3 {
		t.Errorf("Count() = %d, %v; want 3", n, err)
	}

	// Returned values are copies.
	v.Description = "mutated"
	again, _ := store.Get(ctx, "v1")
	if again.Description == "mutated" {
		t.Error("Get() should return a copy")
	}

	if err := store.Save(ctx, &compliance.Violation{}); err == nil {
		t.Error("Save() without id should fail")
	}
}

func ids(vs []*compliance.Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.ID
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(&SQLiteConfig{
		Path:    filepath.Join(t.TempDir(), "violations.db"),
		WALMode: true,
	})
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "violations.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	if err := store.Save(ctx, violation("v1", "r1", "t1", compliance.RuleTypeSOX, compliance.SeverityMedium, 0)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	v, err := reopened.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("Get() after reopen failed: %v", err)
	}
	if v.Type != compliance.RuleTypeSOX || !v.Timestamp.Equal(base) {
		t.Errorf("unexpected violation after reopen: %+v", v)
	}
}

func TestMemoryStore_EvictsResolvedFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("v%d", i)
		if err := store.Save(ctx, violation(id, "r", "", compliance.RuleTypeGDPR, compliance.SeverityLow, time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}
	if _, err := store.Resolve(ctx, "v2", "ops", "", base); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if err := store.Save(ctx, violation("v4", "r", "", compliance.RuleTypeGDPR, compliance.SeverityLow, 4*time.Second)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := store.Get(ctx, "v2"); !errors.Is(err, compliance.ErrViolationNotFound) {
		t.Error("resolved violation v2 should have been evicted first")
	}

	if err := store.Save(ctx, violation("v5", "r", "", compliance.RuleTypeGDPR, compliance.SeverityLow, 5*time.Second)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := store.Get(ctx, "v1"); !errors.Is(err, compliance.ErrViolationNotFound) {
		t.Error("oldest violation v1 should have been evicted when none is resolved")
	}

	if store.Len() != 3 {
		t.Errorf("Len() = %d, want 3", store.Len())
	}
	if store.Evicted() != 2 {
		t.Errorf("Evicted() = %d, want 2", store.Evicted())
	}

	all, _ := store.List(ctx, nil)
	if fmt.Sprint(ids(all)) != "[v3 v4 v5]" {
		t.Errorf("List() = %v, want [v3 v4 v5]", ids(all))
	}
}

func TestMemoryStore_OverwriteKeepsSlot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	v := violation("v1", "r", "", compliance.RuleTypeGDPR, compliance.SeverityLow, 0)
	store.Save(ctx, v)
	v.Severity = compliance.SeverityHigh
	store.Save(ctx, v)

	if store.Len() != 1 || store.Evicted() != 0 {
		t.Errorf("overwrite should not allocate: len=%d evicted=%d", store.Len(), store.Evicted())
	}
	got, _ := store.Get(ctx, "v1")
	if got.Severity != compliance.SeverityHigh {
		t.Errorf("overwrite not applied: %s", got.Severity)
	}
}

func TestMemoryStore_ConcurrentSaveAndResolve(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("v%d", i)
			store.Save(ctx, violation(id, "r", "", compliance.RuleTypeGDPR, compliance.SeverityLow, time.Duration(i)))
			store.Resolve(ctx, id, "ops", "", base)
		}(i)
	}
	wg.Wait()

	resolved := true
	if n, _ := store.Count(ctx, &Filter{Resolved: &resolved}); n != 50 {
		t.Errorf("Count(resolved) = %d, want 50", n)
	}
}
