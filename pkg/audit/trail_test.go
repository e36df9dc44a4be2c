package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/statestore"
)

func newTestTrail(t *testing.T, config *Config, store statestore.Store) *Trail {
	t.Helper()
	trail, err := NewTrail(config, store, nil)
	if err != nil {
		t.Fatalf("NewTrail() error = %v", err)
	}
	t.Cleanup(func() { trail.Close() })
	return trail
}

func action(typ, user, tenant string) *compliance.Action {
	return &compliance.Action{
		Type:     typ,
		UserID:   user,
		TenantID: tenant,
		Resource: "customers",
		Data:     map[string]any{"fields": []any{"email"}},
		Context: &compliance.NetworkContext{
			IPAddress: "10.0.0.1",
			UserAgent: "curl/8",
			SessionID: "s1",
		},
		DataClassification: "pii",
		RetentionPolicy:    "customer-data",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero capacity", mutate: func(c *Config) { c.Capacity = 0 }, wantErr: true},
		{name: "negative buffer", mutate: func(c *Config) { c.PersistBuffer = -1 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.PersistTimeout = 0 }, wantErr: true},
		{name: "negative ttl", mutate: func(c *Config) { c.TTL = -time.Hour }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestNewTrail_PersistBuffer(t *testing.T) {
	config := DefaultConfig()
	config.PersistBuffer = 0

	if _, err := NewTrail(config, statestore.NewMemoryStore(), nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewTrail(store, zero buffer) error = %v, want ErrInvalidConfig", err)
	}

	trail, err := NewTrail(config, nil, nil)
	if err != nil {
		t.Fatalf("memory-only trail should not need a persist buffer: %v", err)
	}
	trail.Close()
}

func TestTrail_LogBuildsEntry(t *testing.T) {
	trail := newTestTrail(t, nil, nil)

	result := &compliance.Result{
		CheckID:   "c1",
		Compliant: false,
		Severity:  compliance.SeverityHigh,
		Violations: []*compliance.Violation{
			{RuleID: "r1"}, {RuleID: "r2"}, {RuleID: "r1"},
		},
	}
	entry := trail.Log(context.Background(), action("data_access", "u1", "t1"), result)

	if entry.ID == "" || entry.Sequence != 1 || entry.Timestamp.IsZero() {
		t.Errorf("entry identity = %q/%d/%v", entry.ID, entry.Sequence, entry.Timestamp)
	}
	if entry.Action != "data_access" || entry.UserID != "u1" || entry.TenantID != "t1" || entry.Resource != "customers" {
		t.Errorf("entry subject = %+v", entry)
	}
	if entry.IPAddress != "10.0.0.1" || entry.UserAgent != "curl/8" || entry.SessionID != "s1" {
		t.Errorf("entry network context = %q %q %q", entry.IPAddress, entry.UserAgent, entry.SessionID)
	}

	cc := entry.Compliance
	if cc == nil {
		t.Fatal("entry has no compliance context")
	}
	if cc.CheckID != "c1" || cc.Compliant || cc.Severity != compliance.SeverityHigh || cc.ViolationCount != 3 {
		t.Errorf("compliance context = %+v", cc)
	}
	if fmt.Sprint(cc.RuleIDs) != "[r1 r2]" {
		t.Errorf("rule ids = %v, want [r1 r2]", cc.RuleIDs)
	}
	if cc.DataClassification != "pii" || cc.RetentionPolicy != "customer-data" {
		t.Errorf("classification/policy = %q/%q", cc.DataClassification, cc.RetentionPolicy)
	}
}

func TestTrail_EntriesAreSnapshots(t *testing.T) {
	trail := newTestTrail(t, nil, nil)
	a := action("data_access", "u1", "t1")

	entry := trail.Log(context.Background(), a, nil)
	a.Data["fields"] = "changed"
	entry.Data["fields"] = "changed too"

	got := trail.Query(nil)
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if fields, ok := got[0].Data["fields"].([]any); !ok || fields[0] != "email" {
		t.Errorf("stored data changed: %v", got[0].Data)
	}
	if got[0].Compliance != nil {
		t.Error("entry without a result should have no compliance context")
	}
}

func TestTrail_RingKeepsMostRecent(t *testing.T) {
	trail := newTestTrail(t, nil, nil)
	ctx := context.Background()

	total := 10_050
	for i := 0; i < total; i++ {
		trail.Log(ctx, &compliance.Action{Type: "a", UserID: fmt.Sprintf("u%d", i)}, nil)
	}

	if trail.Size() != 10_000 {
		t.Fatalf("Size() = %d, want 10000", trail.Size())
	}
	entries := trail.Query(nil)
	if len(entries) != 10_000 {
		t.Fatalf("Query() returned %d entries", len(entries))
	}
	if entries[0].UserID != "u50" || entries[len(entries)-1].UserID != "u10049" {
		t.Errorf("retained window = %s..%s, want u50..u10049", entries[0].UserID, entries[len(entries)-1].UserID)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Sequence != entries[i-1].Sequence+1 {
			t.Fatalf("sequence gap at %d: %d after %d", i, entries[i].Sequence, entries[i-1].Sequence)
		}
	}

	stats := trail.Stats()
	if stats.Appended != uint64(total) || stats.Evicted != 50 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestTrail_ConcurrentAppends(t *testing.T) {
	config := DefaultConfig()
	config.Capacity = 1000
	trail := newTestTrail(t, config, nil)

	var wg sync.WaitGroup
	for g := 0; g < 50; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				trail.Log(context.Background(), &compliance.Action{Type: "a"}, nil)
			}
		}()
	}
	wg.Wait()

	entries := trail.Query(nil)
	if len(entries) != 1000 {
		t.Fatalf("got %d entries, want 1000", len(entries))
	}
	if entries[0].Sequence != 4001 || entries[999].Sequence != 5000 {
		t.Errorf("retained sequences %d..%d, want 4001..5000", entries[0].Sequence, entries[999].Sequence)
	}
}

func TestTrail_Query(t *testing.T) {
	trail := newTestTrail(t, nil, nil)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	trail.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	ctx := context.Background()
	trail.Log(ctx, action("read", "u1", "t1"), nil)   // 12:01
	trail.Log(ctx, action("export", "u2", "t1"), nil) // 12:02
	trail.Log(ctx, action("read", "u1", "t2"), nil)   // 12:03
	trail.Log(ctx, action("read", "u3", "t1"), nil)   // 12:04
	trail.Log(ctx, action("delete", "u1", "t1"), nil) // 12:05

	tests := []struct {
		name   string
		filter *Filter
		want   []uint64
	}{
		{name: "all", filter: &Filter{}, want: []uint64{1, 2, 3, 4, 5}},
		{name: "user", filter: &Filter{UserID: "u1"}, want: []uint64{1, 3, 5}},
		{name: "tenant", filter: &Filter{TenantID: "t1"}, want: []uint64{1, 2, 4, 5}},
		{name: "action type", filter: &Filter{ActionType: "read"}, want: []uint64{1, 3, 4}},
		{name: "time window inclusive", filter: &Filter{StartTime: base.Add(2 * time.Minute), EndTime: base.Add(4 * time.Minute)}, want: []uint64{2, 3, 4}},
		{name: "limit keeps most recent", filter: &Filter{TenantID: "t1", Limit: 2}, want: []uint64{4, 5}},
		{name: "limit larger than matches", filter: &Filter{UserID: "u2", Limit: 10}, want: []uint64{2}},
		{name: "no match", filter: &Filter{UserID: "nobody"}, want: []uint64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trail.Query(tt.filter)
			seqs := make([]uint64, len(got))
			for i, e := range got {
				seqs[i] = e.Sequence
			}
			if fmt.Sprint(seqs) != fmt.Sprint(tt.want) {
				t.Errorf("Query() sequences = %v, want %v", seqs, tt.want)
			}
		})
	}
}

func TestTrail_PersistsEntries(t *testing.T) {
	store := statestore.NewMemoryStore()
	trail, err := NewTrail(nil, store, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, trail.Log(ctx, action("read", "u1", "t1"), &compliance.Result{Compliant: true}).ID)
	}
	if err := trail.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, id := range ids {
		var got Entry
		if err := store.GetState(ctx, KeyPrefix+id, &got); err != nil {
			t.Fatalf("entry %s not persisted: %v", id, err)
		}
		if got.ID != id || got.Compliance == nil || !got.Compliance.Compliant {
			t.Errorf("persisted entry = %+v", got)
		}
	}
	if stats := trail.Stats(); stats.Persisted != 3 || stats.Dropped != 0 {
		t.Errorf("stats = %+v", stats)
	}

	loaded, err := Load(ctx, store, &Filter{UserID: "u1"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("Load() returned %d entries, want 3", len(loaded))
	}
	for i, e := range loaded {
		if e.ID != ids[i] {
			t.Errorf("loaded[%d] = %s, want %s", i, e.ID, ids[i])
		}
	}

	entry := trail.Log(ctx, action("read", "u1", "t1"), nil)
	if err := store.GetState(ctx, KeyPrefix+entry.ID, &Entry{}); !errors.Is(err, statestore.ErrNotFound) {
		t.Errorf("entry logged after Close should not be persisted, got %v", err)
	}
	if trail.Size() != 4 {
		t.Errorf("Size() = %d, want 4", trail.Size())
	}
}

type blockingStore struct {
	statestore.Store
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) SetState(ctx context.Context, key string, value any, meta statestore.Metadata) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return s.Store.SetState(ctx, key, value, meta)
}

func TestTrail_FullQueueDropsPersistence(t *testing.T) {
	store := &blockingStore{
		Store:   statestore.NewMemoryStore(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	config := DefaultConfig()
	config.PersistBuffer = 1
	trail, err := NewTrail(config, store, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	trail.Log(ctx, action("a", "u1", "t1"), nil)
	<-store.started
	trail.Log(ctx, action("b", "u1", "t1"), nil)
	trail.Log(ctx, action("c", "u1", "t1"), nil)

	close(store.release)
	trail.Close()

	stats := trail.Stats()
	if stats.Persisted != 2 || stats.Dropped != 1 {
		t.Errorf("stats = %+v, want 2 persisted and 1 dropped", stats)
	}
	if trail.Size() != 3 {
		t.Errorf("dropped persistence should still keep the entry in memory, Size() = %d", trail.Size())
	}
}

type failingStore struct {
	statestore.Store
}

func (failingStore) SetState(context.Context, string, any, statestore.Metadata) error {
	return errors.New("disk full")
}

func TestTrail_PersistFailuresAreCounted(t *testing.T) {
	trail, err := NewTrail(nil, failingStore{statestore.NewMemoryStore()}, nil)
	if err != nil {
		t.Fatal(err)
	}

	entry := trail.Log(context.Background(), action("a", "u1", "t1"), nil)
	if entry == nil {
		t.Fatal("Log() should succeed when persistence fails")
	}
	trail.Close()

	if stats := trail.Stats(); stats.PersistFailures != 1 || stats.Persisted != 0 {
		t.Errorf("stats = %+v", stats)
	}
}
