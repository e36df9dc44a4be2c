package statestore

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type sample struct {
	ID    string         `json:"id"`
	Count int            `json:"count"`
	Tags  map[string]any `json:"tags"`
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	in := sample{ID: "a", Count: 3, Tags: map[string]any{"k": "v"}}
	if err := store.SetState(ctx, "audit:a", in, Metadata{Persistent: true, TTL: time.Hour}); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}

	var out sample
	if err := store.GetState(ctx, "audit:a", &out); err != nil {
		t.Fatalf("GetState() failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("GetState() = %+v, want %+v", out, in)
	}

	in.Count = 4
	if err := store.SetState(ctx, "audit:a", in, Metadata{}); err != nil {
		t.Fatalf("SetState() overwrite failed: %v", err)
	}
	if err := store.GetState(ctx, "audit:a", &out); err != nil || out.Count != 4 {
		t.Errorf("overwrite not visible: %+v, %v", out, err)
	}

	if err := store.SetState(ctx, "audit:b", sample{ID: "b"}, Metadata{}); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}
	if err := store.SetState(ctx, "other:c", sample{ID: "c"}, Metadata{}); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}

	keys, err := store.Keys(ctx, "audit:")
	if err != nil {
		t.Fatalf("Keys() failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"audit:a", "audit:b"}) {
		t.Errorf("Keys() = %v", keys)
	}

	if err := store.DeleteState(ctx, "audit:a"); err != nil {
		t.Fatalf("DeleteState() failed: %v", err)
	}
	if err := store.GetState(ctx, "audit:a", &out); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetState() after delete = %v, want ErrNotFound", err)
	}
	if err := store.DeleteState(ctx, "missing"); err != nil {
		t.Errorf("DeleteState() of missing key = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	exerciseStore(t, store)
}

func TestMemoryStore_TTL(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.SetState(ctx, "k", 1, Metadata{TTL: time.Minute}); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}
	if err := store.SetState(ctx, "forever", 1, Metadata{}); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}

	now = now.Add(2 * time.Minute)
	var v int
	if err := store.GetState(ctx, "k", &v); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired key: got %v, want ErrNotFound", err)
	}
	if keys, _ := store.Keys(ctx, ""); len(keys) != 1 || keys[0] != "forever" {
		t.Errorf("Keys() should hide expired entries, got %v", keys)
	}

	removed, err := store.Cleanup(ctx)
	if err != nil || removed != 1 {
		t.Errorf("Cleanup() = %d, %v; want 1, nil", removed, err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	store.Close()

	if err := store.SetState(context.Background(), "k", 1, Metadata{}); !errors.Is(err, ErrClosed) {
		t.Errorf("SetState() after close = %v, want ErrClosed", err)
	}
	if err := store.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() after close = %v, want ErrClosed", err)
	}
}

func TestMemoryStore_EncodeError(t *testing.T) {
	store := NewMemoryStore()
	err := store.SetState(context.Background(), "k", make(chan int), Metadata{})

	var serr *Error
	if !errors.As(err, &serr) || serr.Operation != "encode" {
		t.Errorf("expected encode error, got %v", err)
	}
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "state.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newTestSQLiteStore(t))
}

func TestSQLiteStore_TTLAndCleanup(t *testing.T) {
	store := newTestSQLiteStore(t)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.SetState(ctx, "audit:old", "x", Metadata{Persistent: true, TTL: time.Hour}); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}
	if err := store.SetState(ctx, "audit:new", "y", Metadata{Persistent: true, TTL: 48 * time.Hour}); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}

	now = now.Add(2 * time.Hour)

	var s string
	if err := store.GetState(ctx, "audit:old", &s); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired key: got %v, want ErrNotFound", err)
	}
	if err := store.GetState(ctx, "audit:new", &s); err != nil || s != "y" {
		t.Errorf("live key: got %q, %v", s, err)
	}

	removed, err := store.Cleanup(ctx)
	if err != nil || removed != 1 {
		t.Errorf("Cleanup() = %d, %v; want 1, nil", removed, err)
	}
}

func TestSQLiteStore_TransientPurgedOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	if err := store.SetState(ctx, "durable", 1, Metadata{Persistent: true}); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}
	if err := store.SetState(ctx, "transient", 2, Metadata{}); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	keys, err := reopened.Keys(ctx, "")
	if err != nil {
		t.Fatalf("Keys() failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"durable"}) {
		t.Errorf("Keys() after reopen = %v, want [durable]", keys)
	}
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore(SQLiteConfig{}); err == nil {
		t.Error("expected error for empty path")
	}
}
