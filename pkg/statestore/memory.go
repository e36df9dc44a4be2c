package statestore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore keeps state in process memory. Values are JSON encoded on
// write so callers never share memory with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetState implements Store.
func (m *MemoryStore) SetState(ctx context.Context, key string, value any, meta Metadata) error {
	data, err := json.Marshal(value)
	if err != nil {
		return newError("memory", "encode", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	entry := memoryEntry{data: data}
	if meta.TTL > 0 {
		entry.expiresAt = m.now().Add(meta.TTL)
	}
	m.entries[key] = entry
	return nil
}

// GetState implements Store.
func (m *MemoryStore) GetState(ctx context.Context, key string, dest any) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || entry.expired(m.now()) {
		return ErrNotFound
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		return newError("memory", "decode", key, err)
	}
	return nil
}

// DeleteState implements Store.
func (m *MemoryStore) DeleteState(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.entries, key)
	return nil
}

// Keys implements Store.
func (m *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	now := m.now()
	keys := make([]string, 0)
	for k, e := range m.entries {
		if strings.HasPrefix(k, prefix) && !e.expired(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Cleanup removes expired entries and returns how many were removed.
func (m *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, including expired ones not yet
// cleaned up.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Ping implements Pinger.
func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = make(map[string]memoryEntry)
	return nil
}
