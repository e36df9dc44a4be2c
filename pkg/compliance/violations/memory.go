package violations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/compliance"
)

type slot struct {
	v    *compliance.Violation
	seq  uint64
	used bool
}

// MemoryStore is an arena of violation slots indexed by id. Freed slots are
// reused. With a positive capacity the store evicts the oldest resolved
// violation first, and the oldest violation overall when none is resolved.
type MemoryStore struct {
	mu       sync.RWMutex
	slots    []slot
	index    map[string]int
	free     []int
	nextSeq  uint64
	capacity int
	evicted  int64
	logger   *slog.Logger
}

// NewMemoryStore creates a memory store holding at most capacity
// violations. A capacity of zero or less means unbounded.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		index:    make(map[string]int),
		capacity: capacity,
		logger:   slog.Default().With("component", "violations.memory"),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, v *compliance.Violation) error {
	if v == nil || v.ID == "" {
		return fmt.Errorf("violation id cannot be empty")
	}
	c := v.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.index[c.ID]; ok {
		m.slots[i].v = c
		return nil
	}

	if m.capacity > 0 && len(m.index) >= m.capacity {
		m.evictLocked()
	}

	m.nextSeq++
	s := slot{v: c, seq: m.nextSeq, used: true}
	var i int
	if n := len(m.free); n > 0 {
		i = m.free[n-1]
		m.free = m.free[:n-1]
		m.slots[i] = s
	} else {
		i = len(m.slots)
		m.slots = append(m.slots, s)
	}
	m.index[c.ID] = i
	return nil
}

func (m *MemoryStore) evictLocked() {
	victim, victimResolved := -1, false
	for i, s := range m.slots {
		if !s.used {
			continue
		}
		switch {
		case victim < 0:
			victim, victimResolved = i, s.v.Resolved
		case s.v.Resolved && !victimResolved:
			victim, victimResolved = i, true
		case s.v.Resolved == victimResolved && s.seq < m.slots[victim].seq:
			victim = i
		}
	}
	if victim < 0 {
		return
	}

	id := m.slots[victim].v.ID
	delete(m.index, id)
	m.slots[victim] = slot{}
	m.free = append(m.free, victim)
	m.evicted++
	m.logger.Debug("violation evicted", "violation_id", id, "resolved", victimResolved)
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, id string) (*compliance.Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[id]
	if !ok {
		return nil, compliance.ErrViolationNotFound
	}
	return m.slots[i].v.Clone(), nil
}

// Resolve implements Store.
func (m *MemoryStore) Resolve(ctx context.Context, id, resolvedBy, notes string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[id]
	if !ok {
		return false, nil
	}
	m.slots[i].v.Resolve(resolvedBy, notes, at)
	return true, nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context, filter *Filter) ([]*compliance.Violation, error) {
	m.mu.RLock()
	matched := make([]slot, 0)
	for _, s := range m.slots {
		if s.used && filter.Matches(s.v) {
			matched = append(matched, slot{v: s.v.Clone(), seq: s.seq})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.v.Timestamp.Equal(b.v.Timestamp) {
			return a.v.Timestamp.Before(b.v.Timestamp)
		}
		return a.seq < b.seq
	})

	out := make([]*compliance.Violation, len(matched))
	for i, s := range matched {
		out[i] = s.v
	}
	return paginate(out, filter), nil
}

// Count implements Store.
func (m *MemoryStore) Count(ctx context.Context, filter *Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, s := range m.slots {
		if s.used && filter.Matches(s.v) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored violations.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index)
}

// Evicted returns how many violations were evicted to respect capacity.
func (m *MemoryStore) Evicted() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.evicted
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
