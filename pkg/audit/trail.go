package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/statestore"
)

// Stats reports trail counters.
type Stats struct {
	Size            int    `json:"size"`
	Appended        uint64 `json:"appended"`
	Evicted         uint64 `json:"evicted"`
	Persisted       uint64 `json:"persisted"`
	PersistFailures uint64 `json:"persist_failures"`
	Dropped         uint64 `json:"dropped"`
}

// Trail is the bounded audit trail.
type Trail struct {
	config *Config
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	ring    []*Entry
	head    int // index of the oldest entry
	size    int
	seq     uint64
	evicted uint64

	store     statestore.Store
	queue     chan *Entry
	queueMu   sync.RWMutex
	closed    bool
	done      chan struct{}
	wg        sync.WaitGroup
	persisted atomic.Uint64
	failures  atomic.Uint64
	dropped   atomic.Uint64
}

// NewTrail creates an audit trail. A nil store keeps entries in memory only.
func NewTrail(config *Config, store statestore.Store, logger *slog.Logger) (*Trail, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.validateFor(store != nil); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Trail{
		config: config,
		logger: logger.With("component", "audit.trail"),
		now:    time.Now,
		ring:   make([]*Entry, config.Capacity),
		store:  store,
		done:   make(chan struct{}),
	}

	if store != nil {
		t.queue = make(chan *Entry, config.PersistBuffer)
		t.wg.Add(1)
		go t.worker()
	}

	t.logger.Info("audit trail initialized",
		"capacity", config.Capacity,
		"persist", store != nil,
		"persist_buffer", config.PersistBuffer,
	)
	return t, nil
}

// Log appends an entry for a checked action and returns a copy of it.
func (t *Trail) Log(ctx context.Context, action *compliance.Action, result *compliance.Result) *Entry {
	entry := newEntry(uuid.New().String(), action, result, t.now())
	t.append(entry)
	t.enqueue(ctx, entry)
	return entry.clone()
}

func (t *Trail) append(entry *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	entry.Sequence = t.seq

	capacity := len(t.ring)
	if t.size < capacity {
		t.ring[(t.head+t.size)%capacity] = entry
		t.size++
		return
	}
	t.ring[t.head] = entry
	t.head = (t.head + 1) % capacity
	t.evicted++
}

func (t *Trail) enqueue(ctx context.Context, entry *Entry) {
	if t.queue == nil {
		return
	}

	t.queueMu.RLock()
	defer t.queueMu.RUnlock()
	if t.closed {
		t.dropped.Add(1)
		t.logger.WarnContext(ctx, "audit trail closed, entry not persisted", "entry_id", entry.ID)
		return
	}

	select {
	case t.queue <- entry:
	default:
		t.dropped.Add(1)
		t.logger.WarnContext(ctx, "audit persist queue full, entry not persisted",
			"entry_id", entry.ID,
			"queue_capacity", cap(t.queue),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	for {
		select {
		case entry := <-t.queue:
			t.persist(entry)

		case <-t.done:
			for {
				select {
				case entry := <-t.queue:
					t.persist(entry)
				default:
					return
				}
			}
		}
	}
}

func (t *Trail) persist(entry *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), t.config.PersistTimeout)
	defer cancel()

	err := t.store.SetState(ctx, KeyPrefix+entry.ID, entry, statestore.Metadata{
		Persistent: true,
		TTL:        t.config.TTL,
	})
	if err != nil {
		t.failures.Add(1)
		t.logger.Error("failed to persist audit entry",
			"entry_id", entry.ID,
			"error", err,
		)
		return
	}
	t.persisted.Add(1)
}

// Query returns copies of the entries matching filter in chronological
// order. With a positive Limit only the most recent Limit matches are
// returned. A nil filter matches everything.
func (t *Trail) Query(filter *Filter) []*Entry {
	if filter == nil {
		filter = &Filter{}
	}

	t.mu.RLock()
	matched := make([]*Entry, 0, t.size)
	capacity := len(t.ring)
	for i := 0; i < t.size; i++ {
		e := t.ring[(t.head+i)%capacity]
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}
	t.mu.RUnlock()

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[len(matched)-filter.Limit:]
	}

	out := make([]*Entry, len(matched))
	for i, e := range matched {
		out[i] = e.clone()
	}
	return out
}

// Size returns the number of entries held in memory.
func (t *Trail) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Stats returns the trail counters.
func (t *Trail) Stats() Stats {
	t.mu.RLock()
	s := Stats{Size: t.size, Appended: t.seq, Evicted: t.evicted}
	t.mu.RUnlock()

	s.Persisted = t.persisted.Load()
	s.PersistFailures = t.failures.Load()
	s.Dropped = t.dropped.Load()
	return s
}

// Close stops accepting persist work and waits for queued entries to be
// written. Entries logged after Close stay in memory only.
func (t *Trail) Close() error {
	t.queueMu.Lock()
	if t.closed {
		t.queueMu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	t.queueMu.Unlock()

	t.wg.Wait()

	t.logger.Info("audit trail closed",
		"persisted", t.persisted.Load(),
		"persist_failures", t.failures.Load(),
		"dropped", t.dropped.Load(),
	)
	return nil
}
