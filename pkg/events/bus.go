// Package events delivers compliance signals (checked, alert, block,
// notification) to interested subscribers without blocking the check path.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/sentinel/pkg/compliance"
)

// Name identifies the kind of signal.
type Name string

const (
	// ComplianceChecked is emitted after every compliance check.
	ComplianceChecked Name = "complianceChecked"

	// ComplianceAlert is emitted by alert response actions.
	ComplianceAlert Name = "complianceAlert"

	// ComplianceBlock is emitted by block response actions.
	ComplianceBlock Name = "complianceBlock"

	// ComplianceNotification is emitted by notify response actions.
	ComplianceNotification Name = "complianceNotification"
)

// Event is a single signal. Only the fields relevant to Name are set.
type Event struct {
	Name       Name                  `json:"name"`
	Timestamp  time.Time             `json:"timestamp"`
	TenantID   string                `json:"tenant_id,omitempty"`
	Action     *compliance.Action    `json:"action,omitempty"`
	Result     *compliance.Result    `json:"result,omitempty"`
	Violation  *compliance.Violation `json:"violation,omitempty"`
	Severity   compliance.Severity   `json:"severity,omitempty"`
	Reason     string                `json:"reason,omitempty"`
	Parameters map[string]any        `json:"parameters,omitempty"`
}

// Sink receives events. Implementations must not block.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, e Event) {
	f(ctx, e)
}

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

type subscription struct {
	id     uint64
	ch     chan Event
	filter map[Name]struct{}
}

func (s *subscription) wants(n Name) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[n]
	return ok
}

// Bus fans events out to channel subscribers and callbacks. Delivery to a
// channel never blocks: when a subscriber's buffer is full the event is
// dropped for that subscriber and counted.
type Bus struct {
	mu        sync.RWMutex
	subs      map[uint64]*subscription
	callbacks []Sink
	nextID    uint64
	closed    bool

	dropped atomic.Int64
	emitted atomic.Int64
	logger  *slog.Logger
}

// NewBus creates an empty event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[uint64]*subscription),
		logger: logger.With("component", "events.bus"),
	}
}

// Subscribe returns a channel receiving events with the given names (all
// events when names is empty) and a function that cancels the subscription
// and closes the channel.
func (b *Bus) Subscribe(buffer int, names ...Name) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &subscription{ch: make(chan Event, buffer)}
	if len(names) > 0 {
		sub.filter = make(map[Name]struct{}, len(names))
		for _, n := range names {
			sub.filter[n] = struct{}{}
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[sub.id]; ok {
				delete(b.subs, sub.id)
				close(sub.ch)
			}
			b.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// OnEvent registers a callback sink. Callbacks run synchronously on the
// emitting goroutine and must return quickly.
func (b *Bus) OnEvent(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks = append(b.callbacks, s)
}

// Emit delivers e to every matching subscriber and callback.
func (b *Bus) Emit(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	b.emitted.Add(1)

	for _, sub := range b.subs {
		if !sub.wants(e.Name) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
			b.logger.Warn("event subscriber buffer full, dropping event",
				"event", e.Name,
				"subscriber", sub.id,
			)
		}
	}
	callbacks := b.callbacks
	b.mu.RUnlock()

	for _, cb := range callbacks {
		b.invoke(ctx, cb, e)
	}
}

func (b *Bus) invoke(ctx context.Context, cb Sink, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event callback panicked", "event", e.Name, "panic", r)
		}
	}()
	cb.Emit(ctx, e)
}

// Dropped returns the number of events dropped because a subscriber was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Emitted returns the number of events emitted.
func (b *Bus) Emitted() int64 {
	return b.emitted.Load()
}

// Close closes every subscriber channel. Later emits are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
