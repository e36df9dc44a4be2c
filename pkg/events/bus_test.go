package events

import (
	"context"
	"sync"
	"testing"
)

func TestBus_SubscribeReceivesEvents(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	bus.Emit(context.Background(), Event{Name: ComplianceAlert, Reason: "r"})

	select {
	case e := <-ch:
		if e.Name != ComplianceAlert || e.Reason != "r" {
			t.Errorf("unexpected event %+v", e)
		}
		if e.Timestamp.IsZero() {
			t.Error("timestamp should be set on emit")
		}
	default:
		t.Fatal("expected an event")
	}
}

func TestBus_FilterByName(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe(4, ComplianceBlock)
	defer cancel()

	bus.Emit(context.Background(), Event{Name: ComplianceChecked})
	bus.Emit(context.Background(), Event{Name: ComplianceBlock})

	if got := len(ch); got != 1 {
		t.Fatalf("expected 1 buffered event, got %d", got)
	}
	if e := <-ch; e.Name != ComplianceBlock {
		t.Errorf("got %q, want block", e.Name)
	}
}

func TestBus_FullSubscriberDropsWithoutBlocking(t *testing.T) {
	bus := NewBus(nil)
	_, cancel := bus.Subscribe(1)
	defer cancel()

	for i := 0; i < 5; i++ {
		bus.Emit(context.Background(), Event{Name: ComplianceChecked})
	}

	if got := bus.Dropped(); got != 4 {
		t.Errorf("Dropped() = %d, want 4", got)
	}
	if got := bus.Emitted(); got != 5 {
		t.Errorf("Emitted() = %d, want 5", got)
	}
}

func TestBus_CallbacksAndPanicIsolation(t *testing.T) {
	bus := NewBus(nil)
	var mu sync.Mutex
	var got []Name

	bus.OnEvent(SinkFunc(func(ctx context.Context, e Event) { panic("boom") }))
	bus.OnEvent(SinkFunc(func(ctx context.Context, e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Name)
	}))

	bus.Emit(context.Background(), Event{Name: ComplianceAlert})
	bus.Emit(context.Background(), Event{Name: ComplianceBlock})

	if len(got) != 2 || got[0] != ComplianceAlert || got[1] != ComplianceBlock {
		t.Errorf("callback received %v", got)
	}
}

func TestBus_CancelAndClose(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	ch2, cancel2 := bus.Subscribe(1)
	bus.Close()
	cancel2()
	if _, ok := <-ch2; ok {
		t.Error("channel should be closed after Close")
	}

	bus.Emit(context.Background(), Event{Name: ComplianceChecked})
	if bus.Emitted() != 0 {
		t.Error("emit after close should be ignored")
	}

	ch3, _ := bus.Subscribe(1)
	if _, ok := <-ch3; ok {
		t.Error("subscribe after close should return a closed channel")
	}
}
