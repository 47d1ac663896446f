package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Publish(Event{Type: TypeTaskCreated, TaskID: "t-1"})

	select {
	case ev := <-ch:
		if ev.Type != TypeTaskCreated {
			t.Errorf("type = %q, want %q", ev.Type, TypeTaskCreated)
		}
		if ev.TaskID != "t-1" {
			t.Errorf("task_id = %q, want %q", ev.TaskID, "t-1")
		}
		if ev.Time.IsZero() {
			t.Error("expected timestamp to be stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch1, cancel1 := b.Subscribe(1)
	defer cancel1()
	ch2, cancel2 := b.Subscribe(1)
	defer cancel2()

	b.Publish(Event{Type: TypeAgentStatus, State: "online"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.State != "online" {
				t.Errorf("subscriber %d: state = %q, want online", i, ev.State)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBus_Cancel(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, cancel := b.Subscribe(1)

	cancel()
	// Safe to call twice.
	cancel()

	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", b.Subscribers())
	}

	// Channel is closed after cancel.
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}

	// Publishing after cancel must not panic.
	b.Publish(Event{Type: TypeTaskCreated})
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	b := NewBus()
	_, cancel := b.Subscribe(1)
	defer cancel()

	// Buffer of 1: the second publish overflows and is dropped.
	b.Publish(Event{Type: TypeTaskCreated})
	b.Publish(Event{Type: TypeTaskCreated})

	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestBus_PreservesExplicitTime(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	b := NewBus()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(Event{Type: TypeConfigReloaded, Time: fixed})

	ev := <-ch
	if !ev.Time.Equal(fixed) {
		t.Errorf("time = %v, want %v", ev.Time, fixed)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, cancel := b.Subscribe(256)
	defer cancel()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(Event{Type: TypeTaskStateChanged})
		}()
	}
	wg.Wait()

	for range 100 {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("missing events after concurrent publish")
		}
	}
}
