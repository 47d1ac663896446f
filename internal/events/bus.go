// Package events provides the in-process publish/subscribe bus that
// connects task, approval, and agent state changes to their consumers:
// channel notifications, the gateway event stream, and metrics.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Type identifies what happened.
type Type string

// Event types published on the bus.
const (
	TypeTaskCreated       Type = "task.created"
	TypeTaskStateChanged  Type = "task.state_changed"
	TypeApprovalRequested Type = "approval.requested"
	TypeApprovalResolved  Type = "approval.resolved"
	TypeAgentStatus       Type = "agent.status"
	TypeConfigReloaded    Type = "config.reloaded"
)

// Event is a single bus notification. Fields beyond Type and Time are
// populated according to the event type.
type Event struct {
	Type       Type      `json:"type"`
	Time       time.Time `json:"time"`
	TaskID     string    `json:"task_id,omitempty"`
	ApprovalID string    `json:"approval_id,omitempty"`
	ChatID     string    `json:"chat_id,omitempty"`
	State      string    `json:"state,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Bus fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event, and the drop is
// counted. Consumers that must not miss anything (the store) are called
// synchronously by the publisher instead of subscribing here.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	dropped atomic.Int64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
	}
}

// Subscribe registers a new subscriber with the given channel buffer size
// and returns the receive channel plus a cancel function. Cancel closes
// the channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish sends the event to all current subscribers. The timestamp is
// stamped if unset. Slow subscribers are skipped, not waited for.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many events were dropped because a subscriber's
// buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
