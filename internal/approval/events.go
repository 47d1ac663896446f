package approval

import (
	"context"
	"errors"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/events"
)

// Gate is the agent-facing slice of the Manager: raise a request, block
// for the decision.
type Gate interface {
	Begin(ctx context.Context, req Request) (Response, error)
}

// EventPublisher is the bus slice the decorators announce on.
type EventPublisher interface {
	Publish(ev events.Event)
}

// PublishResolved wraps a gate so every decision that reaches the caller
// is announced as an approval.resolved event. Each Begin entry point
// wraps its own gate: all outcomes, including the timeout denial, return
// through Begin, so the caller is the one place that sees them all.
// Requests that never resolved (already pending, notify failure,
// cancellation) are not announced.
func PublishResolved(gate Gate, bus EventPublisher) Gate {
	return &resolvedGate{gate: gate, bus: bus, now: time.Now}
}

type resolvedGate struct {
	gate Gate
	bus  EventPublisher
	now  func() time.Time
}

func (g *resolvedGate) Begin(ctx context.Context, req Request) (Response, error) {
	// Assign the ID here so the event and the notifier's prompt agree on
	// which approval this is.
	if req.ID == "" {
		id, err := NewID()
		if err != nil {
			return Response{}, err
		}
		req.ID = id
	}

	resp, err := g.gate.Begin(ctx, req)
	if err != nil && !errors.Is(err, ErrTimeout) {
		return resp, err
	}

	state := "denied"
	if resp.Approved {
		state = "approved"
	}
	g.bus.Publish(events.Event{
		Type:       events.TypeApprovalResolved,
		Time:       g.now(),
		ApprovalID: req.ID,
		TaskID:     req.TaskID,
		ChatID:     req.ChatID,
		State:      state,
		Detail:     resp.DecidedBy,
	})
	return resp, err
}

// PublishRequested wraps a notifier so successfully announced requests
// also appear on the bus as approval.requested events.
func PublishRequested(n Notifier, bus EventPublisher) Notifier {
	return &requestedNotifier{inner: n, bus: bus, now: time.Now}
}

type requestedNotifier struct {
	inner Notifier
	bus   EventPublisher
	now   func() time.Time
}

func (n *requestedNotifier) NotifyApproval(ctx context.Context, req Request) error {
	if err := n.inner.NotifyApproval(ctx, req); err != nil {
		return err
	}
	n.bus.Publish(events.Event{
		Type:       events.TypeApprovalRequested,
		Time:       n.now(),
		ApprovalID: req.ID,
		TaskID:     req.TaskID,
		ChatID:     req.ChatID,
	})
	return nil
}
