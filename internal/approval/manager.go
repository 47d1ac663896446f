package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State represents the current state of the approval slot.
type State int

// State values for the approval state machine.
const (
	StateIdle    State = iota // No pending approval
	StatePending              // Waiting for the operator
	StateTimeout              // Timed out, denied by default
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// DefaultTimeout is how long a request waits for the operator before
// being denied.
const DefaultTimeout = 15 * time.Minute

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Timeout bounds how long Begin waits for a decision. Defaults to
	// DefaultTimeout.
	Timeout time.Duration

	// Notifier announces requests to the operator. May be nil in tests;
	// then only Resolve or the timeout can finish a Begin.
	Notifier Notifier

	// Policy auto-decides requests before the operator is involved.
	Policy Policy

	// Store, if non-nil, receives the approval trail. Failures are
	// logged and otherwise ignored; history never blocks a decision.
	Store Store

	// Now overrides time.Now for testing.
	Now func() time.Time

	Logger *slog.Logger
}

// Manager runs the approval flow. It holds at most one pending request,
// matching the single-file handshake on the agent side: a second request
// while one is pending fails with ErrAlreadyPending.
// It transitions: idle → pending → (response | timeout → deny-by-default).
type Manager struct {
	timeout  time.Duration
	notifier Notifier
	policy   Policy
	store    Store
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	current Request
	respCh  chan Response
}

// NewManager creates a Manager in the idle state.
func NewManager(cfg ManagerConfig) *Manager {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		timeout:  timeout,
		notifier: cfg.Notifier,
		policy:   cfg.Policy,
		store:    cfg.Store,
		now:      now,
		logger:   logger,
	}
}

// State returns the current approval state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending returns the request currently waiting for a decision.
func (m *Manager) Pending() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePending {
		return Request{}, false
	}
	return m.current, true
}

// Begin runs one approval flow and blocks until a decision is made.
// The policy is consulted first; ask-level requests are announced through
// the notifier and wait for Resolve. On timeout the request is denied by
// default and ErrTimeout is returned alongside the deny response.
func (m *Manager) Begin(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		id, err := NewID()
		if err != nil {
			return Response{}, err
		}
		req.ID = id
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = m.now()
	}

	// Policy short-circuit: the operator never sees allow/deny matches.
	switch m.policy.Evaluate(req.Content) {
	case LevelAllow:
		resp := Response{Approved: true, DecidedBy: "policy", Reason: "matched allow pattern"}
		m.recordDecided(ctx, req, resp)
		return resp, nil
	case LevelDeny:
		resp := Response{Approved: false, DecidedBy: "policy", Reason: "matched deny pattern"}
		m.recordDecided(ctx, req, resp)
		return resp, nil
	}

	m.mu.Lock()
	if m.state == StatePending {
		m.mu.Unlock()
		return Response{}, ErrAlreadyPending
	}
	m.state = StatePending
	m.current = req
	m.respCh = make(chan Response, 1)
	respCh := m.respCh
	m.mu.Unlock()

	m.recordPending(ctx, req)

	defer func() {
		m.mu.Lock()
		// A timeout leaves its mark until the next request arrives.
		if m.state == StatePending {
			m.state = StateIdle
		}
		m.current = Request{}
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	notifyErrCh := make(chan error, 1)
	if m.notifier != nil {
		go func() {
			if err := m.notifier.NotifyApproval(ctx, req); err != nil {
				notifyErrCh <- err
			}
		}()
	}

	select {
	case resp := <-respCh:
		m.recordOutcome(ctx, req.ID, resp)
		return resp, nil

	case err := <-notifyErrCh:
		// The operator never saw the request; fail rather than hang
		// until the timeout denies it silently.
		m.recordOutcome(ctx, req.ID, Response{DecidedBy: "system", Reason: "notify failed"})
		return Response{}, fmt.Errorf("approval: notify failed: %w", err)

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			m.mu.Lock()
			m.state = StateTimeout
			m.mu.Unlock()
			resp := Response{Approved: false, DecidedBy: "timeout", Reason: "timed out"}
			m.recordOutcome(ctx, req.ID, resp)
			return resp, ErrTimeout
		}
		m.recordOutcome(ctx, req.ID, Response{DecidedBy: "system", Reason: "canceled"})
		return Response{}, ctx.Err()
	}
}

// recordPending inserts the request into the approval trail.
func (m *Manager) recordPending(ctx context.Context, req Request) {
	if m.store == nil {
		return
	}
	e := Entry{
		ID:        req.ID,
		TaskID:    req.TaskID,
		Content:   req.Content,
		ChatID:    req.ChatID,
		CreatedAt: req.CreatedAt,
	}
	if err := m.store.Record(context.WithoutCancel(ctx), e); err != nil {
		m.logger.Warn("approval: history record failed", "id", req.ID, "error", err)
	}
}

// recordDecided inserts an already-resolved entry (policy decisions).
func (m *Manager) recordDecided(ctx context.Context, req Request, resp Response) {
	if m.store == nil {
		return
	}
	e := Entry{
		ID:         req.ID,
		TaskID:     req.TaskID,
		Content:    req.Content,
		ChatID:     req.ChatID,
		CreatedAt:  req.CreatedAt,
		ResolvedAt: m.now(),
		Outcome:    OutcomeFromResponse(resp),
		DecidedBy:  resp.DecidedBy,
		Reason:     resp.Reason,
	}
	if err := m.store.Record(context.WithoutCancel(ctx), e); err != nil {
		m.logger.Warn("approval: history record failed", "id", req.ID, "error", err)
	}
}

// recordOutcome updates the trail once a pending request is decided.
// The parent context may already be done (timeout path), so the write
// uses a detached context.
func (m *Manager) recordOutcome(ctx context.Context, id string, resp Response) {
	if m.store == nil {
		return
	}
	if err := m.store.Resolve(context.WithoutCancel(ctx), id, resp, m.now()); err != nil {
		m.logger.Warn("approval: history update failed", "id", id, "error", err)
	}
}

// Resolve delivers the operator's decision for the pending request.
// An empty id targets whatever is pending; a non-empty id must match.
// Returns the request that was decided.
func (m *Manager) Resolve(id string, resp Response) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePending {
		return Request{}, ErrNoPending
	}
	if id != "" && id != m.current.ID {
		return Request{}, fmt.Errorf("%w: %s", ErrUnknownID, id)
	}

	select {
	case m.respCh <- resp:
	default:
		// A decision is already buffered; this one came second.
		return Request{}, ErrNoPending
	}
	return m.current, nil
}
