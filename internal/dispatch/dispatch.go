// Package dispatch routes tasks to executors. An Executor owns one route
// (local file handshake or cloud repository dispatch); the Manager picks
// the route, hands the task over, and records the outcome.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer delegates to the global provider; a noop until telemetry is
// enabled.
var tracer = otel.Tracer("ccontrol/dispatch")

// Executor runs tasks over one route. Implementations are registered
// under their route name ("local", "cloud").
type Executor interface {
	// Name returns the route this executor serves.
	Name() string

	// Execute hands the task to the route. A nil return means the task
	// was accepted, not that it finished; completion arrives later via
	// the bridge or the webhook.
	Execute(ctx context.Context, t *task.Task) error
}

// Config groups the Manager's dependencies.
type Config struct {
	// Store records task state transitions. Required.
	Store task.Store

	// DefaultMode is used when a chat has no mode override. Empty means
	// ModeAuto.
	DefaultMode task.ExecMode

	// DetectLocal reports whether a local agent session is running.
	// Used to resolve ModeAuto. Nil means never local.
	DetectLocal func(ctx context.Context) bool

	// Bus, if non-nil, receives task state change events.
	Bus *events.Bus

	// Audit, if non-nil, receives dispatch audit events.
	Audit *security.AuditLogger

	Logger *slog.Logger
}

// Manager owns the executor registry and the routing decision.
type Manager struct {
	mu        sync.RWMutex
	executors map[task.ExecMode]Executor
	cfg       Config
	logger    *slog.Logger
}

// NewManager creates a Manager with no executors registered.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = task.ModeAuto
	}
	if !cfg.DefaultMode.Valid() {
		return nil, fmt.Errorf("dispatch: invalid default mode %q", cfg.DefaultMode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		executors: make(map[task.ExecMode]Executor),
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Register adds an executor under its route name. The name must be a
// concrete route (local or cloud), and each route takes one executor.
func (m *Manager) Register(e Executor) error {
	route := task.ExecMode(e.Name())
	if route != task.ModeLocal && route != task.ModeCloud {
		return fmt.Errorf("%w: %q", ErrBadRoute, e.Name())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.executors[route]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateExecutor, route)
	}
	m.executors[route] = e
	return nil
}

// Routes returns the registered route names.
func (m *Manager) Routes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	routes := make([]string, 0, len(m.executors))
	for route := range m.executors {
		routes = append(routes, string(route))
	}
	return routes
}

// Resolve turns a requested mode into a concrete route. An empty request
// falls back to the configured default; auto picks local when a local
// agent is detected and cloud otherwise.
func (m *Manager) Resolve(ctx context.Context, requested task.ExecMode) task.ExecMode {
	mode := requested
	if mode == "" {
		mode = m.cfg.DefaultMode
	}
	if mode != task.ModeAuto {
		return mode
	}
	if m.cfg.DetectLocal != nil && m.cfg.DetectLocal(ctx) {
		return task.ModeLocal
	}
	return task.ModeCloud
}

// Dispatch hands a created task to the executor for its route. The
// task's Mode must already be resolved (local or cloud). On success the
// task moves to dispatched; on failure it moves to failed with the error
// as detail, and the error is returned for the caller's reply.
func (m *Manager) Dispatch(ctx context.Context, t *task.Task) error {
	ctx, span := tracer.Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("task.id", t.ID),
			attribute.String("task.route", string(t.Mode)),
		))
	defer span.End()

	m.mu.RLock()
	exec, ok := m.executors[t.Mode]
	m.mu.RUnlock()

	if !ok {
		span.SetStatus(codes.Error, "no executor for route")
		m.fail(ctx, t, fmt.Sprintf("no executor for route %q", t.Mode))
		return fmt.Errorf("%w: %s", ErrNoExecutor, t.Mode)
	}

	if err := exec.Execute(ctx, t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "executor failed")
		m.logger.Error("dispatch: executor failed",
			"task_id", t.ID,
			"route", t.Mode,
			"error", err,
		)
		m.fail(ctx, t, err.Error())
		return fmt.Errorf("dispatch: %s executor: %w", t.Mode, err)
	}

	if _, err := m.cfg.Store.Transition(ctx, t.ID, task.StateDispatched, ""); err != nil {
		// The executor accepted the task; a bookkeeping failure should
		// not be reported to the operator as a dispatch failure.
		m.logger.Warn("dispatch: state update failed", "task_id", t.ID, "error", err)
	}
	t.State = task.StateDispatched

	m.logger.Info("dispatch: task routed",
		"task_id", t.ID,
		"route", t.Mode,
		"chat_id", t.ChatID,
	)
	if m.cfg.Audit != nil {
		m.cfg.Audit.Log(security.AuditEvent{
			Type:    security.EventTaskDispatched,
			TaskID:  t.ID,
			Channel: t.Channel,
			ChatID:  t.ChatID,
			Detail:  string(t.Mode),
		})
	}
	m.publish(t, task.StateDispatched, "")
	return nil
}

// fail marks the task failed and publishes the transition. Bookkeeping
// errors are logged, not returned; the dispatch error itself is what the
// caller reports.
func (m *Manager) fail(ctx context.Context, t *task.Task, detail string) {
	if _, err := m.cfg.Store.Transition(ctx, t.ID, task.StateFailed, detail); err != nil {
		m.logger.Warn("dispatch: failed-state update failed", "task_id", t.ID, "error", err)
	}
	t.State = task.StateFailed
	m.publish(t, task.StateFailed, detail)
}

func (m *Manager) publish(t *task.Task, next task.State, detail string) {
	if m.cfg.Bus == nil {
		return
	}
	m.cfg.Bus.Publish(events.Event{
		Type:   events.TypeTaskStateChanged,
		TaskID: t.ID,
		ChatID: t.ChatID,
		State:  string(next),
		Detail: detail,
	})
}
