package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"github.com/Everest18/claude-code-telegram-control/internal/dispatch"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
)

// AgentStatus is the result of probing the local agent.
type AgentStatus struct {
	// Online reports whether the agent looks alive: a fresh status file
	// or a matching process.
	Online bool

	// StatusText is the agent's last self-reported status line, empty
	// when no status file exists.
	StatusText string

	// CheckedAt is when the probe ran.
	CheckedAt time.Time
}

// AgentProber checks whether the local agent is reachable. The bridge
// package implements it from status-file freshness and process
// detection.
type AgentProber interface {
	Probe(ctx context.Context) AgentStatus
}

// statusOrder fixes the rendering order of task counts.
var statusOrder = []task.State{
	task.StatePending,
	task.StateDispatched,
	task.StateRunning,
	task.StateDone,
	task.StateFailed,
	task.StateRejected,
}

// StatusHandlerConfig carries the dependencies for /status.
type StatusHandlerConfig struct {
	// Store is queried for task counts by state. Required.
	Store task.Store

	// Approvals reports the pending approval, if any. Required.
	Approvals *approval.Manager

	// Dispatch resolves what mode auto currently maps to. Required.
	Dispatch *dispatch.Manager

	// Prober checks agent liveness. Optional; without it the agent
	// section is omitted.
	Prober AgentProber

	// Started is when the daemon came up, for the uptime line.
	Started time.Time

	// Now overrides the clock in tests.
	Now func() time.Time
}

// StatusHandler implements /status: a single overview of the daemon,
// the agent, pending approvals, and task counts.
type StatusHandler struct {
	store     task.Store
	approvals *approval.Manager
	dispatch  *dispatch.Manager
	prober    AgentProber
	started   time.Time
	now       func() time.Time
}

var _ Handler = (*StatusHandler)(nil)

// NewStatusHandler creates the /status handler.
func NewStatusHandler(cfg StatusHandlerConfig) *StatusHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &StatusHandler{
		store:     cfg.Store,
		approvals: cfg.Approvals,
		dispatch:  cfg.Dispatch,
		prober:    cfg.Prober,
		started:   cfg.Started,
		now:       now,
	}
}

func (h *StatusHandler) Name() string        { return "status" }
func (h *StatusHandler) Description() string { return "Current status" }

func (h *StatusHandler) Execute(ctx context.Context, req Request) (Response, error) {
	now := h.now()

	var b strings.Builder
	b.WriteString("📊 Claude Code Status\n\n")
	fmt.Fprintf(&b, "Uptime: %s\n", now.Sub(h.started).Truncate(time.Second))
	b.WriteString(h.modeLine(ctx, req))

	var agent AgentStatus
	if h.prober != nil {
		agent = h.prober.Probe(ctx)
		if agent.Online {
			b.WriteString("Agent: 🟢 Online\n")
		} else {
			b.WriteString("Agent: 🔴 Offline\n")
		}
	}

	if pending, ok := h.approvals.Pending(); ok {
		b.WriteString("\n🚨 APPROVAL PENDING\n")
		fmt.Fprintf(&b, "%s · waiting %s\n", pending.ID, now.Sub(pending.CreatedAt).Truncate(time.Second))
		if pending.Content != "" {
			b.WriteString(pending.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(h.taskLine(ctx))

	if h.prober != nil {
		b.WriteString("\n\n")
		if agent.StatusText != "" {
			b.WriteString("Claude: " + agent.StatusText)
		} else {
			b.WriteString("⚪ No status file found")
		}
	}

	return Response{Text: b.String()}, nil
}

// modeLine renders the execution mode, expanding auto to what it
// currently resolves to.
func (h *StatusHandler) modeLine(ctx context.Context, req Request) string {
	current := req.Session.ExecMode()
	switch current {
	case task.ModeLocal, task.ModeCloud:
		return fmt.Sprintf("Mode: %s\n", strings.ToUpper(string(current)))
	default:
		resolved := h.dispatch.Resolve(ctx, current)
		return fmt.Sprintf("Mode: AUTO (resolves to %s)\n", strings.ToUpper(string(resolved)))
	}
}

// taskLine renders non-zero task counts in a fixed order. Store
// failures degrade the line instead of failing the whole command;
// /status is most needed when something is already wrong.
func (h *StatusHandler) taskLine(ctx context.Context) string {
	counts, err := h.store.CountByState(ctx)
	if err != nil {
		return "Tasks: unavailable"
	}
	var parts []string
	for _, s := range statusOrder {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "Tasks: none recorded"
	}
	return "Tasks: " + strings.Join(parts, ", ")
}
