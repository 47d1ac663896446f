package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"github.com/Everest18/claude-code-telegram-control/internal/bridge"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolServer implements the tool handlers. Domain failures (unknown
// task, bad transition, pending approval) return tool errors the agent
// can read and react to; infrastructure failures return Go errors.
type toolServer struct {
	store  task.Store
	bus    *events.Bus
	logger *slog.Logger

	mu   sync.Mutex
	gate approval.Gate
}

func newToolServer(store task.Store, logger *slog.Logger) *toolServer {
	return &toolServer{store: store, logger: logger}
}

// setGate installs the approval gate once the app has wired the manager.
func (ts *toolServer) setGate(g approval.Gate) {
	ts.mu.Lock()
	ts.gate = g
	ts.mu.Unlock()
}

func (ts *toolServer) approvalGate() approval.Gate {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.gate
}

func (ts *toolServer) register(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("task_list",
			mcp.WithDescription("List tasks from the control plane, newest first. Returns a JSON array."),
			mcp.WithString("state",
				mcp.Description("Filter by state: pending, dispatched, running, done, failed, rejected."),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of tasks to return. 0 means all."),
			),
		),
		ts.taskList,
	)

	srv.AddTool(
		mcp.NewTool("task_claim",
			mcp.WithDescription("Claim a dispatched task for execution, marking it running. Returns the task as JSON."),
			mcp.WithString("task_id",
				mcp.Required(),
				mcp.Description("ID of the task to claim."),
			),
		),
		ts.taskClaim,
	)

	srv.AddTool(
		mcp.NewTool("task_complete",
			mcp.WithDescription("Record the outcome of a running task."),
			mcp.WithString("task_id",
				mcp.Required(),
				mcp.Description("ID of the task to complete."),
			),
			mcp.WithString("result",
				mcp.Description("Summary of what was done, stored on the task."),
			),
			mcp.WithBoolean("success",
				mcp.Description("Whether the task succeeded. Defaults to true."),
			),
		),
		ts.taskComplete,
	)

	srv.AddTool(
		mcp.NewTool("approval_request",
			mcp.WithDescription("Ask the operator for permission and block until they decide. Returns APPROVED or REJECTED."),
			mcp.WithString("content",
				mcp.Required(),
				mcp.Description("The action needing approval, verbatim."),
			),
			mcp.WithString("task_id",
				mcp.Description("ID of the task this request belongs to, when known."),
			),
		),
		ts.approvalRequest,
	)
}

func (ts *toolServer) taskList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var filter task.ListFilter
	if s := req.GetString("state", ""); s != "" {
		st := task.State(s)
		if !st.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown state %q", s)), nil
		}
		filter.State = st
	}
	filter.Limit = req.GetInt("limit", 0)

	tasks, err := ts.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("[]"), nil
	}
	b, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (ts *toolServer) taskClaim(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t, err := ts.store.Transition(ctx, id, task.StateRunning, "")
	switch {
	case errors.Is(err, task.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("task %s not found", id)), nil
	case errors.Is(err, task.ErrInvalidTransition):
		return mcp.NewToolResultError(err.Error()), nil
	case err != nil:
		return nil, fmt.Errorf("claim task: %w", err)
	}
	ts.publishState(t)

	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (ts *toolServer) taskComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	next := task.StateDone
	if !req.GetBool("success", true) {
		next = task.StateFailed
	}

	t, err := ts.store.Transition(ctx, id, next, req.GetString("result", ""))
	switch {
	case errors.Is(err, task.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("task %s not found", id)), nil
	case errors.Is(err, task.ErrInvalidTransition):
		return mcp.NewToolResultError(err.Error()), nil
	case err != nil:
		return nil, fmt.Errorf("complete task: %w", err)
	}
	ts.publishState(t)

	return mcp.NewToolResultText(fmt.Sprintf("task %s recorded as %s", t.ID, t.State)), nil
}

func (ts *toolServer) approvalRequest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gate := ts.approvalGate()
	if gate == nil {
		return nil, fmt.Errorf("approval flow not available")
	}

	resp, err := gate.Begin(ctx, approval.Request{
		TaskID:  req.GetString("task_id", ""),
		Content: content,
	})
	switch {
	case errors.Is(err, approval.ErrAlreadyPending):
		return mcp.NewToolResultError("another approval is already pending; ask again after it resolves"), nil
	case errors.Is(err, approval.ErrTimeout):
		return mcp.NewToolResultText(bridge.DecisionRejected + ": timed out"), nil
	case err != nil:
		return nil, err
	}

	if resp.Approved {
		return mcp.NewToolResultText(bridge.DecisionApproved), nil
	}
	if resp.Reason != "" {
		return mcp.NewToolResultText(bridge.DecisionRejected + ": " + resp.Reason), nil
	}
	return mcp.NewToolResultText(bridge.DecisionRejected), nil
}

func (ts *toolServer) publishState(t *task.Task) {
	if ts.bus == nil {
		return
	}
	ts.bus.Publish(events.Event{
		Type:   events.TypeTaskStateChanged,
		Time:   time.Now(),
		TaskID: t.ID,
		ChatID: t.ChatID,
		State:  string(t.State),
	})
}
