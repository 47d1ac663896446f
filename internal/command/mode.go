package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/Everest18/claude-code-telegram-control/internal/dispatch"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
)

// Mode replies, following the original bot's wording.
const (
	replyModeLocal = "💻 Switched to LOCAL mode\n\nTasks will execute via Claude Code on your desktop.\nFaster execution but requires desktop to be running."
	replyModeCloud = "☁️ Switched to CLOUD mode\n\nTasks will execute via GitHub Actions.\nWorks even when your desktop is offline!"
)

// ModeHandler implements /mode [local|cloud|auto]: show or set the
// chat's execution mode override.
type ModeHandler struct {
	dispatch *dispatch.Manager
}

// Compile-time interface guards.
var (
	_ Handler = (*ModeHandler)(nil)
	_ Usager  = (*ModeHandler)(nil)
)

// NewModeHandler creates the /mode handler.
func NewModeHandler(m *dispatch.Manager) *ModeHandler {
	return &ModeHandler{dispatch: m}
}

func (h *ModeHandler) Name() string        { return "mode" }
func (h *ModeHandler) Usage() string       { return "[local|cloud|auto]" }
func (h *ModeHandler) Description() string { return "Show or set execution mode" }

// Execute shows the current mode when called bare, or stores the
// requested override. Auto stays auto: the route is picked again at
// each dispatch rather than frozen at the moment /mode ran.
func (h *ModeHandler) Execute(ctx context.Context, req Request) (Response, error) {
	switch mode := task.ExecMode(strings.ToLower(strings.TrimSpace(req.Args))); mode {
	case "":
		current := req.Session.ExecMode()
		label := string(current)
		if label == "" {
			label = string(task.ModeAuto)
		}
		resolved := h.dispatch.Resolve(ctx, current)
		return Response{Text: fmt.Sprintf(
			"🔄 Execution mode: %s\nResolves to: %s\n\nUse /mode local, /mode cloud, or /mode auto.",
			strings.ToUpper(label), strings.ToUpper(string(resolved)),
		)}, nil

	case task.ModeLocal:
		req.Session.SetExecMode(task.ModeLocal)
		return Response{Text: replyModeLocal}, nil

	case task.ModeCloud:
		req.Session.SetExecMode(task.ModeCloud)
		return Response{Text: replyModeCloud}, nil

	case task.ModeAuto:
		req.Session.SetExecMode(task.ModeAuto)
		detected := h.dispatch.Resolve(ctx, task.ModeAuto)
		return Response{Text: fmt.Sprintf(
			"🔄 Auto-detect enabled\n\nDetected mode: %s\n\nI'll automatically choose the best execution method.",
			strings.ToUpper(string(detected)),
		)}, nil

	default:
		return Response{Text: fmt.Sprintf("❌ Unknown mode %q. Use local, cloud, or auto.", req.Args)}, nil
	}
}
