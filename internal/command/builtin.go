package command

import (
	"context"
	"strings"
	"time"
)

// Usager is implemented by handlers whose commands take arguments; the
// hint is shown between the command name and its description.
type Usager interface {
	Usage() string
}

// commandList renders the sorted "/name <usage> - description" lines
// shown by /start and /help.
func commandList(reg *Registry) string {
	var b strings.Builder
	for i, h := range reg.Handlers() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte('/')
		b.WriteString(h.Name())
		if u, ok := h.(Usager); ok && u.Usage() != "" {
			b.WriteByte(' ')
			b.WriteString(u.Usage())
		}
		b.WriteString(" - ")
		b.WriteString(h.Description())
	}
	return b.String()
}

// StartHandler greets the operator and lists the available commands.
type StartHandler struct {
	reg *Registry
}

// Compile-time interface guard.
var _ Handler = (*StartHandler)(nil)

// NewStartHandler creates the /start handler.
func NewStartHandler(reg *Registry) *StartHandler {
	return &StartHandler{reg: reg}
}

func (h *StartHandler) Name() string        { return "start" }
func (h *StartHandler) Description() string { return "Show this welcome message" }

// Execute replies with the welcome banner and the command list.
func (h *StartHandler) Execute(_ context.Context, _ Request) (Response, error) {
	return Response{Text: "✅ **Claude Code Remote Control**\n\n" + commandList(h.reg)}, nil
}

// HelpHandler lists the available commands.
type HelpHandler struct {
	reg *Registry
}

// Compile-time interface guard.
var _ Handler = (*HelpHandler)(nil)

// NewHelpHandler creates the /help handler.
func NewHelpHandler(reg *Registry) *HelpHandler {
	return &HelpHandler{reg: reg}
}

func (h *HelpHandler) Name() string        { return "help" }
func (h *HelpHandler) Description() string { return "List commands" }

// Execute replies with the command list.
func (h *HelpHandler) Execute(_ context.Context, _ Request) (Response, error) {
	return Response{Text: "📖 Available commands:\n\n" + commandList(h.reg)}, nil
}

// PingHandler answers with pong and the daemon uptime.
type PingHandler struct {
	started time.Time
	now     func() time.Time
}

// Compile-time interface guard.
var _ Handler = (*PingHandler)(nil)

// NewPingHandler creates the /ping handler. started is when the daemon
// came up.
func NewPingHandler(started time.Time) *PingHandler {
	return &PingHandler{started: started, now: time.Now}
}

func (h *PingHandler) Name() string        { return "ping" }
func (h *PingHandler) Description() string { return "Test bot" }

// Execute replies with pong and the uptime.
func (h *PingHandler) Execute(_ context.Context, _ Request) (Response, error) {
	uptime := h.now().Sub(h.started).Truncate(time.Second)
	return Response{Text: "🏓 Pong!\n\nUptime: " + uptime.String()}, nil
}
