// Package command implements the operator command set: parsing already
// happened in the router, so a Handler receives a named command with its
// argument string and replies with text for the originating chat.
package command

import (
	"context"

	"github.com/Everest18/claude-code-telegram-control/internal/task"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// SessionState is the per-chat state a handler may read and update.
// The router adapts its session type to this view.
type SessionState interface {
	// ExecMode returns the chat's execution mode override, empty when
	// the chat never ran /mode.
	ExecMode() task.ExecMode

	// SetExecMode stores the chat's execution mode override.
	SetExecMode(mode task.ExecMode)
}

// Request carries one command invocation into a handler.
type Request struct {
	// Name is the command name, lowercase and without the slash.
	Name string

	// Args is everything after the command name, trimmed.
	Args string

	// Message is the inbound message that carried the command.
	Message message.InboundMessage

	// Session is the chat's state. The router always supplies it.
	Session SessionState
}

// Response is a handler's reply.
type Response struct {
	// Text is delivered to the originating chat. Empty means no reply.
	Text string
}

// Handler executes one command. Implementations must be safe for
// concurrent use; the router serializes per chat, not globally.
type Handler interface {
	// Name returns the command name without the slash, e.g. "task".
	Name() string

	// Description is the one-line help text shown by /help.
	Description() string

	// Execute runs the command. A returned error is logged and masked
	// with a generic reply; handlers put operator-safe text in Response.
	Execute(ctx context.Context, req Request) (Response, error)
}
