package router

import (
	"context"

	"github.com/Everest18/claude-code-telegram-control/internal/channel"
	"github.com/Everest18/claude-code-telegram-control/internal/command"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// Compile-time check that sessionStateAdapter implements command.SessionState.
var _ command.SessionState = (*sessionStateAdapter)(nil)

// ResponseSender delivers outbound messages to a channel.
type ResponseSender interface {
	Send(ctx context.Context, msg message.OutboundMessage) error
}

// ChannelLookup resolves a channel by name. Implemented by channel.Dispatcher.
type ChannelLookup interface {
	Get(name string) (channel.Channel, bool)
}

// buildReply creates an outbound text reply preserving thread/reply context.
func buildReply(original message.InboundMessage, text string) message.OutboundMessage {
	out := message.NewTextMessage(original.Chat, text)
	out.Channel = original.Channel
	out.ThreadID = original.ThreadID
	out.ReplyToID = original.ID
	return out
}

// sessionStateAdapter exposes a Session to command handlers. It exists to
// decouple handlers from the internal Session type. Handlers run under
// the chat's lane, so field access needs no extra locking.
type sessionStateAdapter struct {
	session *Session
}

// ExecMode returns the chat's /mode override, empty when never set.
func (a *sessionStateAdapter) ExecMode() task.ExecMode {
	return a.session.ExecMode
}

// SetExecMode stores the chat's /mode override.
func (a *sessionStateAdapter) SetExecMode(mode task.ExecMode) {
	a.session.ExecMode = mode
}
