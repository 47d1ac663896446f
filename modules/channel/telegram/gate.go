package telegram

import (
	"log/slog"
	"sync/atomic"

	"github.com/Everest18/claude-code-telegram-control/internal/channel"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// inboundGate applies the allow list to every inbound message before it
// reaches the inbox. Strangers are not answered: a denied message is
// audited, counted, and dropped. The allow list is swappable so a config
// reload takes effect without restarting the poller or webhook receiver.
type inboundGate struct {
	allow  atomic.Pointer[channel.AllowList]
	audit  *security.AuditLogger
	logger *slog.Logger
	denied atomic.Int64
}

func newInboundGate(allow *channel.AllowList, audit *security.AuditLogger, logger *slog.Logger) *inboundGate {
	g := &inboundGate{audit: audit, logger: logger}
	g.allow.Store(allow)
	return g
}

// Admit reports whether the message may proceed to the inbox.
func (g *inboundGate) Admit(msg message.InboundMessage, updateID int) bool {
	if g.allow.Load().IsAllowed(msg) {
		return true
	}

	g.denied.Add(1)
	g.logger.Debug("update denied by allow list",
		"update_id", updateID,
		"sender", msg.Sender.ID,
		"chat", msg.Chat.ID,
	)
	if g.audit != nil {
		g.audit.Log(security.AuditEvent{
			Type:     security.EventAuthDenied,
			Channel:  msg.Channel,
			ChatID:   msg.Chat.ID,
			SenderID: msg.Sender.ID,
		})
	}
	return false
}

// SetAllowList swaps the active allow list.
func (g *inboundGate) SetAllowList(allow *channel.AllowList) {
	g.allow.Store(allow)
}

// Denied returns how many messages the gate has dropped.
func (g *inboundGate) Denied() int64 {
	return g.denied.Load()
}
