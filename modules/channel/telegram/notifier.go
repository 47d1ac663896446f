package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	tg "github.com/Everest18/claude-code-telegram-control/internal/telegram"
)

// errNoOwnerChat means no owner chat could be determined from owner_chat
// or the allow list, so operator notices have nowhere to go.
var errNoOwnerChat = errors.New("telegram: no owner chat configured")

// ownerNotifier delivers operator notices to the owner chat: approval
// prompts from the approval manager and agent up/down transitions from
// the heartbeat monitor. The module registers it as "channel.notifier".
//
// It remembers the outstanding approval prompt (the manager allows one at
// a time) and edits it with the outcome when the resolution appears on
// the event bus.
type ownerNotifier struct {
	t *Telegram

	mu         sync.Mutex
	promptID   string // approval ID of the outstanding prompt
	promptMsg  int    // Telegram message ID of the prompt
	promptText string // unformatted prompt text
}

// NotifyApproval implements approval.Notifier.
func (n *ownerNotifier) NotifyApproval(ctx context.Context, req approval.Request) error {
	text := fmt.Sprintf("🔐 **Approval required** (%s)\n\n%s\n\nReply /approve or /deny", req.ID, req.Content)

	sent, err := n.t.sendOwnerText(ctx, text)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.promptID = req.ID
	n.promptMsg = sent.MessageID
	n.promptText = text
	n.mu.Unlock()
	return nil
}

// NotifyAgentState implements heartbeat.TransitionNotifier.
func (n *ownerNotifier) NotifyAgentState(ctx context.Context, online bool, detail string) error {
	var text string
	if online {
		text = "✅ Claude agent is back online"
	} else {
		text = "⚠️ Claude agent appears offline"
	}
	if detail != "" {
		text += "\n" + detail
	}

	_, err := n.t.sendOwnerText(ctx, text)
	return err
}

// watchResolutions consumes approval.resolved events and edits the
// outstanding prompt with the outcome. Runs until ctx is cancelled.
func (n *ownerNotifier) watchResolutions(ctx context.Context, bus *events.Bus) {
	ch, unsubscribe := bus.Subscribe(8)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Type != events.TypeApprovalResolved {
				continue
			}
			n.markResolved(ctx, ev)
		}
	}
}

// markResolved appends the outcome to the remembered prompt message.
// Edit failures are logged, not propagated; the prompt text is cosmetic
// once the decision is recorded.
func (n *ownerNotifier) markResolved(ctx context.Context, ev events.Event) {
	n.mu.Lock()
	if ev.ApprovalID == "" || ev.ApprovalID != n.promptID || n.promptMsg == 0 {
		n.mu.Unlock()
		return
	}
	messageID := n.promptMsg
	text := n.promptText
	n.promptID = ""
	n.promptMsg = 0
	n.promptText = ""
	n.mu.Unlock()

	outcome := "❌ Denied"
	if ev.State == "approved" {
		outcome = "✅ Approved"
	}
	if ev.Detail != "" {
		outcome += " (" + ev.Detail + ")"
	}

	if err := n.t.editOwnerText(ctx, messageID, text+"\n\n"+outcome); err != nil {
		n.t.logger.Warn("failed to edit approval prompt",
			"approval_id", ev.ApprovalID,
			"error", err,
		)
	}
}

// sendOwnerText formats and sends a text message to the owner chat,
// falling back to plain text on parse errors.
func (t *Telegram) sendOwnerText(ctx context.Context, text string) (*tg.Message, error) {
	chatID := t.ownerChat.Load()
	if chatID == 0 {
		return nil, errNoOwnerChat
	}
	formatted, pm := formatText(text, "")
	return t.sendText(ctx, tg.SendMessageRequest{
		ChatID:    chatID,
		Text:      formatted,
		ParseMode: pm,
	}, text)
}

// editOwnerText edits a previously sent owner-chat message with the same
// formatting and fallback rules as sendOwnerText.
func (t *Telegram) editOwnerText(ctx context.Context, messageID int, text string) error {
	chatID := t.ownerChat.Load()
	if chatID == 0 {
		return errNoOwnerChat
	}
	formatted, pm := formatText(text, "")
	_, err := t.client.EditMessageText(ctx, tg.EditMessageTextRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      formatted,
		ParseMode: pm,
	})
	if err != nil && isParseError(err) {
		_, err = t.client.EditMessageText(ctx, tg.EditMessageTextRequest{
			ChatID:    chatID,
			MessageID: messageID,
			Text:      text,
		})
	}
	return err
}
