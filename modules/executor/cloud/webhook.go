package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// maxNotifyResult caps the result portion of the completion notice.
const maxNotifyResult = 3000

// ChatSender delivers completion notices back to the chat that created
// the task. Satisfied by the channel dispatcher.
type ChatSender interface {
	Send(ctx context.Context, msg message.OutboundMessage) error
}

// completionReport is the JSON body the workflow posts when a task
// starts running or finishes.
type completionReport struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
}

// completionHandler applies workflow reports to the task store and
// notifies the originating chat on terminal states. Registered as the
// "cloud.webhook" service; the gateway mounts it under the "github"
// source with signature validation.
type completionHandler struct {
	store  task.Store
	bus    *events.Bus
	logger *slog.Logger

	mu     sync.Mutex
	sender ChatSender
}

// setSender installs the chat dispatcher once channels have started.
func (h *completionHandler) setSender(s ChatSender) {
	h.mu.Lock()
	h.sender = s
	h.mu.Unlock()
}

func (h *completionHandler) chatSender() ChatSender {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sender
}

// HandleWebhook applies one workflow report. Redelivered reports for
// tasks that already moved on are acknowledged without effect so the
// sender stops retrying.
func (h *completionHandler) HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error {
	var report completionReport
	if err := json.Unmarshal(body, &report); err != nil {
		return fmt.Errorf("cloud: decode workflow report: %w", err)
	}
	if report.TaskID == "" {
		return fmt.Errorf("cloud: workflow report missing task_id")
	}

	next, err := stateForStatus(report.Status)
	if err != nil {
		return err
	}

	if h.store == nil {
		return fmt.Errorf("cloud: task store not available")
	}

	t, err := h.store.Transition(ctx, report.TaskID, next, report.Result)
	switch {
	case errors.Is(err, task.ErrInvalidTransition):
		h.logger.Warn("cloud: workflow report ignored",
			"task_id", report.TaskID,
			"status", report.Status,
			"error", err,
		)
		return nil
	case err != nil:
		return fmt.Errorf("cloud: apply workflow report: %w", err)
	}

	if h.bus != nil {
		h.bus.Publish(events.Event{
			Type:   events.TypeTaskStateChanged,
			Time:   time.Now(),
			TaskID: t.ID,
			ChatID: t.ChatID,
			State:  string(t.State),
			Detail: report.Status,
		})
	}

	h.logger.Info("cloud: task updated from workflow",
		"task_id", t.ID,
		"state", t.State,
	)

	if t.State.Terminal() {
		h.notify(ctx, t)
	}
	return nil
}

// stateForStatus maps workflow report statuses onto task states.
func stateForStatus(status string) (task.State, error) {
	switch status {
	case "success":
		return task.StateDone, nil
	case "failure", "failed":
		return task.StateFailed, nil
	case "running":
		return task.StateRunning, nil
	default:
		return "", fmt.Errorf("cloud: unknown workflow status %q", status)
	}
}

// notify sends the completion notice to the chat that created the task.
// Best effort: the state change is already recorded.
func (h *completionHandler) notify(ctx context.Context, t *task.Task) {
	sender := h.chatSender()
	if sender == nil || t.Channel == "" || t.ChatID == "" {
		return
	}

	msg := message.OutboundMessage{
		Channel:   t.Channel,
		Chat:      message.Chat{ID: t.ChatID},
		ReplyToID: t.MessageID,
		Blocks:    []message.ContentBlock{message.NewTextBlock(completionText(t))},
	}
	if err := sender.Send(ctx, msg); err != nil {
		h.logger.Warn("cloud: completion notice failed",
			"task_id", t.ID,
			"chat_id", t.ChatID,
			"error", err,
		)
	}
}

// completionText renders the chat notice: status emoji, task ID, and
// the result truncated to the notification cap.
func completionText(t *task.Task) string {
	emoji, status := "✅", "completed"
	if t.State == task.StateFailed {
		emoji, status = "❌", "failed"
	}
	result := truncate(t.Result, maxNotifyResult)
	return fmt.Sprintf("%s Task %s %s\n\n%s", emoji, t.ID, status, result)
}

// truncate cuts s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "\n... (truncated)"
}
