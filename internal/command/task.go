package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/dispatch"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
)

// Route outcome replies, kept word-for-word from the original bot.
const (
	replyLocalAccepted = "💻 Task sent to local Claude Code.\nCheck terminal for execution status."
	replyCloudAccepted = "☁️ Cloud execution triggered via GitHub Actions.\nYou'll receive a notification when complete."
	replyLocalFailed   = "❌ Local execution failed.\nIs Claude Code running? Try /cloud mode."
	replyCloudFailed   = "❌ Failed to trigger cloud execution.\nCheck GitHub token and repository settings."
)

// TaskHandlerConfig groups the /task handler's dependencies.
type TaskHandlerConfig struct {
	// Store persists tasks. Required.
	Store task.Store

	// Dispatch routes tasks to executors. Required.
	Dispatch *dispatch.Manager

	// Audit, if non-nil, records task creation.
	Audit *security.AuditLogger

	// Bus, if non-nil, receives task.created events.
	Bus *events.Bus

	// Now is injectable for testing. Defaults to time.Now.
	Now func() time.Time
}

// TaskHandler implements /task <description>: sanitize, persist, route.
type TaskHandler struct {
	cfg TaskHandlerConfig
}

// Compile-time interface guards.
var (
	_ Handler = (*TaskHandler)(nil)
	_ Usager  = (*TaskHandler)(nil)
)

// NewTaskHandler creates the /task handler.
func NewTaskHandler(cfg TaskHandlerConfig) *TaskHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TaskHandler{cfg: cfg}
}

func (h *TaskHandler) Name() string        { return "task" }
func (h *TaskHandler) Usage() string       { return "<desc>" }
func (h *TaskHandler) Description() string { return "Create task" }

// Execute validates the description, creates the task, and dispatches it
// over the chat's execution mode. Validation problems are echoed to the
// operator; route failures reply with the route's troubleshooting hint.
func (h *TaskHandler) Execute(ctx context.Context, req Request) (Response, error) {
	if req.Args == "" {
		return Response{Text: "❌ Usage: `/task <description>`"}, nil
	}

	desc, err := task.SanitizeDescription(req.Args)
	if err != nil {
		return Response{Text: sanitizeReply(err)}, nil
	}

	now := h.cfg.Now()
	tk, err := task.New(desc, now)
	if err != nil {
		return Response{}, err
	}
	tk.Channel = req.Message.Channel
	tk.ChatID = req.Message.Chat.ID
	tk.MessageID = req.Message.ID
	tk.Mode = h.cfg.Dispatch.Resolve(ctx, req.Session.ExecMode())
	if tk.Mode == task.ModeLocal {
		tk.FileName = task.FileName(req.Message.Channel, now)
	}

	if err := h.cfg.Store.Create(ctx, tk); err != nil {
		return Response{}, err
	}
	if h.cfg.Audit != nil {
		h.cfg.Audit.Log(security.AuditEvent{
			Type:    security.EventTaskCreated,
			TaskID:  tk.ID,
			Channel: tk.Channel,
			ChatID:  tk.ChatID,
			Detail:  desc,
		})
	}
	if h.cfg.Bus != nil {
		h.cfg.Bus.Publish(events.Event{
			Type:   events.TypeTaskCreated,
			TaskID: tk.ID,
			ChatID: tk.ChatID,
			State:  string(task.StatePending),
		})
	}

	if err := h.cfg.Dispatch.Dispatch(ctx, tk); err != nil {
		if tk.Mode == task.ModeCloud {
			return Response{Text: replyCloudFailed}, nil
		}
		return Response{Text: replyLocalFailed}, nil
	}

	return Response{Text: taskCreatedReply(tk)}, nil
}

// taskCreatedReply renders the success reply: the original's created
// banner plus the route outcome line.
func taskCreatedReply(tk *task.Task) string {
	head := fmt.Sprintf("✅ Task Created (%s)\n\n%s", tk.ID, tk.Description)
	if tk.Mode == task.ModeLocal {
		return fmt.Sprintf("%s\n\n`%s`\n\n%s", head, tk.FileName, replyLocalAccepted)
	}
	return fmt.Sprintf("%s\n\n%s", head, replyCloudAccepted)
}

// sanitizeReply maps validation errors to the original bot's wording.
func sanitizeReply(err error) string {
	switch {
	case errors.Is(err, task.ErrEmptyDescription):
		return "❌ Usage: `/task <description>`"
	case errors.Is(err, task.ErrDescriptionTooLong):
		return fmt.Sprintf("❌ Description too long (max %d chars)", task.MaxDescriptionLength)
	case errors.Is(err, task.ErrPathSeparator):
		return "❌ Path separators not allowed in description"
	case errors.Is(err, task.ErrForbiddenChars):
		return "❌ Description contains forbidden characters"
	default:
		return "❌ Invalid task description"
	}
}
