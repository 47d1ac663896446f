// Package cloudexec is the CI-side execution engine: one Messages API
// call plans the work, the extracted EXEC: lines run under a command
// guard, and the outcome flows back through the workflow output file
// and a chat notification.
package cloudexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// maxNotifyResult caps the result portion of the chat notification.
const maxNotifyResult = 3000

// CompletionClient is the single Messages API call the engine needs.
type CompletionClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Notifier delivers the completion message to the originating chat.
type Notifier interface {
	NotifyCompletion(ctx context.Context, chatID int64, text string) error
}

// Request is one task to execute.
type Request struct {
	TaskID      string
	Description string
	ChatID      int64
}

// Result is the outcome of a run.
type Result struct {
	// Response is the full model text.
	Response string

	// Transcript is the per-command execution log.
	Transcript string

	// Commands is the number of EXEC: lines extracted.
	Commands int

	// Rejected counts commands the guard blocked.
	Rejected int

	// Failed is true when any executed command failed or timed out.
	// Guard rejections do not set it; the transcript records them.
	Failed bool

	// HasChanges reports whether the working tree changed.
	HasChanges bool
}

// Report returns the model text with the EXEC: lines removed.
func (r Result) Report() string {
	var kept []string
	for _, line := range strings.Split(r.Response, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), commandPrefix) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Summary renders the report plus the execution transcript. This is
// what lands in the workflow output and, truncated, in the chat.
func (r Result) Summary() string {
	report := r.Report()
	if r.Transcript == "" {
		return report
	}
	if report == "" {
		return r.Transcript
	}
	return report + "\n\n--- execution ---\n" + r.Transcript
}

// Config groups the engine's dependencies.
type Config struct {
	// Client performs the completion call. Required.
	Client CompletionClient

	// Guard vets extracted commands. Nil means NewGuard().
	Guard *Guard

	// Runner executes vetted commands. Nil means a default Runner.
	Runner CommandRunner

	// Notifier, if non-nil, receives the completion message when the
	// request carries a chat ID.
	Notifier Notifier

	Logger *slog.Logger
}

// Engine runs one task end to end.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine validates the config and builds an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Client == nil {
		return nil, errors.New("cloudexec: nil completion client")
	}
	if cfg.Guard == nil {
		cfg.Guard = NewGuard()
	}
	if cfg.Runner == nil {
		cfg.Runner = &Runner{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// Run asks the model for a plan, executes the vetted EXEC: commands in
// order, detects working-tree changes, and notifies the chat. A guard
// rejection skips that command and continues; an execution failure
// marks the result failed but still runs the remaining commands so the
// transcript shows the whole picture.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Description) == "" {
		return Result{}, errors.New("cloudexec: empty task description")
	}

	e.logger.Info("cloudexec: requesting plan", "task_id", req.TaskID)
	response, err := e.cfg.Client.Complete(ctx, systemPrompt, taskPrompt(req))
	if err != nil {
		return Result{}, fmt.Errorf("cloudexec: completion: %w", err)
	}

	res := Result{Response: response}
	commands := ExtractCommands(response)
	res.Commands = len(commands)

	var transcript strings.Builder
	for _, command := range commands {
		if err := ctx.Err(); err != nil {
			res.Transcript = strings.TrimRight(transcript.String(), "\n")
			return res, fmt.Errorf("cloudexec: cancelled: %w", err)
		}

		if err := e.cfg.Guard.Check(command); err != nil {
			res.Rejected++
			e.logger.Warn("cloudexec: command rejected", "command", command, "error", err)
			fmt.Fprintf(&transcript, "$ %s\nREJECTED: %v\n\n", command, err)
			continue
		}

		e.logger.Info("cloudexec: running command", "command", command)
		cr := e.cfg.Runner.Run(ctx, command)
		fmt.Fprintf(&transcript, "$ %s\n", command)
		if cr.Output != "" {
			transcript.WriteString(cr.Output)
			if !strings.HasSuffix(cr.Output, "\n") {
				transcript.WriteByte('\n')
			}
		}
		if cr.Err != nil {
			res.Failed = true
			fmt.Fprintf(&transcript, "ERROR: %v\n", cr.Err)
			e.logger.Error("cloudexec: command failed",
				"command", command,
				"error", cr.Err,
				"timed_out", cr.TimedOut,
			)
		}
		transcript.WriteByte('\n')
	}
	res.Transcript = strings.TrimRight(transcript.String(), "\n")

	res.HasChanges = e.detectChanges(ctx)

	e.logger.Info("cloudexec: run finished",
		"task_id", req.TaskID,
		"commands", res.Commands,
		"rejected", res.Rejected,
		"failed", res.Failed,
		"has_changes", res.HasChanges,
	)

	if e.cfg.Notifier != nil && req.ChatID != 0 {
		text := notificationText(req, res)
		if err := e.cfg.Notifier.NotifyCompletion(ctx, req.ChatID, text); err != nil {
			e.logger.Warn("cloudexec: completion notification failed", "error", err)
		}
	}
	return res, nil
}

// detectChanges asks git whether the working tree is dirty. Errors
// (including running outside a repository) count as no changes.
func (e *Engine) detectChanges(ctx context.Context) bool {
	cr := e.cfg.Runner.Run(ctx, "git status --porcelain")
	if cr.Err != nil {
		e.logger.Warn("cloudexec: change detection failed", "error", cr.Err)
		return false
	}
	return strings.TrimSpace(cr.Output) != ""
}

// notificationText renders the chat message: status emoji, task, and
// the summary truncated to the notification cap.
func notificationText(req Request, res Result) string {
	emoji, status := "✅", "completed"
	if res.Failed {
		emoji, status = "❌", "failed"
	}
	summary := truncate(res.Summary(), maxNotifyResult)
	if req.TaskID == "" {
		return fmt.Sprintf("%s Task %s\n\n%s", emoji, status, summary)
	}
	return fmt.Sprintf("%s Task %s %s\n\n%s", emoji, req.TaskID, status, summary)
}
