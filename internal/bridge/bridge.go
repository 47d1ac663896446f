// Package bridge implements the file handshake with a local Claude Code
// session: task files the agent picks up from a directory, a status file
// it reports progress into, and an approval/response file pair for
// permission requests. The files are the canonical integration path; the
// MCP server offers the same operations over a richer transport for
// agents that support it.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/task"
)

// Operator decisions written to the response file. The agent polls for
// exactly these strings.
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// ErrNotConfigured is returned by New when a handshake path is missing.
// All four paths are required; a bridge with a partial handshake would
// strand the agent mid-protocol.
var ErrNotConfigured = errors.New("bridge: path not configured")

// Config holds the handshake file locations.
type Config struct {
	// StatusFile is where the agent reports progress and the daemon
	// announces new tasks.
	StatusFile string

	// ApprovalFile is created by the agent when it needs permission to
	// proceed. Its content is the request text shown to the operator.
	ApprovalFile string

	// ResponseFile receives APPROVED or REJECTED once a decision is made.
	ResponseFile string

	// TasksDir receives one markdown file per locally dispatched task.
	TasksDir string

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Bridge reads and writes the handshake files.
type Bridge struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Bridge, failing fast when any path is unset.
func New(cfg Config) (*Bridge, error) {
	for _, p := range []struct{ name, path string }{
		{"status file", cfg.StatusFile},
		{"approval file", cfg.ApprovalFile},
		{"response file", cfg.ResponseFile},
		{"tasks dir", cfg.TasksDir},
	} {
		if strings.TrimSpace(p.path) == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, p.name)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Bridge{cfg: cfg, logger: logger, now: now}, nil
}

// WriteTask writes the task's markdown file into the tasks directory and
// rewrites the status file with the new-task notice. When t.FileName is
// empty a fresh name is generated and set on the task so the caller can
// persist it.
func (b *Bridge) WriteTask(t *task.Task) error {
	if t.FileName == "" {
		t.FileName = task.FileName(t.Channel, b.now())
	}

	if err := os.MkdirAll(b.cfg.TasksDir, 0o755); err != nil {
		return fmt.Errorf("bridge: creating tasks dir: %w", err)
	}

	path := filepath.Join(b.cfg.TasksDir, t.FileName)
	if err := os.WriteFile(path, []byte(task.RenderMarkdown(t)), 0o644); err != nil {
		return fmt.Errorf("bridge: writing task file: %w", err)
	}

	notice := task.RenderStatusNotice(t, b.now()) + "\n"
	if err := os.WriteFile(b.cfg.StatusFile, []byte(notice), 0o644); err != nil {
		return fmt.Errorf("bridge: writing status file: %w", err)
	}

	b.logger.Info("bridge: task file written", "task_id", t.ID, "file", t.FileName)
	return nil
}

// ReadStatus returns the agent's status file content.
func (b *Bridge) ReadStatus() (string, error) {
	data, err := os.ReadFile(b.cfg.StatusFile)
	if err != nil {
		return "", fmt.Errorf("bridge: reading status file: %w", err)
	}
	return string(data), nil
}

// StatusModTime returns the status file's last modification time, used
// as the freshness signal for liveness checks.
func (b *Bridge) StatusModTime() (time.Time, error) {
	info, err := os.Stat(b.cfg.StatusFile)
	if err != nil {
		return time.Time{}, fmt.Errorf("bridge: stat status file: %w", err)
	}
	return info.ModTime(), nil
}

// StatApproval returns the approval file's modification time, or a
// wrapped fs.ErrNotExist when no request is pending.
func (b *Bridge) StatApproval() (time.Time, error) {
	info, err := os.Stat(b.cfg.ApprovalFile)
	if err != nil {
		return time.Time{}, fmt.Errorf("bridge: stat approval file: %w", err)
	}
	return info.ModTime(), nil
}

// ReadApproval returns the pending approval request text.
func (b *Bridge) ReadApproval() (string, error) {
	data, err := os.ReadFile(b.cfg.ApprovalFile)
	if err != nil {
		return "", fmt.Errorf("bridge: reading approval file: %w", err)
	}
	return string(data), nil
}

// WriteResponse records a decision for the agent. Decision should be
// DecisionApproved or DecisionRejected.
func (b *Bridge) WriteResponse(decision string) error {
	if err := os.WriteFile(b.cfg.ResponseFile, []byte(decision), 0o644); err != nil {
		return fmt.Errorf("bridge: writing response file: %w", err)
	}
	return nil
}

// ClearApproval removes the approval request file. Missing files are not
// an error: the handshake may already have been torn down agent-side.
func (b *Bridge) ClearApproval() error {
	if err := os.Remove(b.cfg.ApprovalFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("bridge: removing approval file: %w", err)
	}
	return nil
}

// ClearResponse removes any response file left over from an earlier
// decision, so the agent cannot mistake it for the answer to a new
// request.
func (b *Bridge) ClearResponse() error {
	if err := os.Remove(b.cfg.ResponseFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("bridge: removing response file: %w", err)
	}
	return nil
}
