package cloudexec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/security"
)

// DefaultCommandTimeout bounds one EXEC command.
const DefaultCommandTimeout = 10 * time.Minute

// maxCommandOutput caps the captured output per command.
const maxCommandOutput = 10_000

// CommandResult is one executed command's outcome.
type CommandResult struct {
	Command  string
	Output   string // combined stdout+stderr, capped
	Err      error
	TimedOut bool
	Duration time.Duration
}

// CommandRunner executes a single vetted command.
type CommandRunner interface {
	Run(ctx context.Context, command string) CommandResult
}

// Runner executes commands through the shell with a bounded lifetime
// and a sanitized environment.
type Runner struct {
	// Workdir is the working directory. Empty means the process cwd,
	// which in CI is the checked-out repository.
	Workdir string

	// Env replaces the child environment. Nil falls back to
	// security.SanitizedEnv, which strips API keys and tokens.
	Env []string

	// Timeout per command. Zero means DefaultCommandTimeout.
	Timeout time.Duration
}

var _ CommandRunner = (*Runner)(nil)

// Run executes the command and captures its combined output. The guard
// must have vetted the command first; Run itself enforces only the
// timeout and the environment.
func (r *Runner) Run(ctx context.Context, command string) CommandResult {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // the guard vets commands before they reach the runner
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.Workdir
	env := r.Env
	if env == nil {
		env = security.SanitizedEnv(nil)
	}
	cmd.Env = env

	start := time.Now()
	out, err := cmd.CombinedOutput()

	result := CommandResult{
		Command:  command,
		Output:   truncate(string(out), maxCommandOutput),
		Duration: time.Since(start),
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.Err = fmt.Errorf("cloudexec: command timed out after %s", timeout)
		return result
	}
	result.Err = err
	return result
}

// truncate cuts s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "\n... (truncated)"
}
