package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
)

// DefaultTaskRetention is how long finished tasks are kept before the
// prune job removes them.
const DefaultTaskRetention = 7 * 24 * time.Hour

// TaskPruner is the subset of task.Store needed by the prune job.
// Defined here so the job depends only on the method it calls.
type TaskPruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}

// TaskPruneJob removes done, failed, and rejected tasks older than Retention.
type TaskPruneJob struct {
	Store        TaskPruner
	Retention    time.Duration // zero = DefaultTaskRetention
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 3 * * *"
}

// Compile-time interface check.
var _ Job = (*TaskPruneJob)(nil)

// Name implements Job.
func (j *TaskPruneJob) Name() string {
	return "task_prune"
}

// Schedule implements Job.
func (j *TaskPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run prunes finished tasks whose last update is older than Retention.
func (j *TaskPruneJob) Run(ctx context.Context) error {
	retention := j.Retention
	if retention <= 0 {
		retention = DefaultTaskRetention
	}
	pruned, err := j.Store.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		return err
	}
	if pruned > 0 {
		j.Logger.Info("cron: pruned finished tasks", "count", pruned)
	}
	return nil
}

// ApprovalSweeper is the subset of approval.Store needed by the sweep job.
type ApprovalSweeper interface {
	ExpireOlder(ctx context.Context, cutoff time.Time) (int, error)
}

// ApprovalSweepJob expires approval requests that are still pending past
// their deadline. The manager resolves its own timeouts in-process; the
// sweep catches rows orphaned by a crash or restart.
type ApprovalSweepJob struct {
	Store        ApprovalSweeper
	Deadline     time.Duration // zero = approval.DefaultTimeout
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "* * * * *"
}

// Compile-time interface check.
var _ Job = (*ApprovalSweepJob)(nil)

// Name implements Job.
func (j *ApprovalSweepJob) Name() string {
	return "approval_sweep"
}

// Schedule implements Job.
func (j *ApprovalSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "* * * * *"
}

// Run expires pending approval rows created before the deadline cutoff.
func (j *ApprovalSweepJob) Run(ctx context.Context) error {
	deadline := j.Deadline
	if deadline <= 0 {
		deadline = approval.DefaultTimeout
	}
	expired, err := j.Store.ExpireOlder(ctx, time.Now().Add(-deadline))
	if err != nil {
		return err
	}
	if expired > 0 {
		j.Logger.Warn("cron: expired orphaned approvals", "count", expired)
	}
	return nil
}

// AgentChecker triggers a fresh agent liveness probe.
type AgentChecker interface {
	CheckNow(ctx context.Context)
}

// AgentProbeJob refreshes the agent liveness state on a cron tick. It is an
// alternative to the heartbeat monitor's built-in loop for deployments that
// prefer all periodic work under one scheduler.
type AgentProbeJob struct {
	Checker      AgentChecker
	ScheduleExpr string // empty = default "*/1 * * * *"
}

// Compile-time interface check.
var _ Job = (*AgentProbeJob)(nil)

// Name implements Job.
func (j *AgentProbeJob) Name() string {
	return "agent_probe"
}

// Schedule implements Job.
func (j *AgentProbeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/1 * * * *"
}

// Run triggers one probe. State transitions are handled by the checker.
func (j *AgentProbeJob) Run(ctx context.Context) error {
	j.Checker.CheckNow(ctx)
	return nil
}

// LimiterPruner is the subset of security.RateLimiter needed by the prune job.
type LimiterPruner interface {
	Prune() int
}

// LimiterPruneJob drops rate-limiter buckets whose window has fully elapsed,
// keeping the per-sender map from growing without bound.
type LimiterPruneJob struct {
	Limiter      LimiterPruner
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/10 * * * *"
}

// Compile-time interface check.
var _ Job = (*LimiterPruneJob)(nil)

// Name implements Job.
func (j *LimiterPruneJob) Name() string {
	return "limiter_prune"
}

// Schedule implements Job.
func (j *LimiterPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run drops expired limiter buckets.
func (j *LimiterPruneJob) Run(_ context.Context) error {
	pruned := j.Limiter.Prune()
	if pruned > 0 {
		j.Logger.Debug("cron: pruned limiter buckets", "count", pruned)
	}
	return nil
}
