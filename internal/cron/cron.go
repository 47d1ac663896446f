// Package cron provides a job scheduler for periodic housekeeping such
// as pruning finished tasks, sweeping stale approvals, and probing the
// local agent.
package cron

import "context"

// Job is one periodic piece of housekeeping.
type Job interface {
	// Name identifies the job in logs, stats, and duplicate checks.
	Name() string

	// Schedule returns the five-field cron expression the job runs on,
	// e.g. "*/5 * * * *".
	Schedule() string

	// Run executes one tick. Long-running implementations should watch
	// ctx, which is cancelled at scheduler shutdown.
	Run(ctx context.Context) error
}
