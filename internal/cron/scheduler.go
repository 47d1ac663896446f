package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// scheduleParser returns the five-field parser every schedule in this
// package goes through: minute, hour, day of month, month, day of week.
func scheduleParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

// jobCounters tracks per-job execution outcomes. All fields are atomics so
// Stats can read them while a job is mid-run.
type jobCounters struct {
	runs   atomic.Int64
	errors atomic.Int64
	skips  atomic.Int64
}

// JobStats is a point-in-time snapshot of one job's counters. Skips counts
// ticks dropped because the previous run was still in flight.
type JobStats struct {
	Runs   int64 `json:"runs"`
	Errors int64 `json:"errors"`
	Skips  int64 `json:"skips"`
}

// Scheduler manages periodic job execution using cron expressions.
// Each job is protected by a per-job mutex to prevent parallel execution
// of the same job (uses TryLock — atomic, no race).
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	jobs     []Job
	names    map[string]struct{}
	locks    map[string]*sync.Mutex
	counters map[string]*jobCounters
	logger   *slog.Logger
	cancel   context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		names:    make(map[string]struct{}),
		locks:    make(map[string]*sync.Mutex),
		counters: make(map[string]*jobCounters),
		logger:   logger,
	}
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.names[name] = struct{}{}
	s.locks[name] = &sync.Mutex{}
	s.counters[name] = &jobCounters{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start initializes the cron scheduler and begins executing registered jobs.
// Returns an error if any job has an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.cron = cron.New(cron.WithParser(scheduleParser()))

	for _, job := range s.jobs {
		lock := s.locks[job.Name()]
		counters := s.counters[job.Name()]

		_, err := s.cron.AddFunc(job.Schedule(), func() {
			s.runJob(ctx, job, lock, counters)
		})
		if err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

// runJob executes one tick of a job. Overlapping ticks are skipped, and a
// panicking job is contained so it cannot take the scheduler down.
func (s *Scheduler) runJob(ctx context.Context, job Job, lock *sync.Mutex, counters *jobCounters) {
	// TryLock is atomic — no race between check and acquire.
	// If the previous tick is still running, skip this one.
	if !lock.TryLock() {
		counters.skips.Add(1)
		s.logger.Warn("cron: job still running, skipping tick",
			"job", job.Name(),
		)
		return
	}
	defer lock.Unlock()

	defer func() {
		if r := recover(); r != nil {
			counters.errors.Add(1)
			s.logger.Error("cron: job panicked",
				"job", job.Name(),
				"panic", r,
			)
		}
	}()

	counters.runs.Add(1)
	s.logger.Debug("cron: job started", "job", job.Name())
	if err := job.Run(ctx); err != nil {
		counters.errors.Add(1)
		s.logger.Error("cron: job failed",
			"job", job.Name(),
			"error", err,
		)
	} else {
		s.logger.Debug("cron: job completed", "job", job.Name())
	}
}

// Stats returns a snapshot of every registered job's run counters.
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]JobStats, len(s.counters))
	for name, c := range s.counters {
		stats[name] = JobStats{
			Runs:   c.runs.Load(),
			Errors: c.errors.Load(),
			Skips:  c.skips.Load(),
		}
	}
	return stats
}

// Stop gracefully shuts down the scheduler, waiting for in-flight jobs
// up to the deadline of ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
