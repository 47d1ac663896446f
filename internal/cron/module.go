package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// ModuleConfig holds scheduler configuration. Empty schedules fall back
// to each job's default.
type ModuleConfig struct {
	TaskRetention         time.Duration `yaml:"task_retention"`
	TaskPruneSchedule     string        `yaml:"task_prune_schedule"`
	ApprovalDeadline      time.Duration `yaml:"approval_deadline"`
	ApprovalSweepSchedule string        `yaml:"approval_sweep_schedule"`
	AgentProbe            bool          `yaml:"agent_probe"`
	AgentProbeSchedule    string        `yaml:"agent_probe_schedule"`
	LimiterPruneSchedule  string        `yaml:"limiter_prune_schedule"`
}

func (c *ModuleConfig) defaults() {
	if c.TaskRetention <= 0 {
		c.TaskRetention = DefaultTaskRetention
	}
	if c.ApprovalDeadline <= 0 {
		c.ApprovalDeadline = approval.DefaultTimeout
	}
}

// Module runs housekeeping jobs on the scheduler. Jobs register only for
// the services that are actually present, so a minimal deployment without
// a persistent store simply runs fewer jobs.
type Module struct {
	config    ModuleConfig
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "cron.scheduler",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(m.logger)
	return nil
}

// Validate implements core.Validator. Schedule overrides are parsed up
// front so a typo fails startup instead of the first tick.
func (m *Module) Validate() error {
	parser := scheduleParser()
	overrides := map[string]string{
		"task_prune_schedule":     m.config.TaskPruneSchedule,
		"approval_sweep_schedule": m.config.ApprovalSweepSchedule,
		"agent_probe_schedule":    m.config.AgentProbeSchedule,
		"limiter_prune_schedule":  m.config.LimiterPruneSchedule,
	}
	for field, expr := range overrides {
		if expr == "" {
			continue
		}
		if _, err := parser.Parse(expr); err != nil {
			return fmt.Errorf("cron: invalid %s %q: %w", field, expr, err)
		}
	}
	return nil
}

// Start implements core.Starter. Services are resolved here rather than
// at Provision so registration order between modules does not matter.
func (m *Module) Start() error {
	if svc, ok := m.appCtx.GetService("store.tasks"); ok {
		if pruner, ok := svc.(TaskPruner); ok {
			err := m.scheduler.RegisterJob(&TaskPruneJob{
				Store:        pruner,
				Retention:    m.config.TaskRetention,
				Logger:       m.logger,
				ScheduleExpr: m.config.TaskPruneSchedule,
			})
			if err != nil {
				return err
			}
		}
	} else {
		m.logger.Debug("cron: task store unavailable, prune job skipped")
	}

	if svc, ok := m.appCtx.GetService("store.approvals"); ok {
		if sweeper, ok := svc.(ApprovalSweeper); ok {
			err := m.scheduler.RegisterJob(&ApprovalSweepJob{
				Store:        sweeper,
				Deadline:     m.config.ApprovalDeadline,
				Logger:       m.logger,
				ScheduleExpr: m.config.ApprovalSweepSchedule,
			})
			if err != nil {
				return err
			}
		}
	} else {
		m.logger.Debug("cron: approval store unavailable, sweep job skipped")
	}

	if m.config.AgentProbe {
		if svc, ok := m.appCtx.GetService("heartbeat.state"); ok {
			if checker, ok := svc.(AgentChecker); ok {
				err := m.scheduler.RegisterJob(&AgentProbeJob{
					Checker:      checker,
					ScheduleExpr: m.config.AgentProbeSchedule,
				})
				if err != nil {
					return err
				}
			}
		} else {
			m.logger.Warn("cron: agent_probe enabled but heartbeat state unavailable")
		}
	}

	if svc, ok := m.appCtx.GetService("security.limiter"); ok {
		if limiter, ok := svc.(LimiterPruner); ok {
			err := m.scheduler.RegisterJob(&LimiterPruneJob{
				Limiter:      limiter,
				Logger:       m.logger,
				ScheduleExpr: m.config.LimiterPruneSchedule,
			})
			if err != nil {
				return err
			}
		}
	}

	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}
