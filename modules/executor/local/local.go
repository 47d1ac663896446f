// Package local implements the executor.local module: tasks routed to a
// Claude Code session on the same machine through the file handshake.
// Dispatch writes a task file and rewrites the status file; an approval
// watcher relays the agent's permission requests to the operator; a
// prober reports agent liveness for /status and the heartbeat monitor.
package local

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"github.com/Everest18/claude-code-telegram-control/internal/bridge"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/dispatch"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Local{})
}

// Compile-time interface guards.
var (
	_ dispatch.Executor = (*Local)(nil)

	_ core.Configurable = (*Local)(nil)
	_ core.Provisioner  = (*Local)(nil)
	_ core.Validator    = (*Local)(nil)
	_ core.Starter      = (*Local)(nil)
	_ core.Stopper      = (*Local)(nil)
)

// Local is the executor.local module.
type Local struct {
	config Config
	logger *slog.Logger
	appCtx *core.AppContext

	bridge  *bridge.Bridge
	prober  *bridge.Prober
	watcher *bridge.Watcher

	cancelWatch context.CancelFunc
}

// ModuleInfo implements core.Module.
func (l *Local) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "executor.local",
		New: func() core.Module { return &Local{} },
	}
}

// Configure implements core.Configurable.
func (l *Local) Configure(node *yaml.Node) error {
	if err := node.Decode(&l.config); err != nil {
		return fmt.Errorf("local: decode config: %w", err)
	}
	l.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The prober is registered as
// "bridge.local" here so later modules (heartbeat, the cron probe job)
// find it during their own provisioning.
func (l *Local) Provision(ctx *core.AppContext) error {
	l.config.defaults()
	l.appCtx = ctx
	l.logger = ctx.Logger

	if err := l.config.validate(); err != nil {
		return err
	}

	b, err := bridge.New(bridge.Config{
		StatusFile:   l.config.StatusFile,
		ApprovalFile: l.config.ApprovalFile,
		ResponseFile: l.config.ResponseFile,
		TasksDir:     l.config.TasksDir,
		Logger:       l.logger,
	})
	if err != nil {
		return err
	}
	l.bridge = b

	var detector bridge.ProcessDetector
	if l.config.detectProcess() {
		detector = bridge.NewDetector(l.config.ProcessPatterns...)
	}

	prober, err := bridge.NewProber(bridge.ProberConfig{
		Bridge:       b,
		Detector:     detector,
		MaxStatusAge: l.config.MaxStatusAge,
	})
	if err != nil {
		return err
	}
	l.prober = prober

	ctx.RegisterService("bridge.local", prober)

	l.logger.Info("local executor provisioned",
		"tasks_dir", l.config.TasksDir,
		"status_file", l.config.StatusFile,
		"detect_process", l.config.detectProcess(),
	)
	return nil
}

// Validate implements core.Validator.
func (l *Local) Validate() error {
	if err := l.config.validate(); err != nil {
		return err
	}
	if l.bridge == nil {
		return fmt.Errorf("local: bridge not initialized (Provision not called)")
	}
	return nil
}

// Start implements core.Starter. The dispatch and approval managers are
// assembled after module provisioning, so both are resolved here.
func (l *Local) Start() error {
	svc, ok := l.appCtx.GetService("dispatch.manager")
	if !ok {
		return fmt.Errorf("local: dispatch.manager service not available")
	}
	mgr, ok := svc.(*dispatch.Manager)
	if !ok {
		return fmt.Errorf("local: dispatch.manager service is %T", svc)
	}
	if err := mgr.Register(l); err != nil {
		return fmt.Errorf("local: register executor: %w", err)
	}

	svc, ok = l.appCtx.GetService("approval.manager")
	if !ok {
		return fmt.Errorf("local: approval.manager service not available")
	}
	gate, ok := svc.(approval.Gate)
	if !ok {
		return fmt.Errorf("local: approval.manager service is %T, not a gate", svc)
	}
	if svc, ok := l.appCtx.GetService("events.bus"); ok {
		if bus, ok := svc.(*events.Bus); ok {
			gate = approval.PublishResolved(gate, bus)
		}
	}

	watcher, err := bridge.NewWatcher(bridge.WatcherConfig{
		Bridge:       l.bridge,
		Gate:         gate,
		ChatID:       l.config.OwnerChat,
		PollInterval: l.config.PollInterval,
		Logger:       l.logger,
	})
	if err != nil {
		return err
	}
	l.watcher = watcher

	watchCtx, cancel := context.WithCancel(context.Background())
	l.cancelWatch = cancel
	watcher.Start(watchCtx)

	l.logger.Info("local executor started", "route", l.Name())
	return nil
}

// Stop implements core.Stopper.
func (l *Local) Stop(_ context.Context) error {
	if l.cancelWatch != nil {
		l.cancelWatch()
	}
	if l.watcher != nil {
		l.watcher.Stop()
	}
	return nil
}

// Name implements dispatch.Executor.
func (l *Local) Name() string {
	return string(task.ModeLocal)
}

// Execute implements dispatch.Executor: the task file lands in the tasks
// directory and the status file announces it. Acceptance means the agent
// can pick the file up, not that it has.
func (l *Local) Execute(_ context.Context, t *task.Task) error {
	if err := l.bridge.WriteTask(t); err != nil {
		return err
	}
	l.logger.Info("local: task written for pickup",
		"task_id", t.ID,
		"file", t.FileName,
	)
	return nil
}

// Prober exposes the agent liveness probe.
func (l *Local) Prober() *bridge.Prober {
	return l.prober
}
