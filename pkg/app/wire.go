package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"github.com/Everest18/claude-code-telegram-control/internal/channel"
	"github.com/Everest18/claude-code-telegram-control/internal/command"
	"github.com/Everest18/claude-code-telegram-control/internal/config"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/dispatch"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/router"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
)

// routerModule wraps a *router.Router to satisfy core.Module, core.Starter,
// and core.Stopper, so the router participates in the App lifecycle.
type routerModule struct {
	router *router.Router
	ctx    context.Context
}

func (m *routerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "router"}
}

func (m *routerModule) Start() error {
	m.router.Start(m.ctx)
	return nil
}

func (m *routerModule) Stop(ctx context.Context) error {
	m.router.Stop(ctx)
	return nil
}

// wireRouter builds the approval and dispatch managers, the command set,
// and the message router, wires them to every loaded channel, and appends
// the router to the app lifecycle. Must be called after LoadModules and
// before Start.
//
// The managers are registered even when no channel is loaded: the gateway
// and the executors resolve them at Start regardless of how the operator
// talks to the daemon.
func wireRouter(
	app *core.App,
	appCtx *core.AppContext,
	ids []string,
	logger *slog.Logger,
	auditLogger *security.AuditLogger,
	rateLimiter *security.RateLimiter,
	bus *events.Bus,
	cfg *config.Config,
) error {
	// Resolve the task store, falling back to memory when no store module
	// is loaded.
	var tasks task.Store
	if svc, ok := appCtx.GetService("store.tasks"); ok {
		tasks, _ = svc.(task.Store)
	}
	if tasks == nil {
		tasks = task.NewInMemoryStore()
		appCtx.RegisterService("store.tasks", tasks)
		logger.Warn("no task store module loaded, tasks will not survive restarts")
	}

	var approvals approval.Store
	if svc, ok := appCtx.GetService("store.approvals"); ok {
		approvals, _ = svc.(approval.Store)
	}

	// The approval notifier is whatever channel registered itself as the
	// owner contact; requests are mirrored onto the event bus for the
	// gateway stream.
	var notifier approval.Notifier
	if svc, ok := appCtx.GetService("channel.notifier"); ok {
		if n, ok := svc.(approval.Notifier); ok {
			notifier = approval.PublishRequested(n, bus)
		}
	}

	mgrCfg := approval.ManagerConfig{
		Notifier: notifier,
		Store:    approvals,
		Logger:   logger,
	}
	if cfg != nil && cfg.Approval != nil {
		mgrCfg.Timeout = time.Duration(cfg.Approval.TimeoutSeconds) * time.Second
		mgrCfg.Policy = cfg.Approval.Policy
	}
	approvalMgr := approval.NewManager(mgrCfg)
	appCtx.RegisterService("approval.manager", approvalMgr)

	// The local bridge prober decides what "auto" mode resolves to.
	var prober command.AgentProber
	if svc, ok := appCtx.GetService("bridge.local"); ok {
		prober, _ = svc.(command.AgentProber)
	}
	var detectLocal func(context.Context) bool
	if prober != nil {
		detectLocal = func(ctx context.Context) bool {
			return prober.Probe(ctx).Online
		}
	}

	var defaultMode task.ExecMode
	if cfg != nil && cfg.Dispatch != nil {
		defaultMode = task.ExecMode(cfg.Dispatch.DefaultMode)
	}
	dispatchMgr, err := dispatch.NewManager(dispatch.Config{
		Store:       tasks,
		DefaultMode: defaultMode,
		DetectLocal: detectLocal,
		Bus:         bus,
		Audit:       auditLogger,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating dispatch manager: %w", err)
	}
	appCtx.RegisterService("dispatch.manager", dispatchMgr)

	// Discover channels from loaded modules.
	dispatcher := channel.NewDispatcher()
	appCtx.RegisterService("channel.dispatcher", dispatcher)
	var channels []channel.Channel

	for _, id := range ids {
		mod, ok := app.Module(id)
		if !ok {
			continue
		}
		if ch, ok := mod.(channel.Channel); ok {
			// Register under the full module ID (e.g. "channel.telegram")
			// because that is what the channel sets as msg.Channel in
			// inbound messages.
			if err := dispatcher.Register(id, ch); err != nil {
				return fmt.Errorf("registering channel %s: %w", id, err)
			}
			channels = append(channels, ch)
			logger.Info("router: registered channel", "channel", id)
		}
	}

	if len(channels) == 0 {
		logger.Info("router: no channels found, skipping router wiring")
		return nil
	}

	// Build the command set.
	started := time.Now()
	registry := command.NewRegistry()
	handlers := []command.Handler{
		command.NewStartHandler(registry),
		command.NewHelpHandler(registry),
		command.NewPingHandler(started),
		command.NewTaskHandler(command.TaskHandlerConfig{
			Store:    tasks,
			Dispatch: dispatchMgr,
			Audit:    auditLogger,
			Bus:      bus,
		}),
		command.NewStatusHandler(command.StatusHandlerConfig{
			Store:     tasks,
			Approvals: approvalMgr,
			Dispatch:  dispatchMgr,
			Prober:    prober,
			Started:   started,
		}),
		command.NewModeHandler(dispatchMgr),
		command.NewApproveHandler(approvalMgr),
		command.NewRejectHandler(approvalMgr),
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return fmt.Errorf("registering command %s: %w", h.Name(), err)
		}
	}

	// Create the router.
	r, err := router.NewRouter(router.Config{
		Commands:       registry,
		ResponseSender: dispatcher,
		ChannelLookup:  dispatcher,
		Logger:         logger,
		Audit:          auditLogger,
		RateLimiter:    rateLimiter,
	})
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}

	// Wire each channel's inbox to the router.
	for _, ch := range channels {
		ch.SetInbox(r.Submit)
	}

	// Append the router to the app lifecycle.
	app.AppendModule("router", &routerModule{
		router: r,
		ctx:    context.Background(),
	})

	// Register the session store for the gateway to discover.
	appCtx.RegisterService("router.sessions", r.Sessions())

	logger.Info("router: wired", "channels", len(channels), "commands", len(handlers))
	return nil
}
