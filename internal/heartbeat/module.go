package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/command"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// ModuleConfig holds monitor configuration.
type ModuleConfig struct {
	Interval         time.Duration `yaml:"interval"`
	FailureThreshold int           `yaml:"failure_threshold"`
	QuietHours       string        `yaml:"quiet_hours"` // "HH:MM-HH:MM", empty = none
	Timezone         string        `yaml:"timezone"`    // IANA name, empty = UTC
	Passive          bool          `yaml:"passive"`     // true = no own loop, cron drives CheckNow
}

func (c *ModuleConfig) defaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
}

// Module wires the liveness monitor into the app. Without a local bridge
// prober there is nothing to watch, so the module provisions to a no-op.
type Module struct {
	config      ModuleConfig
	appCtx      *core.AppContext
	logger      *slog.Logger
	monitor     *Monitor
	loopStarted bool
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "heartbeat.monitor",
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

// Provision implements core.Provisioner. The heartbeat module provisions
// after the bridge, channel, and gateway modules, so everything it needs
// is already in the service registry.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger

	svc, ok := ctx.GetService("bridge.local")
	if !ok {
		m.logger.Info("heartbeat: no local bridge, monitor disabled")
		return nil
	}
	prober, ok := svc.(command.AgentProber)
	if !ok {
		return fmt.Errorf("heartbeat: bridge.local service is %T, not a prober", svc)
	}

	cfg := Config{
		Interval:         m.config.Interval,
		FailureThreshold: m.config.FailureThreshold,
		Logger:           m.logger,
	}

	if m.config.QuietHours != "" {
		qh, err := ParseQuietHours(m.config.QuietHours)
		if err != nil {
			return err
		}
		cfg.QuietHours = &qh
	}
	if m.config.Timezone != "" {
		loc, err := time.LoadLocation(m.config.Timezone)
		if err != nil {
			return fmt.Errorf("heartbeat: invalid timezone %q: %w", m.config.Timezone, err)
		}
		cfg.Timezone = loc
	}

	if svc, ok := ctx.GetService("channel.notifier"); ok {
		if notifier, ok := svc.(TransitionNotifier); ok {
			cfg.Notifier = notifier
		}
	}
	if svc, ok := ctx.GetService("events.bus"); ok {
		if bus, ok := svc.(*events.Bus); ok {
			cfg.Bus = bus
		}
	}

	monitor, err := New(cfg, prober)
	if err != nil {
		return err
	}
	m.monitor = monitor
	ctx.RegisterService("heartbeat.state", monitor)

	push, err := NewPushHandler(monitor, m.logger)
	if err != nil {
		return err
	}
	ctx.RegisterService("heartbeat.webhook", push)
	return nil
}

// Start implements core.Starter. In passive mode a single probe seeds the
// state and the cron agent_probe job takes over from there.
func (m *Module) Start() error {
	if m.monitor == nil {
		return nil
	}
	if m.config.Passive {
		m.monitor.CheckNow(context.Background())
		return nil
	}
	if err := m.monitor.Start(context.Background()); err != nil {
		return err
	}
	m.loopStarted = true
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.monitor == nil || !m.loopStarted {
		return nil
	}
	m.loopStarted = false
	if err := m.monitor.Stop(ctx); err != nil && !errors.Is(err, ErrNotStarted) {
		return err
	}
	return nil
}
