package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Everest18/claude-code-telegram-control/internal/config"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
)

// Handler reloads application configuration and notifies modules.
type Handler struct {
	app       *core.App
	logger    *slog.Logger
	dataDir   string
	workspace string
	bus       *events.Bus
	audit     *security.AuditLogger
}

// HandlerConfig configures a reload Handler. App is required; Bus and
// Audit are optional observability hooks.
type HandlerConfig struct {
	App       *core.App
	Logger    *slog.Logger
	DataDir   string
	Workspace string
	Bus       *events.Bus
	Audit     *security.AuditLogger
}

// NewHandler creates a reload handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.App == nil {
		return nil, errors.New("reload: nil App")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		app:       cfg.App,
		logger:    cfg.Logger,
		dataDir:   cfg.DataDir,
		workspace: cfg.Workspace,
		bus:       cfg.Bus,
		audit:     cfg.Audit,
	}, nil
}

// HandleReload loads a fresh config from disk, validates it, and calls
// Reload on all modules that implement core.Reloader. A validation error
// leaves the running configuration untouched.
func (h *Handler) HandleReload(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	appCtx := core.NewAppContext(h.logger, h.dataDir, h.workspace)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	if err := h.app.ReloadModules(appCtx); err != nil {
		return fmt.Errorf("reloading modules: %w", err)
	}

	h.logger.Info("configuration reloaded", "path", configPath)
	if h.bus != nil {
		h.bus.Publish(events.Event{Type: events.TypeConfigReloaded, Detail: configPath})
	}
	if h.audit != nil {
		h.audit.Log(security.AuditEvent{
			Type:   security.EventConfigReloaded,
			Detail: configPath,
		})
	}
	return nil
}

// Func binds the handler to a config path as a plain function, the shape
// the "config.reload" service registers.
func (h *Handler) Func(configPath string) func(context.Context) error {
	return func(ctx context.Context) error {
		return h.HandleReload(ctx, configPath)
	}
}
