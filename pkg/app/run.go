// Package app provides the shared entry point for the ccontrol daemon.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/config"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/reload"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
	"github.com/Everest18/claude-code-telegram-control/internal/telemetry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// Workspace overrides the default working directory handed to modules.
	Workspace string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads configuration, starts all modules, and blocks until a shutdown
// signal is received. SIGHUP and file-change events trigger a live
// configuration reload for modules that implement core.Reloader.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	version := params.Version
	if version == "" {
		version = "dev"
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	workspace := params.Workspace
	if workspace == "" {
		workspace = DefaultWorkspace()
	}

	// Credential store and redactor come first: every log line and audit
	// entry from here on must pass through them.
	credStore := security.NewCredentialStore()
	redactor := security.NewRedactor()

	innerHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	})
	logger := slog.New(security.NewRedactingHandler(innerHandler, redactor))

	// Audit trail: append-only JSONL, rotated at the configured size.
	auditPath := filepath.Join(dataDir, "audit", "audit.jsonl")
	auditMaxMB := 0
	if cfg.Security != nil {
		if cfg.Security.Audit.Path != "" {
			auditPath = cfg.Security.Audit.Path
		}
		auditMaxMB = cfg.Security.Audit.MaxSizeMB
	}
	auditFile, err := security.OpenAuditLog(auditPath, auditMaxMB)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer auditFile.Close()
	auditLogger := security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   auditFile,
		Redactor: redactor,
	})

	// Per-chat rate limiter. Nil when disabled; consumers treat a missing
	// limiter as no limiting.
	var rateLimiter *security.RateLimiter
	if cfg.Security == nil || !cfg.Security.RateLimit.Disabled {
		requests, windowSeconds := 0, 0
		if cfg.Security != nil {
			requests = cfg.Security.RateLimit.Requests
			windowSeconds = cfg.Security.RateLimit.WindowSeconds
		}
		rateLimiter = security.NewRateLimiter(requests, time.Duration(windowSeconds)*time.Second)
	}

	// The event bus fans daemon state out to the channel, the bridge, and
	// the gateway's event stream. Modules subscribe during Provision, so
	// it must exist before LoadModules.
	bus := events.NewBus()

	appCtx := core.NewAppContext(logger, dataDir, workspace)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	// Register shared services for cross-module discovery.
	appCtx.RegisterService("security.credentials", credStore)
	appCtx.RegisterService("security.redactor", redactor)
	appCtx.RegisterService("security.audit", auditLogger)
	if rateLimiter != nil {
		appCtx.RegisterService("security.limiter", rateLimiter)
	}
	appCtx.RegisterService("events.bus", bus)
	appCtx.RegisterService("config.path", cfgPath)
	appCtx.RegisterService("app.version", version)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return err
	}

	// Wire the router between LoadModules and Start: discover channels,
	// build the approval and dispatch managers, register the command set,
	// call SetInbox on every channel, and append the router to the app
	// lifecycle.
	if err := wireRouter(application, appCtx, ids, logger, auditLogger, rateLimiter, bus, cfg); err != nil {
		return err
	}

	// Build and register the reload entry point BEFORE Start so the
	// gateway can expose it.
	handler, err := reload.NewHandler(reload.HandlerConfig{
		App:       application,
		Logger:    logger,
		DataDir:   dataDir,
		Workspace: workspace,
		Bus:       bus,
		Audit:     auditLogger,
	})
	if err != nil {
		return err
	}
	appCtx.RegisterService("config.reload", handler.Func(cfgPath))

	// Trace export is opt-in; the middleware is only registered when a
	// provider exists, and the gateway treats its absence as no tracing.
	if cfg.Telemetry != nil && cfg.Telemetry.Enabled {
		provider, err := telemetry.NewProvider(context.Background(), telemetry.Config{
			Endpoint:       cfg.Telemetry.Endpoint,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			SampleRatio:    cfg.Telemetry.SampleRatio,
			Insecure:       cfg.Telemetry.Insecure,
		}, logger)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()
		appCtx.RegisterService("telemetry.middleware", telemetry.Middleware(provider.Tracer("ccontrol/gateway")))
	}

	if err := application.Start(); err != nil {
		return err
	}

	// Sync the redactor with all credentials registered by modules during
	// Start, so runtime secrets (bot tokens, API keys loaded from env) are
	// redacted from logs going forward.
	redactor.SyncCredentials(credStore)

	// Build the sanitized environment after modules have registered their
	// credentials, and make it available for agent execution via service
	// lookup.
	appCtx.RegisterService("security.sanitized_env", security.SanitizedEnv(credStore))

	logger.Info("ccontrol started", "version", version, "modules", len(ids))

	// --- signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// --- config file watcher ---
	watcher := reload.NewWatcher(reload.WatcherConfig{
		ConfigPath: cfgPath,
	})
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watcher.Start(watchCtx)
	defer watcher.Stop()

	// --- main event loop ---
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("SIGHUP received, reloading configuration")
				if err := handler.HandleReload(watchCtx, cfgPath); err != nil {
					logger.Error("reload failed", "error", err)
				}
			default:
				logger.Info("shutdown signal received", "signal", sig.String())
				application.Stop()
				logger.Info("shutdown complete")
				return nil
			}
		case evt := <-watcher.Events():
			logger.Info("config file changed, reloading", "path", evt.ConfigPath)
			if err := handler.HandleReload(watchCtx, cfgPath); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
	}
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/ccontrol/ccontrol.yaml →
// ~/.config/ccontrol/ccontrol.yaml → ./ccontrol.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "ccontrol", "ccontrol.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "ccontrol", "ccontrol.yaml"))
	}

	candidates = append(candidates, "ccontrol.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/ccontrol if set, otherwise ~/.local/share/ccontrol
// per the XDG spec.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "ccontrol")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "ccontrol")
}

// DefaultWorkspace returns the current working directory.
func DefaultWorkspace() string {
	dir, _ := os.Getwd()
	return dir
}
