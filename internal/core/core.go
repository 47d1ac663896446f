package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const shutdownTimeout = 30 * time.Second

// App owns the lifecycle of the loaded modules: construction order on
// the way up, reverse order on the way down.
type App struct {
	ctx     *AppContext
	modules []loadedModule
	logger  *slog.Logger
}

// loadedModule pairs a constructed module with its lifecycle state.
// running tracks whether Start succeeded, so teardown skips modules
// that never came up.
type loadedModule struct {
	id      ModuleID
	mod     Module
	running bool
}

// NewApp creates an App bound to the given context.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// LoadModules instantiates, provisions, and validates the modules for
// the given IDs, in order. A failure tears down whatever was already
// built and reports which module broke.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.unload()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.modules = append(a.modules, loadedModule{
			id:  mod.ModuleInfo().ID,
			mod: mod,
		})
		a.logger.Info("module loaded", "module", id)
	}
	return nil
}

// Module returns the loaded module instance with the given ID, or false
// when no such module has been loaded.
func (a *App) Module(id string) (Module, bool) {
	for i := range a.modules {
		if string(a.modules[i].id) == id {
			return a.modules[i].mod, true
		}
	}
	return nil, false
}

// AppendModule adds an externally constructed module to the app
// lifecycle. It participates in Start/Stop like registry-loaded
// modules. The composition root uses it for components built after
// LoadModules, the router among them.
func (a *App) AppendModule(id string, mod Module) {
	a.modules = append(a.modules, loadedModule{
		id:  ModuleID(id),
		mod: mod,
	})
}

// Start brings up every module that implements Starter, in load order.
// When one fails, the ones already running are stopped in reverse
// before the error is returned.
func (a *App) Start() error {
	for i := range a.modules {
		entry := &a.modules[i]
		s, ok := entry.mod.(Starter)
		if !ok {
			continue
		}
		a.logger.Info("starting module", "module", string(entry.id))
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(entry.id), "error", err)
			a.stopDownFrom(i - 1)
			return fmt.Errorf("starting module %s: %w", entry.id, err)
		}
		entry.running = true
	}
	a.logger.Info("all modules started")
	return nil
}

// Stop takes every running module down in reverse load order, bounded
// by the shutdown timeout.
func (a *App) Stop() {
	a.stopDownFrom(len(a.modules) - 1)
}

func (a *App) stopDownFrom(last int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := last; i >= 0; i-- {
		entry := &a.modules[i]
		if !entry.running {
			continue
		}
		if s, ok := entry.mod.(Stopper); ok {
			a.logger.Info("stopping module", "module", string(entry.id))
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("module stop error", "module", string(entry.id), "error", err)
			}
		}
		entry.running = false
	}
}

// unload tears down after a failed LoadModules. Nothing has started
// yet, but constructed modules may hold resources their Stop releases.
func (a *App) unload() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.modules) - 1; i >= 0; i-- {
		if s, ok := a.modules[i].mod.(Stopper); ok {
			_ = s.Stop(ctx)
		}
	}
	a.modules = nil
}

// ReloadModules hands the fresh AppContext to every module that
// implements Reloader. All reloads are attempted; the joined error
// reports every module that refused.
func (a *App) ReloadModules(ctx *AppContext) error {
	var errs []error
	for i := range a.modules {
		entry := &a.modules[i]
		r, ok := entry.mod.(Reloader)
		if !ok {
			continue
		}
		a.logger.Info("reloading module", "module", string(entry.id))
		if err := r.Reload(ctx.ForModule(entry.id)); err != nil {
			a.logger.Error("module reload failed", "module", string(entry.id), "error", err)
			errs = append(errs, fmt.Errorf("reloading module %s: %w", entry.id, err))
		}
	}
	return errors.Join(errs...)
}
