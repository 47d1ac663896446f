package reload

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// reloadProbe counts Reload calls. Registered so config validation
// accepts it as a known module ID.
type reloadProbe struct {
	mu      sync.Mutex
	reloads int
}

func (p *reloadProbe) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "test.reloadable",
		New: func() core.Module { return &reloadProbe{} },
	}
}

func (p *reloadProbe) Reload(_ *core.AppContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
	return nil
}

func (p *reloadProbe) reloadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func init() {
	core.RegisterModule(&reloadProbe{})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func newTestHandler(t *testing.T, cfg HandlerConfig) (*Handler, *core.App) {
	t.Helper()
	logger := testLogger()
	appCtx := core.NewAppContext(logger, t.TempDir(), t.TempDir())
	a := core.NewApp(appCtx)
	cfg.App = a
	cfg.Logger = logger
	h, err := NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h, a
}

func TestNewHandler_NilApp(t *testing.T) {
	if _, err := NewHandler(HandlerConfig{}); err == nil {
		t.Fatal("expected error for nil App")
	}
}

func TestHandler_HandleReload_FileNotFound(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	err := h.HandleReload(context.Background(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestHandler_HandleReload_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "modules: {}")
	h, _ := newTestHandler(t, HandlerConfig{})

	err := h.HandleReload(context.Background(), path)
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestHandler_HandleReload_UnknownModule(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\nmodules:\n  fake.mod: {}\n")
	h, _ := newTestHandler(t, HandlerConfig{})

	err := h.HandleReload(context.Background(), path)
	if err == nil {
		t.Error("expected validation error for unknown module")
	}
}

func TestHandler_HandleReload_Success(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\nmodules:\n  test.reloadable: {}\n")

	bus := events.NewBus()
	ch, cancelSub := bus.Subscribe(4)
	defer cancelSub()

	var (
		auditMu sync.Mutex
		audited []security.AuditEvent
	)
	audit := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(ev security.AuditEvent) {
			auditMu.Lock()
			audited = append(audited, ev)
			auditMu.Unlock()
		},
	})

	h, a := newTestHandler(t, HandlerConfig{Bus: bus, Audit: audit})
	probe := &reloadProbe{}
	a.AppendModule("test.reloadable", probe)

	if err := h.HandleReload(context.Background(), path); err != nil {
		t.Fatalf("HandleReload: %v", err)
	}

	if probe.reloadCount() != 1 {
		t.Errorf("reload count = %d, want 1", probe.reloadCount())
	}

	select {
	case ev := <-ch:
		if ev.Type != events.TypeConfigReloaded {
			t.Errorf("event type = %q, want %q", ev.Type, events.TypeConfigReloaded)
		}
		if ev.Detail != path {
			t.Errorf("event detail = %q, want %q", ev.Detail, path)
		}
	case <-time.After(time.Second):
		t.Fatal("no bus event received")
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if len(audited) != 1 {
		t.Fatalf("audit events = %d, want 1", len(audited))
	}
	if audited[0].Type != security.EventConfigReloaded {
		t.Errorf("audit type = %q, want %q", audited[0].Type, security.EventConfigReloaded)
	}
}

func TestHandler_HandleReload_CancelledContext(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\nmodules:\n  test.reloadable: {}\n")
	h, _ := newTestHandler(t, HandlerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	if err := h.HandleReload(ctx, path); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestHandler_Func(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\nmodules:\n  test.reloadable: {}\n")

	h, a := newTestHandler(t, HandlerConfig{})
	probe := &reloadProbe{}
	a.AppendModule("test.reloadable", probe)

	fn := h.Func(path)
	if err := fn(context.Background()); err != nil {
		t.Fatalf("reload func: %v", err)
	}
	if probe.reloadCount() != 1 {
		t.Errorf("reload count = %d, want 1", probe.reloadCount())
	}
}
