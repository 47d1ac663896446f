// Package mcp implements the bridge.mcp module: an MCP server on a
// loopback listener exposing the task queue and the approval flow as
// tools, so an MCP-capable agent integrates without polling the
// handshake files. Both integration paths coexist; the files remain
// canonical.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module is the bridge.mcp module.
type Module struct {
	config Config
	logger *slog.Logger
	appCtx *core.AppContext

	tools  *toolServer
	mcp    *server.MCPServer
	server *http.Server
	addr   string
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "bridge.mcp",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("mcp: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The task store is required:
// a bridge with no queue behind it has nothing to serve.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger

	if err := m.config.validate(); err != nil {
		return err
	}

	svc, ok := ctx.GetService("store.tasks")
	if !ok {
		return fmt.Errorf("mcp: store.tasks service not available (enable the sqlite store)")
	}
	store, ok := svc.(task.Store)
	if !ok {
		return fmt.Errorf("mcp: store.tasks service is %T", svc)
	}

	m.tools = newToolServer(store, m.logger)
	if svc, ok := ctx.GetService("events.bus"); ok {
		if bus, ok := svc.(*events.Bus); ok {
			m.tools.bus = bus
		}
	}

	version := "dev"
	if svc, ok := ctx.GetService("app.version"); ok {
		if v, ok := svc.(string); ok && v != "" {
			version = v
		}
	}

	srv := server.NewMCPServer("ccontrol", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	m.tools.register(srv)
	m.mcp = srv

	m.logger.Info("mcp bridge provisioned",
		"listen", m.config.Listen,
		"path", m.config.Path,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if m.tools == nil {
		return fmt.Errorf("mcp: tools not initialized (Provision not called)")
	}
	return nil
}

// Start implements core.Starter. The approval manager is wired by the
// app after provisioning, so the gate resolves here; with the event bus
// present it is wrapped so resolutions reach the channel prompt.
func (m *Module) Start() error {
	svc, ok := m.appCtx.GetService("approval.manager")
	if !ok {
		return fmt.Errorf("mcp: approval.manager service not available")
	}
	gate, ok := svc.(approval.Gate)
	if !ok {
		return fmt.Errorf("mcp: approval.manager service is %T, not a gate", svc)
	}
	if svc, ok := m.appCtx.GetService("events.bus"); ok {
		if bus, ok := svc.(*events.Bus); ok {
			gate = approval.PublishResolved(gate, bus)
		}
	}
	m.tools.setGate(gate)

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, server.NewStreamableHTTPServer(m.mcp))

	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", m.config.Listen)
	if err != nil {
		return fmt.Errorf("mcp: listen on %s: %w", m.config.Listen, err)
	}
	m.addr = ln.Addr().String()

	go func() {
		m.logger.Info("mcp bridge listening", "addr", m.addr, "path", m.config.Path)
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("mcp serve error", "error", err)
		}
	}()
	return nil
}

// Stop implements core.Stopper. A tool call blocked on an approval
// decision can outlive the shutdown timeout; the connection is then
// abandoned to the process exit.
func (m *Module) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, m.config.ShutdownTimeout)
	defer cancel()

	m.logger.Info("mcp bridge shutting down")
	return m.server.Shutdown(shutdownCtx)
}

// Addr returns the bound listen address, empty before Start.
func (m *Module) Addr() string {
	return m.addr
}
