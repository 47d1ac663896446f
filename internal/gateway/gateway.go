package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"github.com/Everest18/claude-code-telegram-control/internal/command"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/dispatch"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// eventMetricsBuffer is the bus subscription buffer for the metrics
// bridge.
const eventMetricsBuffer = 128

// Gateway is the HTTP gateway module. It exposes health, metrics,
// status, admin, and webhook endpoints. It is a leaf module — nothing
// imports it.
type Gateway struct {
	config     Config
	configPath string
	appCtx     *core.AppContext
	logger     *slog.Logger
	server     *http.Server
	metrics    *Metrics
	dispatcher *WebhookDispatcher
	startedAt  time.Time
	version    string
	stop       chan struct{}

	cancelMetricsFeed func()

	// Resolved lazily at Start() via the service registry. All of them
	// are optional: a missing service degrades the endpoint that needs
	// it rather than failing startup.
	tasks     task.Store
	approvals *approval.Manager
	routes    *dispatch.Manager
	bus       *events.Bus
	agent     command.AgentProber
	audit     *security.AuditLogger
	limiter   *security.RateLimiter
	telegram  http.Handler
	reload    func(context.Context) error
	tracing   func(http.Handler) http.Handler
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()
	g.dispatcher = NewWebhookDispatcher(g.logger)
	g.dispatcher.metrics = g.metrics

	// Register services for cross-module discovery. Handlers attach to
	// the dispatcher later; secrets configured here apply to them.
	ctx.RegisterService("gateway.metrics", g.metrics)
	ctx.RegisterService("gateway.webhook_dispatcher", g.dispatcher)

	for source, cfg := range g.config.Webhooks {
		if cfg.Secret != "" {
			g.dispatcher.SetSecret(source, cfg.Secret)
			g.logger.Info("webhook source configured", "source", source)
		}
	}

	g.configPath = g.config.ConfigPath

	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", g.config.Bind, err)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the
// service registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = time.Now()
	g.stop = make(chan struct{})

	if g.bus != nil {
		g.startMetricsFeed()
	}

	mux := g.buildRouter()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      mux,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen on %s: %w", g.config.Bind, err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured
// timeout. Event stream connections are told to go away first since
// hijacked connections are outside the server's shutdown accounting.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	if g.stop != nil {
		close(g.stop)
	}
	if g.cancelMetricsFeed != nil {
		g.cancelMetricsFeed()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// resolveServices binds optional collaborators from the service
// registry. Modules provision in dependency order before the gateway
// starts, so everything that registered is visible here.
func (g *Gateway) resolveServices() {
	if svc, ok := g.appCtx.GetService("store.tasks"); ok {
		if store, ok := svc.(task.Store); ok {
			g.tasks = store
		}
	}
	if svc, ok := g.appCtx.GetService("approval.manager"); ok {
		if mgr, ok := svc.(*approval.Manager); ok {
			g.approvals = mgr
		}
	}
	if svc, ok := g.appCtx.GetService("dispatch.manager"); ok {
		if mgr, ok := svc.(*dispatch.Manager); ok {
			g.routes = mgr
		}
	}
	if svc, ok := g.appCtx.GetService("events.bus"); ok {
		if bus, ok := svc.(*events.Bus); ok {
			g.bus = bus
		}
	}
	if svc, ok := g.appCtx.GetService("heartbeat.state"); ok {
		if prober, ok := svc.(command.AgentProber); ok {
			g.agent = prober
		}
	}
	if svc, ok := g.appCtx.GetService("security.audit"); ok {
		if audit, ok := svc.(*security.AuditLogger); ok {
			g.audit = audit
			g.dispatcher.audit = audit
		}
	}
	if svc, ok := g.appCtx.GetService("security.limiter"); ok {
		if limiter, ok := svc.(*security.RateLimiter); ok {
			g.limiter = limiter
		}
	}
	if svc, ok := g.appCtx.GetService("telegram.webhook"); ok {
		if handler, ok := svc.(http.Handler); ok {
			g.telegram = handler
		}
	}
	if svc, ok := g.appCtx.GetService("cloud.webhook"); ok {
		if handler, ok := svc.(WebhookHandler); ok {
			g.dispatcher.Register("github", handler, "")
		}
	}
	if svc, ok := g.appCtx.GetService("heartbeat.webhook"); ok {
		if handler, ok := svc.(WebhookHandler); ok {
			g.dispatcher.Register("agent", handler, "")
		}
	}
	if svc, ok := g.appCtx.GetService("config.reload"); ok {
		if fn, ok := svc.(func(context.Context) error); ok {
			g.reload = fn
		}
	}
	if svc, ok := g.appCtx.GetService("telemetry.middleware"); ok {
		if mw, ok := svc.(func(http.Handler) http.Handler); ok {
			g.tracing = mw
		}
	}
	if svc, ok := g.appCtx.GetService("app.version"); ok {
		if version, ok := svc.(string); ok {
			g.version = version
		}
	}
	if g.configPath == "" {
		if svc, ok := g.appCtx.GetService("config.path"); ok {
			if path, ok := svc.(string); ok {
				g.configPath = path
			}
		}
	}
}

// startMetricsFeed counts bus events into the Prometheus registry and
// exposes the bus drop counter. The subscription ends when Stop cancels
// it.
func (g *Gateway) startMetricsFeed() {
	g.metrics.Registry().MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_dropped_total",
		Help:      "Bus events dropped because a subscriber's buffer was full.",
	}, func() float64 {
		return float64(g.bus.Dropped())
	}))

	evs, cancel := g.bus.Subscribe(eventMetricsBuffer)
	g.cancelMetricsFeed = cancel
	go func() {
		for ev := range evs {
			g.metrics.RecordEvent(string(ev.Type))
		}
	}()
}
