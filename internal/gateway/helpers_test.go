package gateway

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Everest18/claude-code-telegram-control/internal/command"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/dispatch"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// stubProber reports a fixed agent status.
type stubProber struct {
	online bool
	text   string
}

func (p *stubProber) Probe(_ context.Context) command.AgentStatus {
	return command.AgentStatus{Online: p.online, StatusText: p.text, CheckedAt: time.Now()}
}

// stubExecutor accepts every task on its route.
type stubExecutor struct {
	route string
	calls atomic.Int64
}

func (e *stubExecutor) Name() string { return e.route }

func (e *stubExecutor) Execute(_ context.Context, _ *task.Task) error {
	e.calls.Add(1)
	return nil
}

// newTestRoutes builds a dispatch manager with a single registered route.
func newTestRoutes(t *testing.T, store task.Store, route string) *dispatch.Manager {
	t.Helper()
	m, err := dispatch.NewManager(dispatch.Config{Store: store, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Register(&stubExecutor{route: route}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return m
}

// seedTask creates a task directly in the store and returns it.
func seedTask(t *testing.T, store task.Store, id, desc string, state task.State) *task.Task {
	t.Helper()
	now := time.Now().UTC()
	tk := &task.Task{
		ID:          id,
		Description: desc,
		State:       state,
		Channel:     "telegram",
		ChatID:      "100",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.Create(context.Background(), tk); err != nil {
		t.Fatalf("Create(%s): %v", id, err)
	}
	return tk
}

// freeAddr returns a free TCP address on localhost.
func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

// doGet makes a GET request with context.
func doGet(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// doGetWithBearer makes a GET request with a bearer token.
func doGetWithBearer(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// newTestGateway builds a started-ready gateway bound to addr. Services
// are resolved from appCtx at Start, so callers register them before
// calling Start.
func newTestGateway(t *testing.T, addr string, auth AuthConfig, appCtx *core.AppContext) *Gateway {
	t.Helper()
	logger := testLogger()
	if appCtx == nil {
		appCtx = core.NewAppContext(logger, t.TempDir(), t.TempDir())
	}

	g := &Gateway{}
	g.config = Config{
		Bind:            addr,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 2 * time.Second,
		Auth:            auth,
	}
	g.appCtx = appCtx
	g.logger = logger
	g.metrics = NewMetrics()
	g.dispatcher = NewWebhookDispatcher(logger)
	g.dispatcher.metrics = g.metrics
	return g
}

// mustYAMLNode parses YAML text into a *yaml.Node for Configure calls.
func mustYAMLNode(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		t.Fatalf("YAML parse: %v", err)
	}
	if len(node.Content) > 0 {
		return node.Content[0]
	}
	return &node
}
