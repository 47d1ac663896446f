// Package cloud implements the executor.cloud module: tasks routed to a
// GitHub Actions workflow through a repository_dispatch event. The
// workflow runs the task headless and reports back through the gateway's
// completion webhook, which this module also provides.
package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/dispatch"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/github"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Cloud{})
}

// Compile-time interface guards.
var (
	_ dispatch.Executor = (*Cloud)(nil)

	_ core.Configurable = (*Cloud)(nil)
	_ core.Provisioner  = (*Cloud)(nil)
	_ core.Validator    = (*Cloud)(nil)
	_ core.Starter      = (*Cloud)(nil)
)

// repoDispatcher is the slice of the GitHub client Execute needs.
// Narrowed for tests.
type repoDispatcher interface {
	CreateRepositoryDispatch(ctx context.Context, owner, repo string, req github.DispatchRequest) error
}

// Cloud is the executor.cloud module.
type Cloud struct {
	config Config
	logger *slog.Logger
	appCtx *core.AppContext

	client  repoDispatcher
	owner   string
	repo    string
	handler *completionHandler
}

// dispatchPayload is the client_payload handed to the workflow.
type dispatchPayload struct {
	TaskID    string `json:"task_id"`
	Task      string `json:"task"`
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

// ModuleInfo implements core.Module.
func (c *Cloud) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "executor.cloud",
		New: func() core.Module { return &Cloud{} },
	}
}

// Configure implements core.Configurable.
func (c *Cloud) Configure(node *yaml.Node) error {
	if err := node.Decode(&c.config); err != nil {
		return fmt.Errorf("cloud: decode config: %w", err)
	}
	c.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The completion webhook handler
// registers as "cloud.webhook" so the gateway can mount it; the store
// module provisions earlier, so its service is already visible.
func (c *Cloud) Provision(ctx *core.AppContext) error {
	c.config.defaults()
	c.appCtx = ctx
	c.logger = ctx.Logger

	if err := c.config.validate(); err != nil {
		return err
	}
	if !c.config.tokenShapeKnown() {
		c.logger.Warn("github token does not match a known token prefix",
			"hint", "classic tokens start with ghp_, fine-grained with github_pat_",
		)
	}

	owner, repo, err := c.config.splitRepo()
	if err != nil {
		return err
	}
	c.owner, c.repo = owner, repo

	client, err := github.New(github.Config{
		BaseURL: c.config.APIURL,
		Token:   c.config.Token,
		Logger:  c.logger,
	})
	if err != nil {
		return err
	}
	c.client = client

	if svc, ok := ctx.GetService("security.credentials"); ok {
		if creds, ok := svc.(interface{ Set(name, value string) }); ok {
			creds.Set("github.token", c.config.Token)
		}
	}

	handler := &completionHandler{logger: c.logger}
	if svc, ok := ctx.GetService("store.tasks"); ok {
		if store, ok := svc.(task.Store); ok {
			handler.store = store
		}
	}
	if svc, ok := ctx.GetService("events.bus"); ok {
		if bus, ok := svc.(*events.Bus); ok {
			handler.bus = bus
		}
	}
	c.handler = handler
	ctx.RegisterService("cloud.webhook", handler)

	c.logger.Info("cloud executor provisioned",
		"repo", c.config.Repo,
		"event_type", c.config.EventType,
	)
	return nil
}

// Validate implements core.Validator.
func (c *Cloud) Validate() error {
	if err := c.config.validate(); err != nil {
		return err
	}
	if c.client == nil {
		return fmt.Errorf("cloud: client not initialized (Provision not called)")
	}
	return nil
}

// Start implements core.Starter. The dispatch manager and the channel
// dispatcher are assembled after module provisioning, so both resolve
// here. A missing channel dispatcher only disables completion notices.
func (c *Cloud) Start() error {
	svc, ok := c.appCtx.GetService("dispatch.manager")
	if !ok {
		return fmt.Errorf("cloud: dispatch.manager service not available")
	}
	mgr, ok := svc.(*dispatch.Manager)
	if !ok {
		return fmt.Errorf("cloud: dispatch.manager service is %T", svc)
	}
	if err := mgr.Register(c); err != nil {
		return fmt.Errorf("cloud: register executor: %w", err)
	}

	if svc, ok := c.appCtx.GetService("channel.dispatcher"); ok {
		if sender, ok := svc.(ChatSender); ok {
			c.handler.setSender(sender)
		}
	}

	c.logger.Info("cloud executor started", "route", c.Name())
	return nil
}

// Name implements dispatch.Executor.
func (c *Cloud) Name() string {
	return string(task.ModeCloud)
}

// Execute implements dispatch.Executor: one repository_dispatch event
// per task. Acceptance means GitHub queued the event; the workflow's
// progress arrives later through the completion webhook.
func (c *Cloud) Execute(ctx context.Context, t *task.Task) error {
	err := c.client.CreateRepositoryDispatch(ctx, c.owner, c.repo, github.DispatchRequest{
		EventType: c.config.EventType,
		ClientPayload: dispatchPayload{
			TaskID:    t.ID,
			Task:      t.Description,
			ChatID:    t.ChatID,
			MessageID: t.MessageID,
		},
	})
	if err != nil {
		return err
	}

	c.logger.Info("cloud: workflow triggered",
		"task_id", t.ID,
		"repo", c.config.Repo,
		"event_type", c.config.EventType,
	)
	return nil
}
