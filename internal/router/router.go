package router

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/command"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

const (
	defaultInboxSize = 256
	defaultMaxIdle   = 30 * time.Minute
)

// Config holds the knobs for a Router. Commands and ResponseSender are
// mandatory; everything else has a sensible zero value.
type Config struct {
	WorkerCount    int
	InboxSize      int
	MaxIdle        time.Duration
	GroupPolicy    GroupPolicy
	Commands       *command.Registry
	ResponseSender ResponseSender
	Logger         *slog.Logger

	// ChannelLookup resolves channels by name for typing indicators.
	// Nil means no typing.
	ChannelLookup ChannelLookup

	// Audit, if non-nil, records message reception and rate-limit denials.
	Audit *security.AuditLogger

	// RateLimiter, if non-nil, throttles each chat's message rate.
	RateLimiter *security.RateLimiter

	// MaxMessageSize caps the raw payload in bytes. Zero means the
	// security package default (1 MiB).
	MaxMessageSize int

	// MaxSessions caps concurrent chat sessions. Zero means unlimited.
	MaxSessions int
}

// normalized fills in defaults for unset fields and returns the copy.
func (c Config) normalized() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = DefaultWorkerCount
	}
	if c.InboxSize <= 0 {
		c.InboxSize = defaultInboxSize
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = defaultMaxIdle
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Router is the central dispatch layer. It maintains per-chat sessions,
// runs inbound messages through the pipeline to the command handlers,
// and sends replies back via the correct channel.
type Router struct {
	config   Config
	inbox    chan envelope
	inboxMu  sync.RWMutex
	store    SessionStore
	laneLock *LaneLock
	pool     *WorkerPool
	pipeline *Pipeline
	pruner   *lazyPruner
	cancel   context.CancelFunc
	stopOnce sync.Once
	logger   *slog.Logger
	stopped  atomic.Bool
}

// NewRouter wires the session store, lane lock, pruner, and pipeline
// from the given configuration.
func NewRouter(cfg Config) (*Router, error) {
	cfg = cfg.normalized()

	if cfg.Commands == nil {
		return nil, ErrNoCommands
	}
	if cfg.ResponseSender == nil {
		return nil, ErrNoResponseSender
	}

	store := NewInMemorySessionStore()
	if cfg.MaxSessions > 0 {
		store.SetMaxSessions(cfg.MaxSessions)
	}
	laneLock := NewLaneLock()
	pruner := newLazyPruner(store, laneLock, cfg.MaxIdle)

	pipeline := NewPipeline(PipelineConfig{
		Store:          store,
		LaneLock:       laneLock,
		GroupPolicy:    cfg.GroupPolicy,
		Commands:       cfg.Commands,
		ResponseSender: cfg.ResponseSender,
		ChannelLookup:  cfg.ChannelLookup,
		Audit:          cfg.Audit,
		Pruner:         pruner,
		Logger:         cfg.Logger,
	})

	return &Router{
		config:   cfg,
		inbox:    make(chan envelope, cfg.InboxSize),
		store:    store,
		laneLock: laneLock,
		pool:     NewWorkerPool(cfg.WorkerCount),
		pipeline: pipeline,
		pruner:   pruner,
		logger:   cfg.Logger,
	}, nil
}

// Start launches the worker pool and begins processing messages.
// Starting an already-stopped router is a logged no-op.
func (r *Router) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.inboxMu.Lock()
	if r.stopped.Load() {
		r.inboxMu.Unlock()
		cancel()
		r.logger.Warn("router: start ignored, router already stopped")
		return
	}
	r.cancel = cancel
	r.inboxMu.Unlock()

	r.pool.Start(ctx, r.inbox, func(ctx context.Context, env envelope) {
		r.pipeline.Execute(ctx, env)
	})
	r.logger.Info("router: started", "workers", r.config.WorkerCount, "inbox_size", r.config.InboxSize)
}

// Submit enqueues an inbound message for processing. Screening happens
// here at the system boundary so hostile input never reaches a worker,
// and the enqueue never blocks: a full inbox drops the message instead
// of stalling the channel's receive loop.
func (r *Router) Submit(msg message.InboundMessage) error {
	r.inboxMu.RLock()
	defer r.inboxMu.RUnlock()

	if r.stopped.Load() {
		return ErrRouterStopped
	}
	if err := r.screen(msg); err != nil {
		return err
	}

	key := SessionKeyFromMessage(msg)
	select {
	case r.inbox <- envelope{Message: msg, Key: key}:
		return nil
	default:
		r.logger.Warn("router: inbox full, message dropped",
			"channel", key.Channel,
			"chat_id", key.ChatID,
		)
		return ErrInboxFull
	}
}

// screen applies the boundary checks to a message before it may enter
// the inbox: raw payload size, JSON depth, and the per-chat rate limit.
func (r *Router) screen(msg message.InboundMessage) error {
	if len(msg.Raw) > 0 {
		if err := security.ValidateMessageSize(msg.Raw, r.config.MaxMessageSize); err != nil {
			r.logger.Warn("router: message too large, rejected",
				"size", len(msg.Raw),
				"channel", msg.Channel,
			)
			return err
		}
		if err := security.ValidateJSONDepth(msg.Raw, 0); err != nil {
			r.logger.Warn("router: message JSON too deep, rejected",
				"channel", msg.Channel,
			)
			return err
		}
	}

	if r.config.RateLimiter == nil {
		return nil
	}
	if err := r.config.RateLimiter.Allow("message:" + msg.Chat.ID); err != nil {
		r.logger.Warn("router: message rate limited",
			"channel", msg.Channel,
			"chat_id", msg.Chat.ID,
		)
		if r.config.Audit != nil {
			r.config.Audit.Log(security.AuditEvent{
				Type:     security.EventRateLimited,
				Channel:  msg.Channel,
				ChatID:   msg.Chat.ID,
				SenderID: msg.Sender.ID,
			})
		}
		return err
	}
	return nil
}

// Stop shuts the router down: no new submissions, inbox closed, workers
// drained. Safe to call more than once.
func (r *Router) Stop(_ context.Context) {
	r.stopOnce.Do(func() {
		r.logger.Info("router: stopping")

		r.inboxMu.Lock()
		r.stopped.Store(true)
		close(r.inbox)
		cancel := r.cancel
		r.inboxMu.Unlock()

		// Cancel before waiting so in-flight handlers can terminate.
		if cancel != nil {
			cancel()
		}

		r.pool.Wait()
		r.logger.Info("router: stopped")
	})
}

// PruneSessions triggers a lazy session prune and reports how many went.
func (r *Router) PruneSessions() int {
	return r.pruner.TryPrune()
}

// Sessions exposes the session store for status commands and tests.
func (r *Router) Sessions() SessionStore {
	return r.store
}
