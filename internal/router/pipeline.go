package router

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/Everest18/claude-code-telegram-control/internal/channel"
	"github.com/Everest18/claude-code-telegram-control/internal/command"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// Operator-facing replies for pipeline-level outcomes.
const (
	replyTooManySessions = "Too many active sessions. Please try again later."
	replyGenericError    = "An error occurred. Please try again or contact support."
	replyNotACommand     = "❓ I only understand commands. Send /help to see what I can do."
)

// PipelineConfig groups the dependencies for the message pipeline.
type PipelineConfig struct {
	Store          SessionStore
	LaneLock       *LaneLock
	GroupPolicy    GroupPolicy
	Commands       *command.Registry
	ResponseSender ResponseSender
	Pruner         *lazyPruner
	Logger         *slog.Logger

	// ChannelLookup resolves channels by name, used to start typing
	// indicators while a command runs. Nil means no typing.
	ChannelLookup ChannelLookup

	// Audit, if non-nil, records every message that reaches the pipeline.
	Audit *security.AuditLogger
}

// PipelineResult contains the outcome of processing one message.
type PipelineResult struct {
	Session  *Session
	Response *command.Response
	Error    error
	Skipped  bool
}

// Pipeline executes the message processing steps: reception, session
// resolution, group policy, lane serialization, command dispatch, reply.
type Pipeline struct {
	cfg PipelineConfig
}

// NewPipeline creates a new pipeline with the given configuration.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Execute runs the pipeline for a single message.
func (p *Pipeline) Execute(ctx context.Context, env envelope) PipelineResult {
	logger := p.cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Reception — log and audit every message that made it past the
	// channel allow-list.
	logger.Info("pipeline: message received",
		"channel", env.Key.Channel,
		"chat_id", env.Key.ChatID,
		"thread_id", env.Key.ThreadID,
	)
	if p.cfg.Audit != nil {
		p.cfg.Audit.Log(security.AuditEvent{
			Type:     security.EventMessageReceived,
			Channel:  env.Key.Channel,
			ChatID:   env.Key.ChatID,
			SenderID: env.Message.Sender.ID,
		})
	}

	// Session resolution — get or create the chat's session.
	session, created := p.cfg.Store.GetOrCreate(env.Key)
	if session == nil {
		logger.Warn("pipeline: max sessions reached, message dropped",
			"channel", env.Key.Channel,
			"chat_id", env.Key.ChatID,
		)
		p.sendReply(ctx, env.Message, replyTooManySessions)
		return PipelineResult{Skipped: true}
	}
	if created {
		logger.Info("pipeline: new session created", "session_id", session.ID)
	}

	// Group policy — check if the message should be processed.
	if !p.cfg.GroupPolicy.ShouldProcess(env.Message) {
		logger.Debug("pipeline: message filtered by group policy",
			"sender", env.Message.Sender.ID,
		)
		return PipelineResult{Session: session, Skipped: true}
	}

	// Lane — commands for one chat run in order; the deferred release
	// ends the critical section after the reply is sent.
	p.cfg.LaneLock.Acquire(env.Key)
	defer p.cfg.LaneLock.Release(env.Key)

	// Command parse.
	name, args := env.Message.Command()
	if name == "" {
		// Plain text in a DM gets a pointer to /help; groups stay quiet.
		if env.Message.IsDirectMessage() {
			p.sendReply(ctx, env.Message, replyNotACommand)
		}
		return PipelineResult{Session: session, Skipped: true}
	}

	handler, err := p.cfg.Commands.Get(name)
	if err != nil {
		logger.Debug("pipeline: unknown command", "command", name)
		p.sendReply(ctx, env.Message, fmt.Sprintf("❌ Unknown command /%s. Send /help to see available commands.", name))
		return PipelineResult{Session: session, Skipped: true}
	}

	// Typing indicator — show "typing..." while the command runs. Most
	// commands are instant, but /task can spend seconds on the GitHub
	// dispatch call.
	var cancelTyping context.CancelFunc
	if p.cfg.ChannelLookup != nil {
		if ch, ok := p.cfg.ChannelLookup.Get(env.Key.Channel); ok {
			if tc, ok := ch.(channel.TypingChannel); ok {
				typingCtx, cancel := context.WithCancel(ctx)
				cancelTyping = cancel
				channel.StartTypingLoop(typingCtx, tc, env.Message.Chat, 0)
			}
		}
	}

	// Dispatch — run the handler with the chat's session state.
	resp, err := p.runHandler(ctx, handler, command.Request{
		Name:    name,
		Args:    args,
		Message: env.Message,
		Session: &sessionStateAdapter{session: session},
	})

	// Stop the typing indicator before handling the result.
	if cancelTyping != nil {
		cancelTyping()
	}

	if err != nil {
		logger.Error("pipeline: command failed",
			"command", name, "error", err, "session_id", session.ID)
		p.sendReply(ctx, env.Message, replyGenericError)
		return PipelineResult{Session: session, Error: err}
	}

	// Reply — deliver the handler's text via ResponseSender.
	if resp.Text != "" {
		if err := p.cfg.ResponseSender.Send(ctx, buildReply(env.Message, resp.Text)); err != nil {
			logger.Error("pipeline: failed to send reply",
				"command", name, "error", err, "session_id", session.ID)
			return PipelineResult{Session: session, Response: &resp, Error: err}
		}
	}

	p.cfg.Store.Touch(env.Key)

	// Lazy pruning — opportunistically prune stale sessions.
	if p.cfg.Pruner != nil {
		if pruned := p.cfg.Pruner.TryPrune(); pruned > 0 {
			logger.Info("pipeline: pruned stale sessions", "count", pruned)
		}
	}

	return PipelineResult{Session: session, Response: &resp}
}

// runHandler executes a command handler, converting a panic into an
// error so one bad command cannot take down a worker.
func (p *Pipeline) runHandler(ctx context.Context, h command.Handler, req command.Request) (resp command.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.cfg.Logger != nil {
				p.cfg.Logger.Error("pipeline: command panicked",
					"command", req.Name, "panic", r, "stack", string(debug.Stack()))
			}
			err = fmt.Errorf("router: command /%s panicked: %v", req.Name, r)
		}
	}()
	return h.Execute(ctx, req)
}

// sendReply sends operator-facing text via ResponseSender. Never panics.
func (p *Pipeline) sendReply(ctx context.Context, original message.InboundMessage, text string) {
	if err := p.cfg.ResponseSender.Send(ctx, buildReply(original, text)); err != nil {
		if p.cfg.Logger != nil {
			p.cfg.Logger.Error("pipeline: failed to send reply", "error", err)
		}
	}
}
