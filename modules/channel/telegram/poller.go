package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	tg "github.com/Everest18/claude-code-telegram-control/internal/telegram"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

const (
	maxConsecutivePollingErrors = 5
	errorPauseDuration          = 30 * time.Second
)

// Poller receives updates via getUpdates long polling. A single goroutine
// owns the offset; after five consecutive failures it pauses for thirty
// seconds rather than hammering a broken API.
type Poller struct {
	client      *tg.Client
	inbox       func(message.InboundMessage) error
	gate        *inboundGate
	logger      *slog.Logger
	botUsername string
	channelName string
	config      Config
	stopCh      chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
}

// NewPoller creates a new Poller.
func NewPoller(client *tg.Client, inbox func(message.InboundMessage) error, gate *inboundGate, logger *slog.Logger, botUsername, channelName string, config Config) *Poller {
	return &Poller{
		client:      client,
		inbox:       inbox,
		gate:        gate,
		logger:      logger,
		botUsername: botUsername,
		channelName: channelName,
		config:      config,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the polling loop in a goroutine.
func (p *Poller) Start() {
	go p.loop()
}

// Stop signals the polling loop to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.done
}

// loop runs the long-polling loop until Stop() is called. The stop
// channel is bridged to a context so cancellation reaches the HTTP
// client mid-poll.
func (p *Poller) loop() {
	defer close(p.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-p.stopCh
		cancel()
	}()

	var offset int
	streak := 0

	for ctx.Err() == nil {
		updates, err := p.client.GetUpdates(ctx, tg.GetUpdatesRequest{
			Offset:         offset,
			Timeout:        p.config.PollingTimeout,
			AllowedUpdates: p.config.AllowedUpdates,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			streak++
			p.logger.Error("polling getUpdates failed",
				"error", err,
				"consecutive_errors", streak,
			)
			if streak >= maxConsecutivePollingErrors {
				if !p.pause(ctx) {
					return
				}
				streak = 0
			}
			continue
		}
		streak = 0

		for i := range updates {
			offset = updates[i].UpdateID + 1
			p.handleUpdate(ctx, &updates[i])
		}
	}
}

// pause waits out the error backoff. Returns false when the poller
// stopped during the wait.
func (p *Poller) pause(ctx context.Context) bool {
	p.logger.Warn("polling paused after consecutive errors",
		"pause", errorPauseDuration,
	)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(errorPauseDuration):
		return true
	}
}

// handleUpdate converts, gates, resolves, and delivers a single update.
func (p *Poller) handleUpdate(ctx context.Context, update *tg.Update) {
	msg, err := convertInbound(update, p.botUsername, p.channelName)
	if err != nil {
		if !errors.Is(err, errAddressedElsewhere) {
			p.logger.Debug("skipping update", "update_id", update.UpdateID, "reason", err)
		}
		return
	}

	if !p.gate.Admit(msg, update.UpdateID) {
		return
	}

	if err := resolveMediaURLs(ctx, p.client, &msg); err != nil {
		// Deliver anyway; the text and caption still carry the request.
		p.logger.Warn("failed to resolve media URLs",
			"update_id", update.UpdateID,
			"error", err,
		)
	}

	if err := p.inbox(msg); err != nil {
		p.logger.Error("failed to deliver update to inbox",
			"update_id", update.UpdateID,
			"error", err,
		)
	}
}
