package channel

import (
	"context"
	"time"

	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// DefaultTypingInterval is how often a typing indicator is refreshed.
// Telegram shows "typing…" for about five seconds per sendChatAction call,
// so a four-second refresh keeps it visible without hammering the API.
const DefaultTypingInterval = 4 * time.Second

// TypingChannel is implemented by channels that can show a typing indicator
// while a command is being handled or a task is being dispatched.
type TypingChannel interface {
	Channel

	// SendTyping sends a single typing indicator to the platform.
	SendTyping(ctx context.Context, chat message.Chat) error
}

// StartTypingLoop launches a goroutine that sends typing indicators at the
// given interval until the context is cancelled. A non-positive interval
// falls back to DefaultTypingInterval.
func StartTypingLoop(ctx context.Context, ch TypingChannel, chat message.Chat, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTypingInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Send an initial typing indicator immediately.
		_ = ch.SendTyping(ctx, chat)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = ch.SendTyping(ctx, chat)
			}
		}
	}()
}
