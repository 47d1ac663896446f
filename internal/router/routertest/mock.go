// Package routertest provides fakes for the router's injection points,
// for tests that drive a Router from outside the package.
package routertest

import (
	"context"
	"sync"

	"github.com/Everest18/claude-code-telegram-control/internal/channel"
	"github.com/Everest18/claude-code-telegram-control/internal/router"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// MockResponseSender records every reply the router tries to deliver.
type MockResponseSender struct {
	// SendFunc, when set, decides Send's return value. The message is
	// recorded either way.
	SendFunc func(ctx context.Context, msg message.OutboundMessage) error

	mu   sync.Mutex
	sent []message.OutboundMessage
}

func (m *MockResponseSender) Send(ctx context.Context, msg message.OutboundMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return nil
}

// SentMessages returns a copy of the replies recorded so far. Safe for
// concurrent use.
func (m *MockResponseSender) SentMessages() []message.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]message.OutboundMessage(nil), m.sent...)
}

// SendCallCount reports how many times the router called Send.
func (m *MockResponseSender) SendCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// MockChannelLookup resolves channels from a plain map, standing in for
// the channel dispatcher.
type MockChannelLookup map[string]channel.Channel

// Get returns the channel registered under name.
func (l MockChannelLookup) Get(name string) (channel.Channel, bool) {
	ch, ok := l[name]
	return ch, ok
}

// Interface guards.
var (
	_ router.ResponseSender = (*MockResponseSender)(nil)
	_ router.ChannelLookup  = MockChannelLookup(nil)
)
