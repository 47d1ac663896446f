package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// Dispatcher fans outbound traffic back to the platform that owns each
// chat. The router and the executors hand it a message naming its
// channel; the dispatcher resolves the registered Channel and delegates.
// It satisfies both the router's ResponseSender and its ChannelLookup.
type Dispatcher struct {
	mu     sync.RWMutex
	byName map[string]Channel
}

// NewDispatcher returns a Dispatcher with no channels registered.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{byName: make(map[string]Channel)}
}

// Register adds ch under name, typically the module ID the channel
// stamps on its inbound messages. Registering a taken name returns
// ErrDuplicateChannel.
func (d *Dispatcher) Register(name string, ch Channel) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.byName[name]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	d.byName[name] = ch
	return nil
}

// Get resolves a registered channel by name.
func (d *Dispatcher) Get(name string) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ch, ok := d.byName[name]
	return ch, ok
}

// Send delivers msg through the channel named in msg.Channel, or
// reports ErrNoChannel when nothing is registered under that name.
func (d *Dispatcher) Send(ctx context.Context, msg message.OutboundMessage) error {
	ch, ok := d.Get(msg.Channel)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoChannel, msg.Channel)
	}
	return ch.Send(ctx, msg)
}
