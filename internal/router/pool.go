package router

import (
	"context"
	"sync"

	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// DefaultWorkerCount bounds concurrent message handling when the config
// leaves the pool size unset.
const DefaultWorkerCount = 10

// envelope pairs an inbound message with its session key for the trip
// through the inbox channel.
type envelope struct {
	Message message.InboundMessage
	Key     SessionKey
}

// WorkerPool runs a fixed set of goroutines over the router inbox. The
// pool bounds how many commands execute at once; ordering within a chat
// is the lane lock's job, not the pool's.
type WorkerPool struct {
	size int
	wg   sync.WaitGroup
}

// NewWorkerPool sizes a pool, falling back to DefaultWorkerCount when
// size is zero or negative.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = DefaultWorkerCount
	}
	return &WorkerPool{size: size}
}

// Start launches the workers. They run until inbox is closed; ctx is
// handed through to the handler so in-flight work sees shutdown.
func (p *WorkerPool) Start(ctx context.Context, inbox <-chan envelope, handler func(context.Context, envelope)) {
	p.wg.Add(p.size)
	for range p.size {
		go p.work(ctx, inbox, handler)
	}
}

func (p *WorkerPool) work(ctx context.Context, inbox <-chan envelope, handler func(context.Context, envelope)) {
	defer p.wg.Done()
	for env := range inbox {
		handler(ctx, env)
	}
}

// Wait blocks until every worker has drained out.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
