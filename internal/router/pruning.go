package router

import (
	"sync"
	"time"
)

const defaultPruneInterval = 5 * time.Minute

// lazyPruner drops idle chat sessions, at most once per interval. The
// pipeline calls it opportunistically after each message, so without the
// rate limit a busy chat would re-walk the session map constantly.
type lazyPruner struct {
	mu       sync.Mutex
	store    SessionStore
	laneLock *LaneLock
	maxIdle  time.Duration
	interval time.Duration
	lastRun  time.Time
	now      func() time.Time
}

// laneKeySource is the optional store capability the pruner needs to
// sweep the lane table alongside the sessions.
type laneKeySource interface {
	ActiveKeys() map[SessionKey]struct{}
}

func newLazyPruner(store SessionStore, laneLock *LaneLock, maxIdle time.Duration) *lazyPruner {
	return &lazyPruner{
		store:    store,
		laneLock: laneLock,
		maxIdle:  maxIdle,
		interval: defaultPruneInterval,
		now:      time.Now,
	}
}

// TryPrune prunes when the interval has elapsed and reports how many
// sessions went. A rate-limited call returns 0.
func (p *lazyPruner) TryPrune() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastRun) < p.interval {
		return 0
	}
	p.lastRun = now

	dropped := p.store.Prune(p.maxIdle)
	p.sweepLanes()
	return dropped
}

// sweepLanes drops lane-table entries for chats whose sessions just went
// away, so a chat that comes back later starts clean. Caller holds p.mu.
func (p *lazyPruner) sweepLanes() {
	if p.laneLock == nil {
		return
	}
	source, ok := p.store.(laneKeySource)
	if !ok {
		return
	}
	p.laneLock.Cleanup(source.ActiveKeys())
}
