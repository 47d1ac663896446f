package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rate limit defaults applied when the config leaves fields at zero.
const (
	DefaultRateLimit       = 20
	DefaultRateLimitWindow = time.Minute
)

// RateLimiter implements per-key sliding window rate limiting. Each key
// (typically a chat ID) gets its own bucket tracking timestamps of recent
// events within the window.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	events []time.Time
}

// NewRateLimiter creates a rate limiter allowing limit events per window
// for each key. Zero or negative values fall back to defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow checks whether an event for the given key is allowed.
// Returns nil if allowed, ErrRateLimited if the limit is exceeded.
func (rl *RateLimiter) Allow(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{}
		rl.buckets[key] = b
	}

	now := rl.now()
	b.evict(now, rl.window)

	if len(b.events) >= rl.limit {
		return ErrRateLimited
	}

	b.events = append(b.events, now)
	return nil
}

// Remaining returns how many events the key may still send in the current
// window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		return rl.limit
	}
	b.evict(rl.now(), rl.window)
	if n := rl.limit - len(b.events); n > 0 {
		return n
	}
	return 0
}

// Prune drops buckets with no events inside the window. Called
// periodically by housekeeping to keep memory bounded when many chats
// come and go.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	pruned := 0
	for key, b := range rl.buckets {
		b.evict(now, rl.window)
		if len(b.events) == 0 {
			delete(rl.buckets, key)
			pruned++
		}
	}
	return pruned
}

// evict removes events outside the sliding window.
func (b *bucket) evict(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	// Events are chronologically ordered; find the first inside the window.
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
