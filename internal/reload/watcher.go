// Package reload provides configuration hot-reload via file polling and
// signal handling.
package reload

import (
	"context"
	"os"
	"sync"
	"time"
)

const defaultPollInterval = 5 * time.Second

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// ConfigPath is the path to the configuration file to watch.
	ConfigPath string

	// PollInterval is how often to check for file changes.
	// Defaults to 5 seconds if zero.
	PollInterval time.Duration
}

func (c WatcherConfig) pollIntervalOrDefault() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return defaultPollInterval
}

// EventType describes the type of file change event.
type EventType string

const (
	// EventModified indicates the config file was modified.
	EventModified EventType = "modified"
)

// Event represents a file change notification.
type Event struct {
	Type       EventType
	ConfigPath string
	ModTime    time.Time
}

// Watcher polls a configuration file for modifications. It is one-shot:
// once stopped it does not restart.
type Watcher struct {
	cfg    WatcherConfig
	events chan Event

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a new file watcher.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:    cfg,
		events: make(chan Event, 1),
	}
}

// Start begins polling the config file for changes. Only the first call
// starts the goroutine; later calls are no-ops.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.poll(ctx)
}

// Events returns the channel of file change events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop halts polling and waits for the goroutine to exit. Safe to call
// multiple times and before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.pollIntervalOrDefault())
	defer ticker.Stop()

	lastMod := w.statModTime()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lastMod = w.check(lastMod)
		}
	}
}

// check compares the file's mtime against prev and emits an event when it
// moved. Any mtime change counts, not just a forward move: restoring a
// config from backup can set an older timestamp.
func (w *Watcher) check(prev time.Time) time.Time {
	current := w.statModTime()
	if current.IsZero() || current.Equal(prev) {
		return prev
	}

	select {
	case w.events <- Event{
		Type:       EventModified,
		ConfigPath: w.cfg.ConfigPath,
		ModTime:    current,
	}:
	default:
		// Channel full; the pending event already covers this change.
	}
	return current
}

func (w *Watcher) statModTime() time.Time {
	info, err := os.Stat(w.cfg.ConfigPath)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
