package bridge

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
)

// DefaultPollInterval is how often the watcher checks the approval file.
const DefaultPollInterval = 2 * time.Second

// Watcher construction errors.
var (
	ErrNoBridge = errors.New("bridge: watcher needs a bridge")
	ErrNoGate   = errors.New("bridge: watcher needs an approval gate")
)

// ApprovalGate is the slice of the approval manager the watcher drives.
type ApprovalGate interface {
	Begin(ctx context.Context, req approval.Request) (approval.Response, error)
}

// WatcherConfig configures the approval watcher.
type WatcherConfig struct {
	// Bridge provides the file operations. Required.
	Bridge *Bridge

	// Gate runs the approval flow. Required.
	Gate ApprovalGate

	// ChatID is recorded on submitted requests so notifications reach
	// the owner chat.
	ChatID string

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Watcher polls the approval file. When a request appears it is
// submitted to the approval gate; the resolution is written to the
// response file and the request file removed. At most one request is in
// flight at a time, matching the single-slot approval manager.
type Watcher struct {
	cfg      WatcherConfig
	interval time.Duration
	logger   *slog.Logger

	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once

	mu          sync.Mutex
	inFlight    bool
	lastHandled time.Time
	busy        sync.WaitGroup
}

// NewWatcher creates an approval watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Bridge == nil {
		return nil, ErrNoBridge
	}
	if cfg.Gate == nil {
		return nil, ErrNoGate
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:      cfg,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start begins polling. Safe to call multiple times; only the first call
// starts the goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.poll(ctx)
	})
}

// Stop halts polling and waits for the poll goroutine and any in-flight
// request handler to finish. An unresolved approval is abandoned with
// its files left in place, so the next run re-detects it. Safe to call
// multiple times and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
	w.busy.Wait()
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.stopped)

	// Stop must also abort an in-flight Begin, which can otherwise block
	// until the approval timeout.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick runs one scan of the approval file.
func (w *Watcher) tick(ctx context.Context) {
	mod, err := w.cfg.Bridge.StatApproval()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("bridge: approval file check failed", "error", err)
		}
		return
	}

	w.mu.Lock()
	if w.inFlight || mod.Equal(w.lastHandled) {
		w.mu.Unlock()
		return
	}
	w.inFlight = true
	w.mu.Unlock()

	content, err := w.cfg.Bridge.ReadApproval()
	if err != nil {
		w.logger.Warn("bridge: approval file read failed", "error", err)
		w.clearInFlight()
		return
	}

	w.busy.Add(1)
	go func() {
		defer w.busy.Done()
		defer w.clearInFlight()
		w.handle(ctx, content, mod)
	}()
}

// handle submits one request and writes the resolution back. It blocks
// for as long as the approval flow does, which is why it runs off the
// poll goroutine.
func (w *Watcher) handle(ctx context.Context, content string, mod time.Time) {
	// A leftover response from an earlier decision must not be readable
	// as the answer to this request.
	if err := w.cfg.Bridge.ClearResponse(); err != nil {
		w.logger.Warn("bridge: clearing stale response failed", "error", err)
	}

	w.logger.Info("bridge: approval request detected", "chat_id", w.cfg.ChatID)

	resp, err := w.cfg.Gate.Begin(ctx, approval.Request{
		Content: content,
		ChatID:  w.cfg.ChatID,
	})

	switch {
	case err == nil, errors.Is(err, approval.ErrTimeout):
		// Timeout is a decision: deny by default.
		decision := DecisionRejected
		if resp.Approved {
			decision = DecisionApproved
		}
		if werr := w.cfg.Bridge.WriteResponse(decision); werr != nil {
			w.logger.Error("bridge: writing decision failed, agent will not see it",
				"decision", decision, "error", werr)
		}
		if cerr := w.cfg.Bridge.ClearApproval(); cerr != nil {
			w.logger.Warn("bridge: clearing approval file failed", "error", cerr)
		}
		w.markHandled(mod)
		w.logger.Info("bridge: approval resolved",
			"decision", decision, "decided_by", resp.DecidedBy)

	case errors.Is(err, approval.ErrAlreadyPending):
		// Another path (MCP tool) holds the slot; the file stays and the
		// next tick retries.
		w.logger.Debug("bridge: approval slot busy, will retry")

	case ctx.Err() != nil:
		// Shutting down; leave the handshake files for the next run.

	default:
		w.logger.Error("bridge: approval flow failed, will retry", "error", err)
	}
}

func (w *Watcher) clearInFlight() {
	w.mu.Lock()
	w.inFlight = false
	w.mu.Unlock()
}

func (w *Watcher) markHandled(mod time.Time) {
	w.mu.Lock()
	w.lastHandled = mod
	w.mu.Unlock()
}
