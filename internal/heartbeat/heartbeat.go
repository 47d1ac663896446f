// Package heartbeat watches the local agent's liveness and notifies the
// owner chat when the agent goes down or comes back.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/command"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
)

// Sentinel errors for heartbeat operations.
var (
	ErrAlreadyStarted = errors.New("heartbeat: already started")
	ErrNotStarted     = errors.New("heartbeat: not started")
	ErrInvalidQuiet   = errors.New("heartbeat: invalid quiet hours format")
)

// QuietHours defines a blackout window during which no transition
// notifications are sent. Format: "HH:MM-HH:MM" (24-hour). Supports
// midnight wrap (e.g., "23:00-07:00").
type QuietHours struct {
	Start time.Duration // offset from midnight
	End   time.Duration
}

// ParseQuietHours parses a "HH:MM-HH:MM" string into QuietHours.
func ParseQuietHours(s string) (QuietHours, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return QuietHours{}, fmt.Errorf("%w: expected HH:MM-HH:MM, got %q", ErrInvalidQuiet, s)
	}

	start, err := parseTimeOffset(strings.TrimSpace(parts[0]))
	if err != nil {
		return QuietHours{}, fmt.Errorf("%w: start: %w", ErrInvalidQuiet, err)
	}

	end, err := parseTimeOffset(strings.TrimSpace(parts[1]))
	if err != nil {
		return QuietHours{}, fmt.Errorf("%w: end: %w", ErrInvalidQuiet, err)
	}

	return QuietHours{Start: start, End: end}, nil
}

// parseTimeOffset parses "HH:MM" into a Duration from midnight.
func parseTimeOffset(s string) (time.Duration, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}

	var h, m int
	if _, err := fmt.Sscanf(parts[0], "%d", &h); err != nil {
		return 0, fmt.Errorf("invalid hour: %q", parts[0])
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &m); err != nil {
		return 0, fmt.Errorf("invalid minute: %q", parts[1])
	}

	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range: %02d:%02d", h, m)
	}

	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// IsQuiet reports whether t falls within the quiet window.
// The caller is responsible for converting t to the desired timezone.
func (q QuietHours) IsQuiet(t time.Time) bool {
	offset := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second

	if q.Start <= q.End {
		// Normal range: e.g., 02:00-06:00
		return offset >= q.Start && offset < q.End
	}
	// Midnight wrap: e.g., 23:00-07:00
	return offset >= q.Start || offset < q.End
}

// TransitionNotifier delivers an agent up/down notice to the owner chat
// (breaks channel dependency).
type TransitionNotifier interface {
	NotifyAgentState(ctx context.Context, online bool, detail string) error
}

// Defaults for Config.
const (
	DefaultInterval         = 30 * time.Second
	DefaultFailureThreshold = 2
)

// Config holds monitor configuration.
type Config struct {
	Interval         time.Duration      // default DefaultInterval
	FailureThreshold int                // consecutive failed probes before down; default 2
	QuietHours       *QuietHours        // nil = no quiet hours
	Timezone         *time.Location     // nil = UTC
	Notifier         TransitionNotifier // nil = no owner notifications
	Bus              *events.Bus        // nil = no bus events
	Logger           *slog.Logger
	Now              func() time.Time // injectable for testing
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Timezone == nil {
		c.Timezone = time.UTC
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Monitor probes the agent periodically and tracks a smoothed liveness
// state. Going down requires FailureThreshold consecutive failed probes;
// coming back requires a single success. The first observation seeds the
// baseline without notifying, so a daemon restart does not page.
type Monitor struct {
	cfg    Config
	prober command.AgentProber

	mu          sync.Mutex
	cancel      context.CancelFunc
	seeded      bool
	online      bool
	consecFails int
	last        command.AgentStatus
}

// Compile-time interface check: the monitor serves as the cached prober
// behind the "heartbeat.state" service.
var _ command.AgentProber = (*Monitor)(nil)

// New creates a Monitor around the given raw prober.
func New(cfg Config, prober command.AgentProber) (*Monitor, error) {
	if prober == nil {
		return nil, errors.New("heartbeat: nil prober")
	}
	return &Monitor{cfg: cfg.withDefaults(), prober: prober}, nil
}

// Start performs an initial probe and begins the ticker loop. Returns
// ErrAlreadyStarted if called twice.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.CheckNow(ctx)
	go m.run(ctx)
	return nil
}

// Stop stops the ticker loop. Returns ErrNotStarted if not running.
func (m *Monitor) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel == nil {
		return ErrNotStarted
	}

	m.cancel()
	m.cancel = nil
	return nil
}

// run is the main ticker loop.
func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow performs one probe and folds the result into the liveness
// state. Safe to call from outside the loop (cron tick, push handler).
func (m *Monitor) CheckNow(ctx context.Context) {
	m.observe(ctx, m.prober.Probe(ctx))
}

// ReportPush records a liveness report pushed by the agent itself. A push
// counts as a successful probe.
func (m *Monitor) ReportPush(ctx context.Context, statusText string) {
	m.observe(ctx, command.AgentStatus{
		Online:     true,
		StatusText: statusText,
		CheckedAt:  m.cfg.Now(),
	})
}

// observe applies one observation to the smoothed state and announces a
// transition when the smoothed state flips.
func (m *Monitor) observe(ctx context.Context, raw command.AgentStatus) {
	m.mu.Lock()
	prevOnline := m.online
	seeded := m.seeded

	if raw.Online {
		m.consecFails = 0
		m.online = true
	} else {
		m.consecFails++
		if m.consecFails >= m.cfg.FailureThreshold {
			m.online = false
		}
	}
	m.seeded = true

	cached := raw
	cached.Online = m.online
	if !m.online && cached.StatusText == "" {
		cached.StatusText = "agent unreachable"
	}
	if cached.CheckedAt.IsZero() {
		cached.CheckedAt = m.cfg.Now()
	}
	m.last = cached

	transitioned := seeded && m.online != prevOnline
	online := m.online
	detail := cached.StatusText
	m.mu.Unlock()

	if !transitioned {
		return
	}
	m.announce(ctx, online, detail)
}

// announce publishes the transition on the bus and notifies the owner
// chat. Bus events always go out; the Telegram ping respects quiet hours.
func (m *Monitor) announce(ctx context.Context, online bool, detail string) {
	state := "offline"
	if online {
		state = "online"
	}
	m.cfg.Logger.Info("heartbeat: agent state changed", "state", state, "detail", detail)

	if m.cfg.Bus != nil {
		m.cfg.Bus.Publish(events.Event{
			Type:   events.TypeAgentStatus,
			Time:   m.cfg.Now(),
			State:  state,
			Detail: detail,
		})
	}

	if m.cfg.Notifier == nil {
		return
	}
	if m.cfg.QuietHours != nil && m.cfg.QuietHours.IsQuiet(m.cfg.Now().In(m.cfg.Timezone)) {
		m.cfg.Logger.Debug("heartbeat: notification suppressed by quiet hours", "state", state)
		return
	}
	if err := m.cfg.Notifier.NotifyAgentState(ctx, online, detail); err != nil {
		m.cfg.Logger.Warn("heartbeat: transition notification failed", "error", err)
	}
}

// Probe implements command.AgentProber. It returns the cached smoothed
// state rather than probing, so callers on the request path never block
// on process detection.
func (m *Monitor) Probe(_ context.Context) command.AgentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
