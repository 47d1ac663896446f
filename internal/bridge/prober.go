package bridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/command"
)

// DefaultMaxStatusAge is how recent the status file must be for the
// agent to count as alive when no matching process is found.
const DefaultMaxStatusAge = 10 * time.Minute

// ErrNoProbeSource is returned when a Prober is built without a bridge.
var ErrNoProbeSource = errors.New("bridge: prober needs a bridge")

// ProcessDetector reports whether the agent process is running.
type ProcessDetector interface {
	Detect(ctx context.Context) bool
}

// ProberConfig wires the liveness probe.
type ProberConfig struct {
	// Bridge supplies the status file. Required.
	Bridge *Bridge

	// Detector, if non-nil, is consulted first; a process match means
	// online regardless of file age.
	Detector ProcessDetector

	// MaxStatusAge defaults to DefaultMaxStatusAge.
	MaxStatusAge time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Prober reports agent liveness from process detection and status-file
// freshness. It serves /status and the heartbeat monitor.
type Prober struct {
	bridge   *Bridge
	detector ProcessDetector
	maxAge   time.Duration
	now      func() time.Time
}

var _ command.AgentProber = (*Prober)(nil)

// NewProber creates a Prober.
func NewProber(cfg ProberConfig) (*Prober, error) {
	if cfg.Bridge == nil {
		return nil, ErrNoProbeSource
	}
	maxAge := cfg.MaxStatusAge
	if maxAge <= 0 {
		maxAge = DefaultMaxStatusAge
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Prober{
		bridge:   cfg.Bridge,
		detector: cfg.Detector,
		maxAge:   maxAge,
		now:      now,
	}, nil
}

// Probe checks agent liveness and collects the last self-reported status
// line. A missing status file leaves StatusText empty.
func (p *Prober) Probe(ctx context.Context) command.AgentStatus {
	st := command.AgentStatus{CheckedAt: p.now()}

	if text, err := p.bridge.ReadStatus(); err == nil {
		st.StatusText = strings.TrimSpace(text)
	}

	if p.detector != nil && p.detector.Detect(ctx) {
		st.Online = true
		return st
	}

	if mod, err := p.bridge.StatusModTime(); err == nil {
		st.Online = p.now().Sub(mod) <= p.maxAge
	}
	return st
}
