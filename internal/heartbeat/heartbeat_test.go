package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/command"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
)

// fakeProber implements command.AgentProber with a settable result.
type fakeProber struct {
	mu     sync.Mutex
	status command.AgentStatus
	calls  int
}

func (f *fakeProber) set(online bool, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = command.AgentStatus{Online: online, StatusText: text, CheckedAt: time.Now()}
}

func (f *fakeProber) Probe(_ context.Context) command.AgentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.status
}

func (f *fakeProber) probeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type notice struct {
	online bool
	detail string
}

// fakeNotifier records transition notices.
type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
	err     error
}

func (f *fakeNotifier) NotifyAgentState(_ context.Context, online bool, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{online: online, detail: detail})
	return f.err
}

func (f *fakeNotifier) all() []notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	dst := make([]notice, len(f.notices))
	copy(dst, f.notices)
	return dst
}

func TestParseQuietHours_Valid(t *testing.T) {
	t.Parallel()

	qh, err := ParseQuietHours("02:00-06:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qh.Start != 2*time.Hour {
		t.Errorf("Start = %v, want %v", qh.Start, 2*time.Hour)
	}
	if qh.End != 6*time.Hour {
		t.Errorf("End = %v, want %v", qh.End, 6*time.Hour)
	}
}

func TestParseQuietHours_MidnightWrap(t *testing.T) {
	t.Parallel()

	qh, err := ParseQuietHours("23:00-07:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qh.Start != 23*time.Hour {
		t.Errorf("Start = %v, want %v", qh.Start, 23*time.Hour)
	}
	if qh.End != 7*time.Hour {
		t.Errorf("End = %v, want %v", qh.End, 7*time.Hour)
	}
}

func TestParseQuietHours_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "missing dash", input: "0200 0600"},
		{name: "bad start format", input: "xx:00-06:00"},
		{name: "bad end format", input: "02:00-yy:00"},
		{name: "hour out of range", input: "25:00-06:00"},
		{name: "minute out of range", input: "02:60-06:00"},
		{name: "no colon in start", input: "0200-06:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseQuietHours(tt.input)
			if err == nil {
				t.Fatalf("expected error for input %q, got nil", tt.input)
			}
			if !errors.Is(err, ErrInvalidQuiet) {
				t.Errorf("expected ErrInvalidQuiet, got: %v", err)
			}
		})
	}
}

func TestQuietHours_IsQuiet_Normal(t *testing.T) {
	t.Parallel()

	qh := QuietHours{Start: 2 * time.Hour, End: 6 * time.Hour}

	// 03:00 should be quiet.
	quiet := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	if !qh.IsQuiet(quiet) {
		t.Error("03:00 should be quiet in 02:00-06:00")
	}

	// 08:00 should not be quiet.
	notQuiet := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	if qh.IsQuiet(notQuiet) {
		t.Error("08:00 should not be quiet in 02:00-06:00")
	}

	// 02:00 (boundary start) should be quiet.
	boundary := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	if !qh.IsQuiet(boundary) {
		t.Error("02:00 should be quiet (inclusive start)")
	}

	// 06:00 (boundary end) should NOT be quiet.
	boundaryEnd := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	if qh.IsQuiet(boundaryEnd) {
		t.Error("06:00 should not be quiet (exclusive end)")
	}
}

func TestQuietHours_IsQuiet_MidnightWrap(t *testing.T) {
	t.Parallel()

	qh := QuietHours{Start: 23 * time.Hour, End: 7 * time.Hour}

	// 23:30 should be quiet.
	if !qh.IsQuiet(time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC)) {
		t.Error("23:30 should be quiet in 23:00-07:00")
	}

	// 01:00 should be quiet.
	if !qh.IsQuiet(time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)) {
		t.Error("01:00 should be quiet in 23:00-07:00")
	}

	// 12:00 should not be quiet.
	if qh.IsQuiet(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Error("12:00 should not be quiet in 23:00-07:00")
	}
}

func TestMonitor_New_NilProber(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected error for nil prober")
	}
}

func TestMonitor_StartStop(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	prober.set(true, "idle")

	m, err := New(Config{Interval: time.Hour}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Start performs an initial synchronous probe.
	if prober.probeCalls() != 1 {
		t.Errorf("probe calls = %d, want 1", prober.probeCalls())
	}
	if !m.Probe(ctx).Online {
		t.Error("agent should be online after initial probe")
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestMonitor_AlreadyStarted(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	m, err := New(Config{Interval: time.Hour}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(ctx) })

	if err := m.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	m, err := New(Config{}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := m.Stop(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop = %v, want ErrNotStarted", err)
	}
}

func TestMonitor_FirstObservationSeedsSilently(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	prober.set(true, "session active")
	notifier := &fakeNotifier{}

	m, err := New(Config{Notifier: notifier}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	m.CheckNow(ctx)

	if got := len(notifier.all()); got != 0 {
		t.Errorf("notices = %d, want 0 (baseline must not page)", got)
	}
	status := m.Probe(ctx)
	if !status.Online {
		t.Error("agent should be online")
	}
	if status.StatusText != "session active" {
		t.Errorf("status text = %q", status.StatusText)
	}
}

func TestMonitor_DownRequiresConsecutiveFailures(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	prober.set(true, "working")
	notifier := &fakeNotifier{}

	m, err := New(Config{FailureThreshold: 2, Notifier: notifier}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	m.CheckNow(ctx) // baseline: online

	prober.set(false, "")
	m.CheckNow(ctx)
	if !m.Probe(ctx).Online {
		t.Fatal("one failed probe must not flip the state")
	}
	if got := len(notifier.all()); got != 0 {
		t.Fatalf("notices = %d, want 0 after single failure", got)
	}

	m.CheckNow(ctx)
	status := m.Probe(ctx)
	if status.Online {
		t.Fatal("two failed probes should flip the state to down")
	}
	if status.StatusText != "agent unreachable" {
		t.Errorf("status text = %q, want %q", status.StatusText, "agent unreachable")
	}

	notices := notifier.all()
	if len(notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(notices))
	}
	if notices[0].online {
		t.Error("notice should report down")
	}
}

func TestMonitor_UpAfterSingleSuccess(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	prober.set(false, "")
	notifier := &fakeNotifier{}

	m, err := New(Config{FailureThreshold: 1, Notifier: notifier}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	m.CheckNow(ctx) // baseline: down

	prober.set(true, "back")
	m.CheckNow(ctx)

	if !m.Probe(ctx).Online {
		t.Fatal("one successful probe should bring the agent up")
	}
	notices := notifier.all()
	if len(notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(notices))
	}
	if !notices[0].online {
		t.Error("notice should report up")
	}
	if notices[0].detail != "back" {
		t.Errorf("notice detail = %q, want %q", notices[0].detail, "back")
	}
}

func TestMonitor_FlappingSmoothed(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	prober.set(true, "working")
	notifier := &fakeNotifier{}

	m, err := New(Config{FailureThreshold: 3, Notifier: notifier}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	m.CheckNow(ctx) // baseline

	// Alternate failure and success below the threshold.
	for i := 0; i < 4; i++ {
		prober.set(false, "")
		m.CheckNow(ctx)
		prober.set(true, "working")
		m.CheckNow(ctx)
	}

	if got := len(notifier.all()); got != 0 {
		t.Errorf("notices = %d, want 0 for sub-threshold flapping", got)
	}
	if !m.Probe(ctx).Online {
		t.Error("agent should still be online")
	}
}

func TestMonitor_ProbeReturnsCached(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	prober.set(true, "idle")

	m, err := New(Config{}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	m.CheckNow(ctx)

	for i := 0; i < 5; i++ {
		m.Probe(ctx)
	}
	if prober.probeCalls() != 1 {
		t.Errorf("probe calls = %d, want 1 (Probe must serve from cache)", prober.probeCalls())
	}
}

func TestMonitor_ReportPush(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	prober.set(false, "")
	notifier := &fakeNotifier{}

	m, err := New(Config{FailureThreshold: 1, Notifier: notifier}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	m.CheckNow(ctx) // baseline: down

	m.ReportPush(ctx, "working on t-deadbeef")

	status := m.Probe(ctx)
	if !status.Online {
		t.Fatal("push report should count as a successful probe")
	}
	if status.StatusText != "working on t-deadbeef" {
		t.Errorf("status text = %q", status.StatusText)
	}
	notices := notifier.all()
	if len(notices) != 1 || !notices[0].online {
		t.Fatalf("notices = %+v, want single up notice", notices)
	}
}

func TestMonitor_QuietHoursSuppressNotification(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	prober.set(true, "working")
	notifier := &fakeNotifier{}
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(8)
	defer cancel()

	qh := QuietHours{Start: 2 * time.Hour, End: 6 * time.Hour}
	fixed := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)

	m, err := New(Config{
		FailureThreshold: 1,
		QuietHours:       &qh,
		Notifier:         notifier,
		Bus:              bus,
		Now:              func() time.Time { return fixed },
	}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	m.CheckNow(ctx) // baseline
	prober.set(false, "")
	m.CheckNow(ctx) // down during quiet hours

	if got := len(notifier.all()); got != 0 {
		t.Errorf("notices = %d, want 0 during quiet hours", got)
	}

	// The bus event still goes out so dashboards stay accurate.
	select {
	case ev := <-ch:
		if ev.Type != events.TypeAgentStatus {
			t.Errorf("event type = %q, want %q", ev.Type, events.TypeAgentStatus)
		}
		if ev.State != "offline" {
			t.Errorf("event state = %q, want %q", ev.State, "offline")
		}
	case <-time.After(time.Second):
		t.Fatal("no bus event received")
	}
}

func TestMonitor_BusPublishesTransitions(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	prober.set(false, "")
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(8)
	defer cancel()

	m, err := New(Config{FailureThreshold: 1, Bus: bus}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	m.CheckNow(ctx) // baseline: down
	prober.set(true, "recovered")
	m.CheckNow(ctx)

	select {
	case ev := <-ch:
		if ev.State != "online" {
			t.Errorf("event state = %q, want %q", ev.State, "online")
		}
		if ev.Detail != "recovered" {
			t.Errorf("event detail = %q, want %q", ev.Detail, "recovered")
		}
	case <-time.After(time.Second):
		t.Fatal("no bus event received")
	}
}

func TestMonitor_NotifierErrorDoesNotCrash(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	prober.set(false, "")
	notifier := &fakeNotifier{err: errors.New("telegram unreachable")}

	m, err := New(Config{FailureThreshold: 1, Notifier: notifier}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	m.CheckNow(ctx)
	prober.set(true, "up")
	m.CheckNow(ctx)

	if len(notifier.all()) != 1 {
		t.Errorf("notices = %d, want 1", len(notifier.all()))
	}
	if !m.Probe(ctx).Online {
		t.Error("state should update even when notification fails")
	}
}
