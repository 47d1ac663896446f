package telegram

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/channel"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
	tg "github.com/Everest18/claude-code-telegram-control/internal/telegram"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

func TestPollerReceivesUpdates(t *testing.T) {
	var callCount atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := callCount.Add(1)
		if n == 1 {
			writeJSON(t, w, tg.APIResponse[[]tg.Update]{
				OK: true,
				Result: []tg.Update{
					{
						UpdateID: 1,
						Message: &tg.Message{
							MessageID: 10,
							From:      &tg.User{ID: 100, FirstName: "Alice", Username: "alice"},
							Chat:      tg.Chat{ID: 200, Type: "private"},
							Text:      "hello",
							Date:      1700000000,
						},
					},
				},
			})
			return
		}
		// Second call: empty (give poller time to stop).
		writeJSON(t, w, tg.APIResponse[[]tg.Update]{OK: true, Result: []tg.Update{}})
		// Sleep to let stop signal propagate.
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	client := tg.NewClient("111:TOKEN", srv.URL)

	var mu sync.Mutex
	var received []message.InboundMessage

	poller := NewPoller(client, func(msg message.InboundMessage) error {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		return nil
	}, testGate([]string{"100"}, nil), discardLogger(), "test_bot", "channel.telegram", Config{
		PollingTimeout: 0, // No long-polling timeout in tests.
		AllowedUpdates: []string{"message"},
	})

	poller.Start()
	// Wait for at least one update to be processed.
	time.Sleep(500 * time.Millisecond)
	poller.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received %d messages, want 1", len(received))
	}
	if received[0].Sender.ID != "100" {
		t.Errorf("Sender.ID = %q, want %q", received[0].Sender.ID, "100")
	}
}

func TestPollerDeniesUnallowedUsers(t *testing.T) {
	var callCount atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := callCount.Add(1)
		if n == 1 {
			writeJSON(t, w, tg.APIResponse[[]tg.Update]{
				OK: true,
				Result: []tg.Update{
					{
						UpdateID: 1,
						Message: &tg.Message{
							MessageID: 10,
							From:      &tg.User{ID: 999, FirstName: "Eve"},
							Chat:      tg.Chat{ID: 200, Type: "private"},
							Text:      "run something for me",
							Date:      1700000000,
						},
					},
				},
			})
			return
		}
		writeJSON(t, w, tg.APIResponse[[]tg.Update]{OK: true, Result: []tg.Update{}})
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	client := tg.NewClient("111:TOKEN", srv.URL)

	// Only user 100 is allowed; audit every denial.
	var audited []security.AuditEvent
	var auditMu sync.Mutex
	audit := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(ev security.AuditEvent) {
			auditMu.Lock()
			audited = append(audited, ev)
			auditMu.Unlock()
		},
	})
	gate := newInboundGate(channel.NewAllowList([]string{"100"}, nil), audit, discardLogger())

	var mu sync.Mutex
	var received []message.InboundMessage

	poller := NewPoller(client, func(msg message.InboundMessage) error {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		return nil
	}, gate, discardLogger(), "test_bot", "channel.telegram", Config{
		PollingTimeout: 0,
		AllowedUpdates: []string{"message"},
	})

	poller.Start()
	time.Sleep(500 * time.Millisecond)
	poller.Stop()

	mu.Lock()
	if len(received) != 0 {
		t.Errorf("received %d messages, want 0 (denied)", len(received))
	}
	mu.Unlock()

	if got := gate.Denied(); got != 1 {
		t.Errorf("gate.Denied() = %d, want 1", got)
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if len(audited) != 1 {
		t.Fatalf("audited %d events, want 1", len(audited))
	}
	if audited[0].Type != security.EventAuthDenied {
		t.Errorf("audit event type = %q, want %q", audited[0].Type, security.EventAuthDenied)
	}
	if audited[0].SenderID != "999" {
		t.Errorf("audit SenderID = %q, want %q", audited[0].SenderID, "999")
	}
}

func TestPollerCircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		// Always return error.
		writeJSON(t, w, tg.APIResponse[json.RawMessage]{
			OK:          false,
			ErrorCode:   500,
			Description: "Internal Server Error",
		})
	}))
	defer srv.Close()

	client := tg.NewClient("111:TOKEN", srv.URL)

	poller := NewPoller(client, func(_ message.InboundMessage) error {
		return nil
	}, testGate([]string{"100"}, nil), discardLogger(), "test_bot", "channel.telegram", Config{
		PollingTimeout: 0,
		AllowedUpdates: []string{"message"},
	})

	poller.Start()
	// Give it enough time to hit the circuit breaker (5 errors).
	time.Sleep(300 * time.Millisecond)
	poller.Stop()

	// Should have hit at least 5 errors to trigger the breaker.
	if got := calls.Load(); got < 5 {
		t.Errorf("calls = %d, want >= 5", got)
	}
}

// TestPollerSkipsCommandsForOtherBots verifies "/cmd@other_bot" never
// reaches the inbox and is not counted as a denial.
func TestPollerSkipsCommandsForOtherBots(t *testing.T) {
	var callCount atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := callCount.Add(1)
		if n == 1 {
			writeJSON(t, w, tg.APIResponse[[]tg.Update]{
				OK: true,
				Result: []tg.Update{
					{
						UpdateID: 1,
						Message: &tg.Message{
							MessageID: 10,
							From:      &tg.User{ID: 100, FirstName: "Alice"},
							Chat:      tg.Chat{ID: 200, Type: "group"},
							Text:      "/status@weather_bot",
							Date:      1700000000,
						},
					},
				},
			})
			return
		}
		writeJSON(t, w, tg.APIResponse[[]tg.Update]{OK: true, Result: []tg.Update{}})
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	client := tg.NewClient("111:TOKEN", srv.URL)
	gate := testGate([]string{"100"}, nil)

	var mu sync.Mutex
	var received []message.InboundMessage

	poller := NewPoller(client, func(msg message.InboundMessage) error {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		return nil
	}, gate, discardLogger(), "test_bot", "channel.telegram", Config{
		PollingTimeout: 0,
		AllowedUpdates: []string{"message"},
	})

	poller.Start()
	time.Sleep(500 * time.Millisecond)
	poller.Stop()

	mu.Lock()
	if len(received) != 0 {
		t.Errorf("received %d messages, want 0 (addressed elsewhere)", len(received))
	}
	mu.Unlock()

	if got := gate.Denied(); got != 0 {
		t.Errorf("gate.Denied() = %d, want 0 (skipping is not a denial)", got)
	}
}
