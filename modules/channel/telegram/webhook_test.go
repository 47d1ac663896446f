package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Everest18/claude-code-telegram-control/internal/channel"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
	tg "github.com/Everest18/claude-code-telegram-control/internal/telegram"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

func webhookUpdate(t *testing.T) []byte {
	t.Helper()
	update := tg.Update{
		UpdateID: 1,
		Message: &tg.Message{
			MessageID: 42,
			From:      &tg.User{ID: 123, FirstName: "Alice"},
			Chat:      tg.Chat{ID: 456, Type: "private"},
			Date:      1700000000,
			Text:      "hello",
		},
	}
	body, err := json.Marshal(update)
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	return body
}

func postWebhook(wh *WebhookReceiver, body []byte, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", bytes.NewReader(body))
	if secret != "" {
		req.Header.Set(secretTokenHeader, secret)
	}
	rec := httptest.NewRecorder()
	wh.ServeHTTP(rec, req)
	return rec
}

func TestWebhookValidSecret(t *testing.T) {
	var received []message.InboundMessage
	wh := NewWebhookReceiver(nil, func(msg message.InboundMessage) error {
		received = append(received, msg)
		return nil
	}, testGate([]string{"123"}, nil), nil, discardLogger(), "testbot", "channel.telegram", "my-secret")

	rec := postWebhook(wh, webhookUpdate(t), "my-secret")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(received) != 1 {
		t.Fatalf("received %d messages, want 1", len(received))
	}
	if received[0].Sender.ID != "123" {
		t.Errorf("Sender.ID = %q, want %q", received[0].Sender.ID, "123")
	}
}

func TestWebhookInvalidSecret(t *testing.T) {
	var audited []security.AuditEvent
	audit := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(ev security.AuditEvent) { audited = append(audited, ev) },
	})

	wh := NewWebhookReceiver(nil, func(_ message.InboundMessage) error {
		t.Error("inbox should not be called for invalid secret")
		return nil
	}, testGate(nil, nil), audit, discardLogger(), "testbot", "channel.telegram", "my-secret")

	rec := postWebhook(wh, webhookUpdate(t), "wrong-secret")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(audited) != 1 || audited[0].Type != security.EventWebhookRejected {
		t.Errorf("audited = %+v, want one webhook_rejected event", audited)
	}
}

func TestWebhookMissingSecretHeader(t *testing.T) {
	wh := NewWebhookReceiver(nil, func(_ message.InboundMessage) error {
		t.Error("inbox should not be called without the secret header")
		return nil
	}, testGate(nil, nil), nil, discardLogger(), "testbot", "channel.telegram", "my-secret")

	rec := postWebhook(wh, webhookUpdate(t), "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookNoSecretConfigured(t *testing.T) {
	var received []message.InboundMessage
	wh := NewWebhookReceiver(nil, func(msg message.InboundMessage) error {
		received = append(received, msg)
		return nil
	}, testGate([]string{"123"}, nil), nil, discardLogger(), "testbot", "channel.telegram", "")

	// No secret header — accepted when no secret is configured.
	rec := postWebhook(wh, webhookUpdate(t), "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(received) != 1 {
		t.Fatalf("received %d messages, want 1", len(received))
	}
}

func TestWebhookInvalidJSON(t *testing.T) {
	wh := NewWebhookReceiver(nil, func(_ message.InboundMessage) error {
		t.Error("inbox should not be called for invalid JSON")
		return nil
	}, testGate(nil, nil), nil, discardLogger(), "testbot", "channel.telegram", "")

	rec := postWebhook(wh, []byte(`{invalid json`), "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookAllowListDenied(t *testing.T) {
	var received []message.InboundMessage
	// Only allow user 999 — user 123 should be denied.
	gate := newInboundGate(channel.NewAllowList([]string{"999"}, nil), nil, discardLogger())
	wh := NewWebhookReceiver(nil, func(msg message.InboundMessage) error {
		received = append(received, msg)
		return nil
	}, gate, nil, discardLogger(), "testbot", "channel.telegram", "")

	rec := postWebhook(wh, webhookUpdate(t), "")

	// Denied updates are acknowledged so Telegram does not redeliver them.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(received) != 0 {
		t.Errorf("received %d messages, want 0 (denied)", len(received))
	}
	if got := gate.Denied(); got != 1 {
		t.Errorf("gate.Denied() = %d, want 1", got)
	}
}

func TestWebhookEmptyUpdate(t *testing.T) {
	wh := NewWebhookReceiver(nil, func(_ message.InboundMessage) error {
		t.Error("inbox should not be called for empty update")
		return nil
	}, testGate(nil, nil), nil, discardLogger(), "testbot", "channel.telegram", "")

	update := tg.Update{UpdateID: 1} // No message, edited_message, or channel_post.
	body, _ := json.Marshal(update)

	rec := postWebhook(wh, body, "")

	// Empty updates are acknowledged and skipped.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// TestWebhookInboxFailure verifies a failed delivery answers 500 so
// Telegram redelivers the update.
func TestWebhookInboxFailure(t *testing.T) {
	wh := NewWebhookReceiver(nil, func(_ message.InboundMessage) error {
		return errors.New("inbox full")
	}, testGate([]string{"123"}, nil), nil, discardLogger(), "testbot", "channel.telegram", "")

	rec := postWebhook(wh, webhookUpdate(t), "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
