package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"github.com/Everest18/claude-code-telegram-control/internal/channel"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/heartbeat"
	tg "github.com/Everest18/claude-code-telegram-control/internal/telegram"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
	"gopkg.in/yaml.v3"
)

// TestLifecycle exercises the full Configure → Provision → Validate →
// Start → inbound message → outbound reply → Stop flow in polling mode
// using an httptest mock API.
func TestLifecycle(t *testing.T) {
	var mu sync.Mutex
	var sentMessages []tg.SendMessageRequest
	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			writeJSON(t, w, tg.APIResponse[tg.User]{
				OK: true,
				Result: tg.User{
					ID:        111,
					IsBot:     true,
					FirstName: "TestBot",
					Username:  "lifecycle_bot",
				},
			})

		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if polls.Add(1) == 1 {
				writeJSON(t, w, tg.APIResponse[[]tg.Update]{
					OK: true,
					Result: []tg.Update{
						{
							UpdateID: 1,
							Message: &tg.Message{
								MessageID: 100,
								From:      &tg.User{ID: 42, FirstName: "Alice", Username: "alice"},
								Chat:      tg.Chat{ID: 42, Type: "private"},
								Text:      "ping",
								Date:      int(time.Now().Unix()),
							},
						},
					},
				})
			} else {
				writeJSON(t, w, tg.APIResponse[[]tg.Update]{OK: true, Result: []tg.Update{}})
				// Slow down polling so we don't spin.
				time.Sleep(50 * time.Millisecond)
			}

		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var req tg.SendMessageRequest
			_ = json.Unmarshal(body, &req)
			mu.Lock()
			sentMessages = append(sentMessages, req)
			mu.Unlock()
			writeJSON(t, w, tg.APIResponse[tg.Message]{
				OK: true,
				Result: tg.Message{
					MessageID: 200,
					Chat:      tg.Chat{ID: req.ChatID, Type: "private"},
					Text:      req.Text,
				},
			})

		case strings.HasSuffix(r.URL.Path, "/sendChatAction"):
			writeJSON(t, w, tg.APIResponse[bool]{OK: true, Result: true})

		default:
			t.Logf("unexpected API call: %s", r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	// 1. Configure — decode YAML into the module.
	mod := &Telegram{}

	cfgYAML := `
token: "111:TEST_TOKEN"
mode: "polling"
allow_users: ["42"]
api_url: "` + srv.URL + `"
`

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(cfgYAML), &node); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}
	// yaml.Unmarshal wraps in a document node; pass the first child.
	if err := mod.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}

	if mod.config.Token != "111:TEST_TOKEN" {
		t.Errorf("config.Token = %q, want %q", mod.config.Token, "111:TEST_TOKEN")
	}
	if mod.config.Mode != "polling" {
		t.Errorf("config.Mode = %q, want %q", mod.config.Mode, "polling")
	}
	if mod.config.OwnerChat != 42 {
		t.Errorf("config.OwnerChat = %d, want 42 (derived from allow_users)", mod.config.OwnerChat)
	}

	// 2. Provision — client, gate, notifier registration.
	appCtx := core.NewAppContext(discardLogger(), t.TempDir(), t.TempDir())
	if err := mod.Provision(appCtx); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}

	if mod.client == nil {
		t.Fatal("client should be set after Provision()")
	}
	if mod.gate == nil {
		t.Fatal("gate should be set after Provision()")
	}
	svc, ok := appCtx.GetService("channel.notifier")
	if !ok {
		t.Fatal("channel.notifier service should be registered after Provision()")
	}
	if _, ok := svc.(heartbeat.TransitionNotifier); !ok {
		t.Errorf("channel.notifier is %T, want heartbeat.TransitionNotifier", svc)
	}
	if _, ok := svc.(approval.Notifier); !ok {
		t.Errorf("channel.notifier is %T, want approval.Notifier", svc)
	}

	// 3. Validate.
	if err := mod.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	// 4. SetInbox — simulate the router wiring.
	var inboxMu sync.Mutex
	var inboxMessages []message.InboundMessage
	mod.SetInbox(func(msg message.InboundMessage) error {
		inboxMu.Lock()
		inboxMessages = append(inboxMessages, msg)
		inboxMu.Unlock()
		return nil
	})

	// 5. Start — this calls getMe + starts polling.
	if err := mod.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Wait for the inbound message to arrive via polling.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		inboxMu.Lock()
		n := len(inboxMessages)
		inboxMu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	inboxMu.Lock()
	if len(inboxMessages) != 1 {
		t.Fatalf("inbox received %d messages, want 1", len(inboxMessages))
	}
	inbound := inboxMessages[0]
	inboxMu.Unlock()

	if inbound.Sender.Username != "alice" {
		t.Errorf("Sender.Username = %q, want %q", inbound.Sender.Username, "alice")
	}
	if inbound.TextContent() != "ping" {
		t.Errorf("TextContent() = %q, want %q", inbound.TextContent(), "ping")
	}

	// 6. Send an outbound reply.
	outbound := message.NewTextMessage(inbound.Chat, "pong")
	if err := mod.Send(context.Background(), outbound); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	mu.Lock()
	if len(sentMessages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sentMessages))
	}
	if sentMessages[0].Text != "pong" {
		t.Errorf("sent text = %q, want %q", sentMessages[0].Text, "pong")
	}
	if sentMessages[0].ParseMode != "MarkdownV2" {
		t.Errorf("ParseMode = %q, want MarkdownV2", sentMessages[0].ParseMode)
	}
	mu.Unlock()

	// 7. Verify typing indicator.
	if err := mod.SendTyping(context.Background(), inbound.Chat); err != nil {
		t.Fatalf("SendTyping() error: %v", err)
	}

	// 8. Verify interface compliance.
	var _ channel.Channel = mod
	var _ channel.TypingChannel = mod

	// 9. Stop.
	if err := mod.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}

// TestLifecycleWebhookMode verifies that webhook mode registers the
// receiver as "telegram.webhook", calls setWebhook on start, and
// deleteWebhook on stop.
func TestLifecycleWebhookMode(t *testing.T) {
	var mu sync.Mutex
	var setWebhookReq tg.SetWebhookRequest
	var deletedWebhook bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			writeJSON(t, w, tg.APIResponse[tg.User]{
				OK:     true,
				Result: tg.User{ID: 111, IsBot: true, Username: "hook_bot"},
			})
		case strings.HasSuffix(r.URL.Path, "/setWebhook"):
			mu.Lock()
			_ = json.Unmarshal(body, &setWebhookReq)
			mu.Unlock()
			writeJSON(t, w, tg.APIResponse[bool]{OK: true, Result: true})
		case strings.HasSuffix(r.URL.Path, "/deleteWebhook"):
			mu.Lock()
			deletedWebhook = true
			mu.Unlock()
			writeJSON(t, w, tg.APIResponse[bool]{OK: true, Result: true})
		default:
			t.Logf("unexpected API call: %s", r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	mod := &Telegram{}

	cfgYAML := `
token: "111:TEST_TOKEN"
mode: "webhook"
webhook_url: "https://ctl.example.com/webhooks/telegram"
webhook_secret: "s3cret"
allow_users: ["42"]
api_url: "` + srv.URL + `"
`
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(cfgYAML), &node); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}
	if err := mod.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}

	appCtx := core.NewAppContext(discardLogger(), t.TempDir(), t.TempDir())
	if err := mod.Provision(appCtx); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if err := mod.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	mod.SetInbox(func(message.InboundMessage) error { return nil })

	if err := mod.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	svc, ok := appCtx.GetService("telegram.webhook")
	if !ok {
		t.Fatal("telegram.webhook service should be registered after Start()")
	}
	if _, ok := svc.(http.Handler); !ok {
		t.Errorf("telegram.webhook is %T, want http.Handler", svc)
	}

	mu.Lock()
	if setWebhookReq.URL != "https://ctl.example.com/webhooks/telegram" {
		t.Errorf("setWebhook URL = %q, want configured URL", setWebhookReq.URL)
	}
	if setWebhookReq.SecretToken != "s3cret" {
		t.Errorf("setWebhook SecretToken = %q, want %q", setWebhookReq.SecretToken, "s3cret")
	}
	mu.Unlock()

	if err := mod.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	mu.Lock()
	if !deletedWebhook {
		t.Error("Stop() should call deleteWebhook")
	}
	mu.Unlock()
}

// TestStartRequiresInbox verifies Start refuses to run before SetInbox.
func TestStartRequiresInbox(t *testing.T) {
	mod := &Telegram{config: Config{Token: "111:TEST", Mode: "polling"}}
	if err := mod.Start(); err == nil {
		t.Error("Start() should error when inbox is not set")
	}
}
