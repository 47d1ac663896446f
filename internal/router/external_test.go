package router_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/channel/channeltest"
	"github.com/Everest18/claude-code-telegram-control/internal/command"
	"github.com/Everest18/claude-code-telegram-control/internal/router"
	"github.com/Everest18/claude-code-telegram-control/internal/router/routertest"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// uptimeHandler is a minimal command for driving the router end to end
// through its public surface only.
type uptimeHandler struct{}

func (uptimeHandler) Name() string        { return "uptime" }
func (uptimeHandler) Description() string { return "report how long the daemon has been up" }

func (uptimeHandler) Execute(context.Context, command.Request) (command.Response, error) {
	return command.Response{Text: "up 3h12m"}, nil
}

func uptimeRouter(t *testing.T, sender *routertest.MockResponseSender, lookup router.ChannelLookup) *router.Router {
	t.Helper()

	registry := command.NewRegistry()
	if err := registry.Register(uptimeHandler{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r, err := router.NewRouter(router.Config{
		WorkerCount:    2,
		Commands:       registry,
		ResponseSender: sender,
		ChannelLookup:  lookup,
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r
}

func uptimeDM(id string) message.InboundMessage {
	return message.InboundMessage{
		ID:      id,
		Channel: "channel.telegram",
		Sender:  message.Sender{ID: "900123", Username: "maintainer"},
		Chat:    message.Chat{ID: "900123", Type: message.ChatDM},
		Blocks:  []message.ContentBlock{message.NewTextBlock("/uptime")},
	}
}

func awaitReplies(t *testing.T, sender *routertest.MockResponseSender, n int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for sender.SendCallCount() < n {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d replies, have %d", n, sender.SendCallCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRouter_ExternalCommandRoundTrip(t *testing.T) {
	t.Parallel()

	sender := &routertest.MockResponseSender{}
	r := uptimeRouter(t, sender, nil)

	r.Start(t.Context())
	defer r.Stop(t.Context())

	if err := r.Submit(uptimeDM("m1")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	awaitReplies(t, sender, 1)

	sent := sender.SentMessages()
	if got := sent[0].TextContent(); got != "up 3h12m" {
		t.Errorf("reply = %q, want %q", got, "up 3h12m")
	}
	if sent[0].Chat.ID != "900123" {
		t.Errorf("reply chat = %q, want the origin chat", sent[0].Chat.ID)
	}
}

func TestRouter_ExternalTypingIndicator(t *testing.T) {
	t.Parallel()

	tc := channeltest.NewMockTypingChannel("telegram", nil)
	sender := &routertest.MockResponseSender{}
	r := uptimeRouter(t, sender, routertest.MockChannelLookup{"channel.telegram": tc})

	r.Start(t.Context())
	defer r.Stop(t.Context())

	if err := r.Submit(uptimeDM("m1")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	awaitReplies(t, sender, 1)

	chats := tc.TypingChats()
	if len(chats) == 0 {
		t.Fatal("no typing indicator reached the channel")
	}
	if chats[0].ID != "900123" {
		t.Errorf("typing chat = %q, want the origin chat", chats[0].ID)
	}
}

func TestRouter_ExternalSendFailureDoesNotKillWorker(t *testing.T) {
	t.Parallel()

	sender := &routertest.MockResponseSender{
		SendFunc: func(context.Context, message.OutboundMessage) error {
			return errors.New("telegram: 502 bad gateway")
		},
	}
	r := uptimeRouter(t, sender, nil)

	r.Start(t.Context())
	defer r.Stop(t.Context())

	// Delivery failure is logged, not fatal: the same worker must still
	// pick up and answer the next command.
	if err := r.Submit(uptimeDM("m1")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	awaitReplies(t, sender, 1)

	if err := r.Submit(uptimeDM("m2")); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	awaitReplies(t, sender, 2)
}
