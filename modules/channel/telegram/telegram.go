package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/Everest18/claude-code-telegram-control/internal/channel"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/events"
	"github.com/Everest18/claude-code-telegram-control/internal/security"
	tg "github.com/Everest18/claude-code-telegram-control/internal/telegram"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ channel.Channel       = (*Telegram)(nil)
	_ channel.TypingChannel = (*Telegram)(nil)
	_ core.Configurable     = (*Telegram)(nil)
	_ core.Provisioner      = (*Telegram)(nil)
	_ core.Validator        = (*Telegram)(nil)
	_ core.Starter          = (*Telegram)(nil)
	_ core.Stopper          = (*Telegram)(nil)
	_ core.Reloader         = (*Telegram)(nil)
)

// Telegram is the Telegram channel module.
type Telegram struct {
	config    Config
	client    *tg.Client
	logger    *slog.Logger
	gate      *inboundGate
	inbox     func(message.InboundMessage) error
	botUser   *tg.User
	appCtx    *core.AppContext
	notifier  *ownerNotifier
	bus       *events.Bus
	ownerChat atomic.Int64

	// Set during Start() depending on mode.
	poller          *Poller
	webhookReceiver *WebhookReceiver
	cancelWatch     context.CancelFunc
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner. Besides building the client and
// the gate, it registers the owner notifier as "channel.notifier" so the
// approval manager and the heartbeat monitor can reach the operator, and
// hands the bot token to the credential store for log redaction.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.appCtx = ctx
	t.logger = ctx.Logger
	t.client = tg.NewClient(t.config.Token, t.config.APIURL)
	t.ownerChat.Store(t.config.OwnerChat)

	var audit *security.AuditLogger
	if svc, ok := ctx.GetService("security.audit"); ok {
		audit, _ = svc.(*security.AuditLogger)
	}
	if svc, ok := ctx.GetService("events.bus"); ok {
		t.bus, _ = svc.(*events.Bus)
	}
	if svc, ok := ctx.GetService("security.credentials"); ok {
		if creds, ok := svc.(*security.CredentialStore); ok && t.config.Token != "" {
			creds.Set("telegram.token", t.config.Token)
		}
	}

	t.gate = newInboundGate(channel.NewAllowList(t.config.AllowUsers, t.config.AllowGroups), audit, t.logger)

	t.notifier = &ownerNotifier{t: t}
	ctx.RegisterService("channel.notifier", t.notifier)

	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	if t.config.Token == "" {
		return errors.New("telegram: token is required (set token or TELEGRAM_BOT_TOKEN)")
	}
	switch t.config.Mode {
	case "polling", "webhook":
	default:
		return fmt.Errorf("telegram: invalid mode %q (must be \"polling\" or \"webhook\")", t.config.Mode)
	}
	if t.config.Mode == "webhook" && t.config.WebhookURL == "" {
		return errors.New("telegram: webhook_url is required when mode is \"webhook\"")
	}
	if len(t.config.AllowUsers) == 0 && len(t.config.AllowGroups) == 0 {
		return errors.New("telegram: allow_users is empty (set allow_users or TELEGRAM_USER_ID); an empty allow list admits no one")
	}
	return t.config.validate()
}

// Start implements core.Starter. It validates the bot token via getMe,
// then starts either polling or webhook delivery.
func (t *Telegram) Start() error {
	if t.inbox == nil {
		return errors.New("telegram: inbox not set, call SetInbox before Start")
	}

	user, err := t.client.GetMe(context.Background())
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.botUser = user
	t.logger.Info("telegram bot authenticated",
		"id", user.ID,
		"username", user.Username,
	)

	if t.bus != nil {
		watchCtx, cancel := context.WithCancel(context.Background())
		t.cancelWatch = cancel
		go t.notifier.watchResolutions(watchCtx, t.bus)
	}

	channelName := string(t.ModuleInfo().ID)

	switch t.config.Mode {
	case "polling":
		t.poller = NewPoller(
			t.client, t.inbox, t.gate, t.logger,
			user.Username, channelName, t.config,
		)
		t.poller.Start()
		t.logger.Info("telegram polling started",
			"timeout", t.config.PollingTimeout,
		)

	case "webhook":
		if t.config.WebhookSecret == "" {
			t.logger.Warn("telegram webhook running without secret_token; " +
				"set webhook_secret so the endpoint can reject forged updates")
		}
		var audit *security.AuditLogger
		if t.gate != nil {
			audit = t.gate.audit
		}
		t.webhookReceiver = NewWebhookReceiver(
			t.client, t.inbox, t.gate, audit, t.logger,
			user.Username, channelName, t.config.WebhookSecret,
		)

		// The gateway resolves this service when it starts; channels
		// start before the gateway in the module load order.
		t.appCtx.RegisterService("telegram.webhook", t.webhookReceiver)

		if err := t.client.SetWebhook(context.Background(), tg.SetWebhookRequest{
			URL:            t.config.WebhookURL,
			SecretToken:    t.config.WebhookSecret,
			AllowedUpdates: t.config.AllowedUpdates,
		}); err != nil {
			return fmt.Errorf("telegram: setWebhook failed: %w", err)
		}
		t.logger.Info("telegram webhook configured",
			"url", t.config.WebhookURL,
		)
	}

	return nil
}

// Stop implements core.Stopper.
func (t *Telegram) Stop(ctx context.Context) error {
	t.logger.Info("telegram channel stopping")

	if t.cancelWatch != nil {
		t.cancelWatch()
	}

	switch t.config.Mode {
	case "polling":
		if t.poller != nil {
			t.poller.Stop()
		}
	case "webhook":
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn("telegram: failed to delete webhook on shutdown", "error", err)
		}
	}

	return nil
}

// Reload implements core.Reloader. Only the allow list and the owner
// chat take effect live; token, mode, and endpoint changes need a
// restart because they would tear down the transport underneath the
// poller or webhook.
func (t *Telegram) Reload(ctx *core.AppContext) error {
	node, ok := ctx.ModuleConfig(string(t.ModuleInfo().ID))
	if !ok {
		return nil
	}

	var fresh Config
	if err := node.Decode(&fresh); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	fresh.defaults()
	if err := fresh.validate(); err != nil {
		return err
	}

	if fresh.Token != t.config.Token || fresh.Mode != t.config.Mode ||
		fresh.APIURL != t.config.APIURL || fresh.WebhookURL != t.config.WebhookURL {
		t.logger.Warn("telegram token, mode, and endpoint changes need a restart; applying allow list only")
	}

	t.gate.SetAllowList(channel.NewAllowList(fresh.AllowUsers, fresh.AllowGroups))
	t.ownerChat.Store(fresh.OwnerChat)
	t.logger.Info("telegram allow list reloaded",
		"users", len(fresh.AllowUsers),
		"groups", len(fresh.AllowGroups),
	)
	return nil
}

// Send implements channel.Channel.
func (t *Telegram) Send(ctx context.Context, msg message.OutboundMessage) error {
	return t.sendOutbound(ctx, msg)
}

// SetInbox implements channel.Channel.
func (t *Telegram) SetInbox(fn func(msg message.InboundMessage) error) {
	t.inbox = fn
}

// SendTyping implements channel.TypingChannel.
func (t *Telegram) SendTyping(ctx context.Context, chat message.Chat) error {
	chatID, err := strconv.ParseInt(chat.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", chat.ID, err)
	}
	return t.client.SendChatAction(ctx, chatID, "typing")
}

// Denied returns how many inbound messages the allow list has dropped
// since start.
func (t *Telegram) Denied() int64 {
	return t.gate.Denied()
}
