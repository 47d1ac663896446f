package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Everest18/claude-code-telegram-control/internal/security"
	tg "github.com/Everest18/claude-code-telegram-control/internal/telegram"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// secretTokenHeader is how Telegram authenticates webhook deliveries;
// there is no HMAC signature on this path.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxWebhookBody caps update payload reads. Real updates are a few KiB.
const maxWebhookBody = 1 << 20

// WebhookReceiver processes incoming webhook payloads. It implements
// http.Handler; the gateway mounts it under /webhooks/telegram via the
// "telegram.webhook" service.
type WebhookReceiver struct {
	client      *tg.Client
	inbox       func(message.InboundMessage) error
	gate        *inboundGate
	audit       *security.AuditLogger
	logger      *slog.Logger
	botUsername string
	channelName string
	secret      string
}

// NewWebhookReceiver creates a new WebhookReceiver.
func NewWebhookReceiver(client *tg.Client, inbox func(message.InboundMessage) error, gate *inboundGate, audit *security.AuditLogger, logger *slog.Logger, botUsername, channelName, secret string) *WebhookReceiver {
	return &WebhookReceiver{
		client:      client,
		inbox:       inbox,
		gate:        gate,
		audit:       audit,
		logger:      logger,
		botUsername: botUsername,
		channelName: channelName,
		secret:      secret,
	}
}

// ServeHTTP validates the secret token header, parses the update, runs
// the gate, and pushes the message to the inbox. A failed inbox delivery
// answers 500 so Telegram redelivers the update later.
func (w *WebhookReceiver) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.secret != "" {
		token := r.Header.Get(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(w.secret), []byte(token)) != 1 {
			if w.audit != nil {
				w.audit.Log(security.AuditEvent{
					Type:    security.EventWebhookRejected,
					Channel: w.channelName,
					Detail:  "secret token mismatch",
				})
			}
			http.Error(rw, "invalid secret token", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "read body", http.StatusBadRequest)
		return
	}

	var update tg.Update
	if err := json.Unmarshal(body, &update); err != nil {
		http.Error(rw, "invalid update JSON", http.StatusBadRequest)
		return
	}

	msg, err := convertInbound(&update, w.botUsername, w.channelName)
	if err != nil {
		// Updates without a usable message are acknowledged, not retried.
		if !errors.Is(err, errAddressedElsewhere) {
			w.logger.Debug("skipping webhook update", "update_id", update.UpdateID, "reason", err)
		}
		rw.WriteHeader(http.StatusOK)
		return
	}

	if !w.gate.Admit(msg, update.UpdateID) {
		rw.WriteHeader(http.StatusOK)
		return
	}

	if err := resolveMediaURLs(r.Context(), w.client, &msg); err != nil {
		w.logger.Warn("failed to resolve media URLs",
			"update_id", update.UpdateID,
			"error", err,
		)
	}

	if err := w.inbox(msg); err != nil {
		w.logger.Error("failed to deliver update to inbox",
			"update_id", update.UpdateID,
			"error", err,
		)
		http.Error(rw, "delivery failed", http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(http.StatusOK)
}
