package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Everest18/claude-code-telegram-control/internal/security"
	"github.com/go-chi/chi/v5"
)

// maxWebhookBody caps webhook payloads. Completion callbacks carry a
// task result, which the workflow already truncates; anything above
// this is not ours.
const maxWebhookBody = 1 << 20

// WebhookHandler processes a validated webhook payload.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error
}

type webhookEntry struct {
	handler WebhookHandler
	secret  string
}

// WebhookDispatcher routes incoming webhooks to registered handlers
// with HMAC-SHA256 validation.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]webhookEntry
	secrets  map[string]string
	logger   *slog.Logger

	// Wired by the gateway: denied deliveries land in the audit trail,
	// accepted and rejected ones in the request counter.
	audit   *security.AuditLogger
	metrics *Metrics
}

// NewWebhookDispatcher creates a ready-to-use dispatcher.
func NewWebhookDispatcher(logger *slog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		handlers: make(map[string]webhookEntry),
		secrets:  make(map[string]string),
		logger:   logger,
	}
}

// Register adds a handler for the given source with an optional HMAC
// secret. An empty secret falls back to the one configured on the
// gateway for this source; if neither exists, signatures are not
// checked.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler, secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[source] = webhookEntry{handler: h, secret: secret}
}

// SetSecret installs a gateway-configured HMAC secret for a source.
func (d *WebhookDispatcher) SetSecret(source, secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.secrets[source] = secret
}

// ServeHTTP implements http.Handler. It extracts the source from the
// chi URL param, validates the HMAC signature if a secret is
// configured, and dispatches to the registered handler.
func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := chi.URLParam(r, "source")
	if source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	d.mu.RLock()
	entry, ok := d.handlers[source]
	secret := entry.secret
	if secret == "" {
		secret = d.secrets[source]
	}
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("webhook received for unregistered source", "source", source)
		d.record(source, "unregistered")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true,"warning":"no handler registered"}`))
		return
	}

	if secret != "" {
		sig := signatureHeader(r.Header)
		if !validateHMAC(body, sig, secret) {
			d.rejectSignature(r, source)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	if err := entry.handler.HandleWebhook(r.Context(), source, body, r.Header); err != nil {
		d.logger.Error("webhook handler failed", "source", source, "error", err)
		d.record(source, "error")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	d.record(source, "ok")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (d *WebhookDispatcher) record(source, outcome string) {
	if d.metrics != nil {
		d.metrics.RecordWebhook(source, outcome)
	}
}

func (d *WebhookDispatcher) rejectSignature(r *http.Request, source string) {
	d.logger.Warn("webhook signature rejected", "source", source)
	d.record(source, "rejected")
	if d.audit != nil {
		d.audit.Log(security.AuditEvent{
			Type:   security.EventWebhookRejected,
			Detail: "invalid signature",
			Metadata: map[string]string{
				"source":      source,
				"remote_addr": r.RemoteAddr,
			},
		})
	}
}

// signatureHeader extracts the HMAC signature. GitHub sends
// X-Hub-Signature-256; other sources use the generic X-Signature-256.
func signatureHeader(h http.Header) string {
	if sig := h.Get("X-Hub-Signature-256"); sig != "" {
		return sig
	}
	return h.Get("X-Signature-256")
}

// validateHMAC checks an HMAC-SHA256 signature in constant time.
func validateHMAC(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
