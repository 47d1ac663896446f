package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// StatusReceiver folds a pushed agent report into the liveness state.
// Satisfied by *Monitor.
type StatusReceiver interface {
	ReportPush(ctx context.Context, statusText string)
}

// PushHandler ingests liveness reports the agent pushes through the
// gateway webhook endpoint (source "agent"). Signature validation is the
// dispatcher's job; the handler only parses and applies the report.
type PushHandler struct {
	receiver StatusReceiver
	logger   *slog.Logger
}

// NewPushHandler creates a PushHandler feeding the given receiver.
func NewPushHandler(receiver StatusReceiver, logger *slog.Logger) (*PushHandler, error) {
	if receiver == nil {
		return nil, errors.New("heartbeat: nil StatusReceiver")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PushHandler{receiver: receiver, logger: logger}, nil
}

// pushReport is the payload the agent sends. TaskID is informational.
type pushReport struct {
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
}

// HandleWebhook parses a push report and records it as a successful
// liveness observation.
func (h *PushHandler) HandleWebhook(ctx context.Context, source string, body []byte, _ http.Header) error {
	var report pushReport
	if err := json.Unmarshal(body, &report); err != nil {
		return fmt.Errorf("heartbeat: invalid push payload: %w", err)
	}
	if strings.TrimSpace(report.Status) == "" {
		return errors.New("heartbeat: push report missing status")
	}

	h.receiver.ReportPush(ctx, report.Status)
	h.logger.Debug("heartbeat: push report received",
		"source", source,
		"task_id", report.TaskID,
	)
	return nil
}
