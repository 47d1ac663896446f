package telegram

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"

	"github.com/Everest18/claude-code-telegram-control/internal/channel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// testGate wraps an allow list in a gate with no audit logger.
func testGate(allowUsers, allowGroups []string) *inboundGate {
	return newInboundGate(channel.NewAllowList(allowUsers, allowGroups), nil, discardLogger())
}
