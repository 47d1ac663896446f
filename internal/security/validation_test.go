package security

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateMessageSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		limit   int
		wantErr error
	}{
		{name: "under", size: 512, limit: 1024},
		{name: "exactly at limit", size: 1024, limit: 1024},
		{name: "one over", size: 1025, limit: 1024, wantErr: ErrMessageTooLarge},
		{name: "empty", size: 0, limit: 16},
		{name: "zero limit falls back to default", size: 4096, limit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageSize(make([]byte, tt.size), tt.limit)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMessageSize(%d bytes, limit %d) = %v, want %v",
					tt.size, tt.limit, err, tt.wantErr)
			}
		})
	}
}

func TestValidateJSONDepth(t *testing.T) {
	update := `{"update_id":7,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"from":{"id":42},"text":"/status"}}`

	tests := []struct {
		name    string
		payload string
		limit   int
		wantErr error
	}{
		{name: "typical update", payload: update, limit: DefaultMaxJSONDepth},
		{name: "shallow object at limit", payload: `{"a":{"b":1}}`, limit: 2},
		{name: "object one past limit", payload: `{"a":{"b":{"c":1}}}`, limit: 2, wantErr: ErrJSONTooDeep},
		{name: "arrays count as levels", payload: `[[[1]]]`, limit: 2, wantErr: ErrJSONTooDeep},
		{name: "scalar", payload: `"ping"`, limit: 1},
		{name: "empty payload passes", payload: "", limit: 1},
		{name: "zero limit falls back to default", payload: update, limit: 0},
		{name: "truncated body", payload: `{"update_id":7,"mess`, limit: 8, wantErr: ErrInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSONDepth([]byte(tt.payload), tt.limit)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateJSONDepth(%q, %d) = %v, want %v",
					tt.payload, tt.limit, err, tt.wantErr)
			}
		})
	}
}

func TestValidateJSONDepth_Bomb(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(strings.Repeat(`{"m":`, 200))
	sb.WriteString("0")
	sb.WriteString(strings.Repeat("}", 200))

	if err := ValidateJSONDepth([]byte(sb.String()), 0); !errors.Is(err, ErrJSONTooDeep) {
		t.Fatalf("expected ErrJSONTooDeep for 200-level nesting, got %v", err)
	}
}
