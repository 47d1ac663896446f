package security

import (
	"strings"
	"testing"
)

func TestSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"TELEGRAM_BOT_TOKEN", true},
		{"ANTHROPIC_API_KEY", true},
		{"AWS_SECRET_ACCESS_KEY", true},
		{"AWS_SESSION_TOKEN", true},
		{"GITHUB_TOKEN", true},
		{"GH_TOKEN", true},
		{"MYAPP_WEBHOOK_SECRET", true},
		{"DB_PASSWORD", true},
		{"OPENAI_API_KEY", true},
		{"DATABASE_URL", true},
		{"github_token", true}, // matching is case-insensitive
		{"PATH", false},
		{"HOME", false},
		{"SHELL", false},
		{"GOPATH", false},
		{"DB_PORT", false},
		{"TOKENIZER", false}, // suffix, not substring
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := sensitiveKey(tt.key); got != tt.want {
				t.Errorf("sensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestSanitizedEnv_DropsCredentialVars(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "111:secret")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-something")
	t.Setenv("HARMLESS_VAR", "hello")

	env := SanitizedEnv(nil)

	var sawHarmless bool
	for _, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if key == "TELEGRAM_BOT_TOKEN" || key == "ANTHROPIC_API_KEY" {
			t.Errorf("credential variable %q survived sanitization", key)
		}
		if key == "HARMLESS_VAR" {
			sawHarmless = true
		}
	}
	if !sawHarmless {
		t.Error("HARMLESS_VAR was dropped")
	}
}

func TestSanitizedEnv_ScrubsRegisteredValues(t *testing.T) {
	t.Setenv("SOME_CONFIG", "endpoint=https://x.test?key=super-secret-123")

	store := NewCredentialStore()
	store.Set("api", "super-secret-123")

	for _, entry := range SanitizedEnv(store) {
		if strings.Contains(entry, "super-secret-123") {
			t.Fatalf("registered credential leaked: %s", entry)
		}
		if strings.HasPrefix(entry, "SOME_CONFIG=") && !strings.Contains(entry, RedactPlaceholder) {
			t.Errorf("expected placeholder in scrubbed entry, got %s", entry)
		}
	}
}

func TestSanitizedEnv_KeepsShortValues(t *testing.T) {
	t.Setenv("FLAG_VAR", "prod")

	store := NewCredentialStore()
	store.Set("short", "prod") // under the scrub threshold

	var found bool
	for _, entry := range SanitizedEnv(store) {
		if entry == "FLAG_VAR=prod" {
			found = true
		}
	}
	if !found {
		t.Error("short value was scrubbed from an unrelated variable")
	}
}
