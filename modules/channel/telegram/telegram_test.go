package telegram

import (
	"testing"

	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
	"gopkg.in/yaml.v3"
)

// TestModuleRegistered verifies the module is registered via init().
func TestModuleRegistered(t *testing.T) {
	info, ok := core.GetModule("channel.telegram")
	if !ok {
		t.Fatal("channel.telegram module not registered")
	}
	if info.ID != "channel.telegram" {
		t.Errorf("ID = %q, want %q", info.ID, "channel.telegram")
	}
	if info.New == nil {
		t.Fatal("New function is nil")
	}
	mod := info.New()
	if _, ok := mod.(*Telegram); !ok {
		t.Errorf("New() returned %T, want *Telegram", mod)
	}
}

func TestValidateRejectsEmptyToken(t *testing.T) {
	tg := &Telegram{}
	tg.config = Config{Mode: "polling", AllowUsers: []string{"42"}}

	if err := tg.Validate(); err == nil {
		t.Error("Validate() should error with empty token")
	}
}

func TestValidateRejectsInvalidMode(t *testing.T) {
	tg := &Telegram{}
	tg.config = Config{Token: "111:TEST", Mode: "carrier-pigeon", AllowUsers: []string{"42"}}

	if err := tg.Validate(); err == nil {
		t.Error("Validate() should error with invalid mode")
	}
}

func TestValidateWebhookRequiresURL(t *testing.T) {
	tg := &Telegram{}
	tg.config = Config{Token: "111:TEST", Mode: "webhook", AllowUsers: []string{"42"}}

	if err := tg.Validate(); err == nil {
		t.Error("Validate() should error when webhook mode has no URL")
	}
}

// TestValidateRejectsEmptyAllowList verifies the fail-closed stance: a
// configuration that would admit nobody (or, worse, had the operator
// believing it admits everybody) refuses to start.
func TestValidateRejectsEmptyAllowList(t *testing.T) {
	tg := &Telegram{}
	tg.config = Config{Token: "111:TEST", Mode: "polling"}

	if err := tg.Validate(); err == nil {
		t.Error("Validate() should error with an empty allow list")
	}
}

func TestValidateRejectsMalformedToken(t *testing.T) {
	tg := &Telegram{}
	tg.config = Config{
		Token:            "not-a-bot-token",
		Mode:             "polling",
		AllowUsers:       []string{"42"},
		PollingTimeout:   30,
		MaxMessageLength: 4096,
	}

	if err := tg.Validate(); err == nil {
		t.Error("Validate() should reject a token that is not <bot_id>:<hash>")
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{Token: "111:TEST", AllowUsers: []string{"42"}}
	c.defaults()

	if c.Mode != "polling" {
		t.Errorf("Mode = %q, want %q", c.Mode, "polling")
	}
	if c.PollingTimeout != 30 {
		t.Errorf("PollingTimeout = %d, want 30", c.PollingTimeout)
	}
	if c.MaxMessageLength != 4096 {
		t.Errorf("MaxMessageLength = %d, want 4096", c.MaxMessageLength)
	}
	if c.APIURL != "https://api.telegram.org" {
		t.Errorf("APIURL = %q, want api.telegram.org", c.APIURL)
	}
	if len(c.AllowedUpdates) != 1 || c.AllowedUpdates[0] != "message" {
		t.Errorf("AllowedUpdates = %v, want [message]", c.AllowedUpdates)
	}
}

// TestConfigEnvFallbacks verifies that a bare config section picks up
// TELEGRAM_BOT_TOKEN and TELEGRAM_USER_ID from the environment.
func TestConfigEnvFallbacks(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "111:ENVTOKEN")
	t.Setenv("TELEGRAM_USER_ID", "424242")

	c := Config{}
	c.defaults()

	if c.Token != "111:ENVTOKEN" {
		t.Errorf("Token = %q, want env token", c.Token)
	}
	if len(c.AllowUsers) != 1 || c.AllowUsers[0] != "424242" {
		t.Errorf("AllowUsers = %v, want [424242]", c.AllowUsers)
	}
	if c.OwnerChat != 424242 {
		t.Errorf("OwnerChat = %d, want 424242", c.OwnerChat)
	}
}

// TestConfigExplicitBeatsEnv verifies that YAML values win over the
// environment.
func TestConfigExplicitBeatsEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "111:ENVTOKEN")
	t.Setenv("TELEGRAM_USER_ID", "424242")

	c := Config{Token: "222:YAMLTOKEN", AllowUsers: []string{"7"}}
	c.defaults()

	if c.Token != "222:YAMLTOKEN" {
		t.Errorf("Token = %q, want YAML token", c.Token)
	}
	if len(c.AllowUsers) != 1 || c.AllowUsers[0] != "7" {
		t.Errorf("AllowUsers = %v, want [7]", c.AllowUsers)
	}
	if c.OwnerChat != 7 {
		t.Errorf("OwnerChat = %d, want 7", c.OwnerChat)
	}
}

func TestOwnerChatDerivation(t *testing.T) {
	tests := []struct {
		name       string
		ownerChat  int64
		allowUsers []string
		want       int64
	}{
		{"explicit wins", 99, []string{"42"}, 99},
		{"first numeric user", 0, []string{"42", "43"}, 42},
		{"skips usernames", 0, []string{"alice", "42"}, 42},
		{"no numeric entries", 0, []string{"alice"}, 0},
		{"empty list", 0, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{Token: "111:TEST", OwnerChat: tt.ownerChat, AllowUsers: tt.allowUsers}
			c.defaults()
			if c.OwnerChat != tt.want {
				t.Errorf("OwnerChat = %d, want %d", c.OwnerChat, tt.want)
			}
		})
	}
}

// TestReloadSwapsAllowList verifies that Reload applies a new allow list
// without touching the running transport.
func TestReloadSwapsAllowList(t *testing.T) {
	tg := &Telegram{
		config: Config{
			Token:            "111:TEST",
			Mode:             "polling",
			AllowUsers:       []string{"42"},
			PollingTimeout:   30,
			MaxMessageLength: 4096,
			APIURL:           "https://api.telegram.org",
		},
		logger: discardLogger(),
	}
	tg.gate = testGate([]string{"42"}, nil)
	tg.ownerChat.Store(42)

	fromUser := func(id string) message.InboundMessage {
		return message.InboundMessage{
			Sender: message.Sender{ID: id},
			Chat:   message.Chat{ID: id, Type: message.ChatDM},
		}
	}

	if !tg.gate.Admit(fromUser("42"), 1) {
		t.Fatal("user 42 should be admitted before reload")
	}
	if tg.gate.Admit(fromUser("77"), 2) {
		t.Fatal("user 77 should be denied before reload")
	}

	cfgYAML := `
token: "111:TEST"
allow_users: ["77"]
`
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(cfgYAML), &doc); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}

	appCtx := core.NewAppContext(discardLogger(), t.TempDir(), t.TempDir()).
		WithModuleConfigs(map[string]yaml.Node{"channel.telegram": *doc.Content[0]})

	if err := tg.Reload(appCtx); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}

	if tg.gate.Admit(fromUser("42"), 3) {
		t.Error("user 42 should be denied after reload")
	}
	if !tg.gate.Admit(fromUser("77"), 4) {
		t.Error("user 77 should be admitted after reload")
	}
	if got := tg.ownerChat.Load(); got != 77 {
		t.Errorf("ownerChat = %d, want 77", got)
	}
}

// TestReloadRejectsBadConfig verifies that an invalid new configuration
// is reported and the old allow list stays in force.
func TestReloadRejectsBadConfig(t *testing.T) {
	tg := &Telegram{
		config: Config{Token: "111:TEST", Mode: "polling"},
		logger: discardLogger(),
	}
	tg.gate = testGate([]string{"42"}, nil)

	cfgYAML := `
token: "111:TEST"
polling_timeout: 9000
allow_users: ["77"]
`
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(cfgYAML), &doc); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}

	appCtx := core.NewAppContext(discardLogger(), t.TempDir(), t.TempDir()).
		WithModuleConfigs(map[string]yaml.Node{"channel.telegram": *doc.Content[0]})

	if err := tg.Reload(appCtx); err == nil {
		t.Fatal("Reload() should reject polling_timeout 9000")
	}

	msg := message.InboundMessage{
		Sender: message.Sender{ID: "42"},
		Chat:   message.Chat{ID: "42", Type: message.ChatDM},
	}
	if !tg.gate.Admit(msg, 1) {
		t.Error("old allow list should still admit user 42 after failed reload")
	}
}

// TestReloadWithoutConfigSection is a no-op, not an error.
func TestReloadWithoutConfigSection(t *testing.T) {
	tg := &Telegram{
		config: Config{Token: "111:TEST", Mode: "polling"},
		logger: discardLogger(),
	}
	tg.gate = testGate([]string{"42"}, nil)

	appCtx := core.NewAppContext(discardLogger(), t.TempDir(), t.TempDir()).
		WithModuleConfigs(map[string]yaml.Node{})

	if err := tg.Reload(appCtx); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
}
