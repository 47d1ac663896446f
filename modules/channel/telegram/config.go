package telegram

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"

	tg "github.com/Everest18/claude-code-telegram-control/internal/telegram"
)

// tokenPattern matches the Telegram bot token format: <digits>:<base64url>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config holds the Telegram channel configuration.
type Config struct {
	Token            string   `yaml:"token"`
	Mode             string   `yaml:"mode"`
	PollingTimeout   int      `yaml:"polling_timeout"`
	WebhookURL       string   `yaml:"webhook_url"`
	WebhookSecret    string   `yaml:"webhook_secret"`
	AllowedUpdates   []string `yaml:"allowed_updates"`
	AllowUsers       []string `yaml:"allow_users"`
	AllowGroups      []string `yaml:"allow_groups"`
	OwnerChat        int64    `yaml:"owner_chat"`
	MaxMessageLength int      `yaml:"max_message_length"`
	APIURL           string   `yaml:"api_url"`
}

// defaults applies default values to unset fields. The token and the
// allow list fall back to the environment (TELEGRAM_BOT_TOKEN,
// TELEGRAM_USER_ID) so a bare config section works on a host that
// exports the classic variables.
func (c *Config) defaults() {
	if c.Token == "" {
		c.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if len(c.AllowUsers) == 0 {
		if id := os.Getenv("TELEGRAM_USER_ID"); id != "" {
			c.AllowUsers = []string{id}
		}
	}
	if c.Mode == "" {
		c.Mode = "polling"
	}
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30
	}
	if c.AllowedUpdates == nil {
		c.AllowedUpdates = []string{"message"}
	}
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = 4096
	}
	if c.APIURL == "" {
		c.APIURL = tg.DefaultBaseURL
	}
	if c.OwnerChat == 0 {
		c.OwnerChat = firstNumericID(c.AllowUsers)
	}
}

// firstNumericID returns the first entry that parses as a chat ID, or 0.
// For a single-operator deployment the owner chat is the operator's DM,
// whose chat ID equals the user ID.
func firstNumericID(ids []string) int64 {
	for _, id := range ids {
		if v, err := strconv.ParseInt(id, 10, 64); err == nil {
			return v
		}
	}
	return 0
}

// validate checks configuration field constraints beyond basic presence
// checks. It is called from Telegram.Validate after defaults have been
// applied.
func (c *Config) validate() error {
	if c.Token != "" && !tokenPattern.MatchString(c.Token) {
		return fmt.Errorf("telegram: token format invalid (expected <bot_id>:<hash>)")
	}

	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL)
		}
	}

	if c.PollingTimeout < 0 || c.PollingTimeout > 50 {
		return fmt.Errorf("telegram: polling_timeout must be 0-50, got %d", c.PollingTimeout)
	}

	if c.MaxMessageLength < 1 || c.MaxMessageLength > 4096 {
		return fmt.Errorf("telegram: max_message_length must be 1-4096, got %d", c.MaxMessageLength)
	}

	return nil
}
