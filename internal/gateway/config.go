package gateway

import "time"

const (
	defaultBind            = "127.0.0.1:8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config holds HTTP gateway configuration.
type Config struct {
	// Bind is the listen address. Loopback by default; exposing the
	// gateway beyond localhost is an explicit operator choice.
	Bind string `yaml:"bind"`

	// Auth guards the admin endpoints. Webhook endpoints use per-source
	// secrets instead.
	Auth AuthConfig `yaml:"auth"`

	// Webhooks maps source names to their inbound webhook settings.
	Webhooks map[string]WebhookSourceCfg `yaml:"webhooks"`

	// ConfigPath points at the daemon config file, for the reload endpoint.
	ConfigPath string `yaml:"config_path"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// defaults fills zero values in place.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = defaultBind
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
}

// AuthConfig configures authentication for admin endpoints.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// WebhookSourceCfg holds per-source webhook configuration. The secret
// set here is used when the source's handler registers without one.
type WebhookSourceCfg struct {
	Secret string `yaml:"secret"`
}
