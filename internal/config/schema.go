// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for ccontrol.
package config

import (
	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Security holds cross-cutting security settings: per-chat rate
	// limiting and the audit trail.
	Security *SecurityConfig `yaml:"security,omitempty"`

	// Approval tunes the operator confirmation flow.
	Approval *ApprovalConfig `yaml:"approval,omitempty"`

	// Dispatch sets task routing defaults.
	Dispatch *DispatchConfig `yaml:"dispatch,omitempty"`

	// Telemetry holds optional OpenTelemetry trace export settings.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// DispatchConfig sets task routing defaults.
type DispatchConfig struct {
	// DefaultMode is the execution mode for chats without a /mode
	// override: "auto", "local", or "cloud". Default "auto".
	DefaultMode string `yaml:"default_mode"`
}

// ApprovalConfig tunes the operator confirmation flow.
type ApprovalConfig struct {
	// TimeoutSeconds denies an unanswered request after this long.
	// Default 900 (15 minutes).
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Policy auto-decides requests matching its allow/deny patterns;
	// everything else asks the operator.
	Policy approval.Policy `yaml:"policy"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit"`
}

// RateLimitConfig controls the per-chat sliding-window rate limiter
// applied to inbound messages before command dispatch.
type RateLimitConfig struct {
	// Disabled turns rate limiting off entirely. The limiter is on by
	// default because the bot accepts commands from a public messenger.
	Disabled bool `yaml:"disabled"`

	// Requests is the number of messages allowed per window. Default 20.
	Requests int `yaml:"requests"`

	// WindowSeconds is the sliding window length in seconds. Default 60.
	WindowSeconds int `yaml:"window_seconds"`
}

// AuditConfig controls the append-only JSONL audit trail.
type AuditConfig struct {
	// Path is the audit log file. Defaults to <datadir>/audit/audit.jsonl.
	Path string `yaml:"path"`

	// MaxSizeMB rotates the log when it exceeds this size. 0 disables
	// rotation.
	MaxSizeMB int `yaml:"max_size_mb"`
}

// TelemetryConfig controls OTLP trace export.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector endpoint, host:port.
	Endpoint string `yaml:"endpoint"`

	// ServiceName overrides the service.name resource attribute.
	// Defaults to "ccontrol".
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the trace sampling ratio in [0, 1]. Default 1.
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS to the collector. Needed for a plain HTTP
	// collector such as a local one on 4318.
	Insecure bool `yaml:"insecure"`
}
