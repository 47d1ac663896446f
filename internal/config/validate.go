package config

import (
	"errors"
	"fmt"

	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, and checks
// that all referenced module IDs exist in the registry. Modules compiled
// into the binary but absent from the config are simply not loaded:
// optional capabilities (cloud execution, the MCP bridge) are enabled by
// configuring them. It also validates the security, approval, and
// telemetry sections.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateSecurity(cfg.Security)...)
	errs = append(errs, validateApproval(cfg.Approval)...)
	errs = append(errs, validateDispatch(cfg.Dispatch)...)
	errs = append(errs, validateTelemetry(cfg.Telemetry)...)

	return errors.Join(errs...)
}

func validateSecurity(sec *SecurityConfig) []error {
	if sec == nil {
		return nil
	}
	var errs []error

	rl := sec.RateLimit
	if !rl.Disabled {
		if rl.Requests < 0 {
			errs = append(errs, fmt.Errorf("config: security.rate_limit.requests must not be negative, got %d", rl.Requests))
		}
		if rl.WindowSeconds < 0 || rl.WindowSeconds > 3600 {
			errs = append(errs, fmt.Errorf("config: security.rate_limit.window_seconds must be 0-3600, got %d", rl.WindowSeconds))
		}
	}

	if sec.Audit.MaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("config: security.audit.max_size_mb must not be negative, got %d", sec.Audit.MaxSizeMB))
	}

	return errs
}

func validateApproval(app *ApprovalConfig) []error {
	if app == nil {
		return nil
	}
	var errs []error

	if app.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("config: approval.timeout_seconds must not be negative, got %d", app.TimeoutSeconds))
	}
	if err := app.Policy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: approval.policy: %w", err))
	}

	return errs
}

func validateDispatch(d *DispatchConfig) []error {
	if d == nil || d.DefaultMode == "" {
		return nil
	}
	if !task.ExecMode(d.DefaultMode).Valid() {
		return []error{fmt.Errorf("config: dispatch.default_mode must be auto, local, or cloud, got %q", d.DefaultMode)}
	}
	return nil
}

func validateTelemetry(tel *TelemetryConfig) []error {
	if tel == nil || !tel.Enabled {
		return nil
	}
	var errs []error

	if tel.Endpoint == "" {
		errs = append(errs, errors.New("config: telemetry.endpoint is required when telemetry is enabled"))
	}
	if tel.SampleRatio < 0 || tel.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("config: telemetry.sample_ratio must be in [0, 1], got %g", tel.SampleRatio))
	}

	return errs
}
