package config

import (
	"strings"
	"testing"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"github.com/Everest18/claude-code-telegram-control/internal/core"
	"gopkg.in/yaml.v3"
)

// stubModule is a basic module for testing.
type stubModule struct {
	id string
}

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &stubModule{id: m.id} },
	}
}

// configurableModule implements core.Configurable.
type configurableModule struct {
	stubModule
}

func (m *configurableModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &configurableModule{stubModule: stubModule{id: m.id}} },
	}
}

func (m *configurableModule) Configure(_ *yaml.Node) error { return nil }

func registerStub(t *testing.T, id string) {
	t.Helper()
	core.RegisterModule(&stubModule{id: id})
}

func registerConfigurable(t *testing.T, id string) {
	t.Helper()
	core.RegisterModule(&configurableModule{stubModule: stubModule{id: id}})
}

func TestValidate_Valid(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingVersion(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)
	cfg := &Config{
		Modules: map[string]yaml.Node{id: {}},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing version")
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("error should mention version: %v", err)
	}
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)
	cfg := &Config{
		Version: "99",
		Modules: map[string]yaml.Node{id: {}},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("error should mention unsupported: %v", err)
	}
}

func TestValidate_EmptyModules(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty modules")
	}
	if !strings.Contains(err.Error(), "at least one") {
		t.Errorf("error should mention at least one module: %v", err)
	}
}

func TestValidate_UnknownModule(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{"unknown.mod": {}},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unknown module")
	}
	if !strings.Contains(err.Error(), "unknown.mod") {
		t.Errorf("error should mention module ID: %v", err)
	}
}

func TestValidate_MultipleUnknown(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{
			"bad.one": {},
			"bad.two": {},
		},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unknown modules")
	}
	if !strings.Contains(err.Error(), "bad.one") || !strings.Contains(err.Error(), "bad.two") {
		t.Errorf("error should mention both modules: %v", err)
	}
}

func TestValidate_ConfigurableModuleWithEntry(t *testing.T) {
	id := t.Name() + ".config"
	registerConfigurable(t, id)
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ConfigurableModuleNoEntry(t *testing.T) {
	// A registered module absent from the config is simply not loaded.
	cfgID := t.Name() + ".config"
	stubID := t.Name() + ".other"
	registerConfigurable(t, cfgID)
	registerStub(t, stubID)
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{stubID: {}},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Security(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)
	modules := map[string]yaml.Node{id: {}}

	tests := []struct {
		name    string
		sec     *SecurityConfig
		wantErr string
	}{
		{
			name: "valid",
			sec: &SecurityConfig{
				RateLimit: RateLimitConfig{Requests: 20, WindowSeconds: 60},
			},
		},
		{
			name:    "negative requests",
			sec:     &SecurityConfig{RateLimit: RateLimitConfig{Requests: -1}},
			wantErr: "requests",
		},
		{
			name:    "window out of range",
			sec:     &SecurityConfig{RateLimit: RateLimitConfig{WindowSeconds: 7200}},
			wantErr: "window_seconds",
		},
		{
			name: "disabled skips range checks",
			sec: &SecurityConfig{
				RateLimit: RateLimitConfig{Disabled: true, Requests: -1, WindowSeconds: 7200},
			},
		},
		{
			name:    "negative audit size",
			sec:     &SecurityConfig{Audit: AuditConfig{MaxSizeMB: -5}},
			wantErr: "max_size_mb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Version: "1", Modules: modules, Security: tt.sec}
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %v should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Approval(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)
	modules := map[string]yaml.Node{id: {}}

	tests := []struct {
		name    string
		app     *ApprovalConfig
		wantErr string
	}{
		{
			name: "valid",
			app: &ApprovalConfig{
				TimeoutSeconds: 600,
				Policy: approval.Policy{
					Default: approval.LevelAsk,
					Allow:   []string{"read"},
					Deny:    []string{"rm -rf"},
				},
			},
		},
		{
			name:    "negative timeout",
			app:     &ApprovalConfig{TimeoutSeconds: -1},
			wantErr: "timeout_seconds",
		},
		{
			name: "pattern in both lists",
			app: &ApprovalConfig{
				Policy: approval.Policy{
					Allow: []string{"git push"},
					Deny:  []string{"git push"},
				},
			},
			wantErr: "approval.policy",
		},
		{
			name: "invalid default level",
			app: &ApprovalConfig{
				Policy: approval.Policy{Default: "maybe"},
			},
			wantErr: "default level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Version: "1", Modules: modules, Approval: tt.app}
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %v should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Dispatch(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)
	modules := map[string]yaml.Node{id: {}}

	tests := []struct {
		name    string
		mode    string
		wantErr bool
	}{
		{name: "auto", mode: "auto"},
		{name: "local", mode: "local"},
		{name: "cloud", mode: "cloud"},
		{name: "empty means default", mode: ""},
		{name: "unknown mode", mode: "remote", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Version:  "1",
				Modules:  modules,
				Dispatch: &DispatchConfig{DefaultMode: tt.mode},
			}
			err := Validate(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), "default_mode") {
					t.Errorf("error %v should mention default_mode", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_Telemetry(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)
	modules := map[string]yaml.Node{id: {}}

	tests := []struct {
		name    string
		tel     *TelemetryConfig
		wantErr string
	}{
		{
			name: "valid",
			tel:  &TelemetryConfig{Enabled: true, Endpoint: "localhost:4318", SampleRatio: 0.5},
		},
		{
			name: "disabled skips checks",
			tel:  &TelemetryConfig{Enabled: false, SampleRatio: 9},
		},
		{
			name:    "missing endpoint",
			tel:     &TelemetryConfig{Enabled: true},
			wantErr: "endpoint",
		},
		{
			name:    "sample ratio out of range",
			tel:     &TelemetryConfig{Enabled: true, Endpoint: "localhost:4318", SampleRatio: 1.5},
			wantErr: "sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Version: "1", Modules: modules, Telemetry: tt.tel}
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %v should mention %q", err, tt.wantErr)
			}
		})
	}
}
