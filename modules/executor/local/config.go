package local

import (
	"fmt"
	"os"
	"time"
)

// Config holds the local executor's handshake paths and probe tuning.
// All four paths are required; each falls back to its environment
// variable when unset in the config file.
type Config struct {
	// StatusFile is the agent's progress file. Env: CLAUDE_STATUS_FILE.
	StatusFile string `yaml:"status_file"`

	// ApprovalFile is created by the agent when it needs permission.
	// Env: CLAUDE_APPROVAL_FILE.
	ApprovalFile string `yaml:"approval_file"`

	// ResponseFile receives the operator's decision. Env: CLAUDE_RESPONSE_FILE.
	ResponseFile string `yaml:"response_file"`

	// TasksDir receives one markdown file per dispatched task.
	// Env: CLAUDE_TASKS_DIR.
	TasksDir string `yaml:"tasks_dir"`

	// PollInterval is how often the approval file is checked. Defaults
	// to the bridge watcher's 2s.
	PollInterval time.Duration `yaml:"poll_interval"`

	// MaxStatusAge is how fresh the status file must be for the agent
	// to count as online. Defaults to the prober's 10m.
	MaxStatusAge time.Duration `yaml:"max_status_age"`

	// DetectProcess toggles the process-table scan. Defaults to true.
	DetectProcess *bool `yaml:"detect_process"`

	// ProcessPatterns are matched against process names and command
	// lines. Empty means the default "claude" pattern.
	ProcessPatterns []string `yaml:"process_patterns"`

	// OwnerChat is recorded on approval requests raised through the
	// file handshake, so the trail shows where they were announced.
	OwnerChat string `yaml:"owner_chat"`
}

func (c *Config) defaults() {
	if c.StatusFile == "" {
		c.StatusFile = os.Getenv("CLAUDE_STATUS_FILE")
	}
	if c.ApprovalFile == "" {
		c.ApprovalFile = os.Getenv("CLAUDE_APPROVAL_FILE")
	}
	if c.ResponseFile == "" {
		c.ResponseFile = os.Getenv("CLAUDE_RESPONSE_FILE")
	}
	if c.TasksDir == "" {
		c.TasksDir = os.Getenv("CLAUDE_TASKS_DIR")
	}
	if c.DetectProcess == nil {
		t := true
		c.DetectProcess = &t
	}
}

func (c *Config) detectProcess() bool {
	return c.DetectProcess == nil || *c.DetectProcess
}

func (c *Config) validate() error {
	required := []struct {
		value, name, env string
	}{
		{c.StatusFile, "status_file", "CLAUDE_STATUS_FILE"},
		{c.ApprovalFile, "approval_file", "CLAUDE_APPROVAL_FILE"},
		{c.ResponseFile, "response_file", "CLAUDE_RESPONSE_FILE"},
		{c.TasksDir, "tasks_dir", "CLAUDE_TASKS_DIR"},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("local: %s is required (set it or %s)", r.name, r.env)
		}
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("local: poll_interval must be non-negative, got %s", c.PollInterval)
	}
	if c.MaxStatusAge < 0 {
		return fmt.Errorf("local: max_status_age must be non-negative, got %s", c.MaxStatusAge)
	}
	return nil
}
