package bridge

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// DefaultProcessPattern matches a running Claude Code session in the
// process table.
const DefaultProcessPattern = "claude"

// Detector scans the process table for a local agent session. It backs
// the auto execution mode: a match routes tasks locally.
type Detector struct {
	patterns []string
}

// NewDetector creates a Detector matching the given substrings against
// process names and command lines, case-insensitively. With no patterns
// it matches DefaultProcessPattern.
func NewDetector(patterns ...string) *Detector {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{DefaultProcessPattern}
	}
	return &Detector{patterns: cleaned}
}

// Detect reports whether any running process matches. Per-process read
// errors are skipped: processes vanish mid-scan and some are simply not
// ours to inspect.
func (d *Detector) Detect(ctx context.Context) bool {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false
	}
	for _, p := range procs {
		if ctx.Err() != nil {
			return false
		}
		if name, err := p.NameWithContext(ctx); err == nil && d.matches(name) {
			return true
		}
		if cmdline, err := p.CmdlineWithContext(ctx); err == nil && d.matches(cmdline) {
			return true
		}
	}
	return false
}

func (d *Detector) matches(s string) bool {
	s = strings.ToLower(s)
	for _, p := range d.patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
