package bridge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shirou/gopsutil/v4/process"
)

func TestNewDetector_Defaults(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	if len(d.patterns) != 1 || d.patterns[0] != DefaultProcessPattern {
		t.Errorf("patterns = %v, want [%s]", d.patterns, DefaultProcessPattern)
	}

	// Blank patterns collapse to the default too.
	d = NewDetector("  ", "")
	if len(d.patterns) != 1 || d.patterns[0] != DefaultProcessPattern {
		t.Errorf("patterns = %v, want [%s]", d.patterns, DefaultProcessPattern)
	}
}

func TestDetector_Matches(t *testing.T) {
	t.Parallel()

	d := NewDetector("claude", "Agent")

	tests := []struct {
		in   string
		want bool
	}{
		{"claude --continue", true},
		{"/usr/local/bin/CLAUDE", true},
		{"my-agent-wrapper", true},
		{"bash", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := d.matches(tt.in); got != tt.want {
			t.Errorf("matches(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDetector_FindsOwnProcess(t *testing.T) {
	t.Parallel()

	if procs, err := process.ProcessesWithContext(t.Context()); err != nil || len(procs) == 0 {
		t.Skipf("process table unavailable: %v", err)
	}

	// The test binary itself is a process whose command line contains
	// its own name.
	self := strings.ToLower(filepath.Base(os.Args[0]))
	d := NewDetector(self)
	if !d.Detect(t.Context()) {
		t.Errorf("Detect() = false, want true for own process %q", self)
	}
}

func TestDetector_NoMatch(t *testing.T) {
	t.Parallel()

	d := NewDetector("no-such-process-1f2e3d4c")
	if d.Detect(t.Context()) {
		t.Error("Detect() = true for a pattern no process should match")
	}
}
