package approval

import (
	"fmt"
	"strings"
)

// Level defines how an approval request is handled before reaching the
// operator.
type Level string

const (
	// LevelAllow approves the request without asking the operator.
	LevelAllow Level = "allow"

	// LevelAsk forwards the request to the operator.
	LevelAsk Level = "ask"

	// LevelDeny rejects the request without asking the operator.
	LevelDeny Level = "deny"
)

// Policy auto-decides approval requests by matching patterns against the
// request content. Deny patterns win over allow patterns; anything
// unmatched falls back to Default (ask when unset). Matching is
// case-insensitive substring.
type Policy struct {
	// Default is the fallback level for unmatched requests.
	Default Level `yaml:"default"`

	// Allow lists content patterns that are approved automatically.
	Allow []string `yaml:"allow"`

	// Deny lists content patterns that are rejected automatically.
	Deny []string `yaml:"deny"`
}

// Evaluate returns the effective level for a request with the given
// content.
func (p Policy) Evaluate(content string) Level {
	lowered := strings.ToLower(content)

	// Deny takes precedence.
	for _, pat := range p.Deny {
		if patternMatches(lowered, pat) {
			return LevelDeny
		}
	}
	for _, pat := range p.Allow {
		if patternMatches(lowered, pat) {
			return LevelAllow
		}
	}

	if p.Default != "" {
		return p.Default
	}
	return LevelAsk
}

// Validate checks that the policy is internally consistent: a valid
// default and no pattern in both lists.
func (p Policy) Validate() error {
	if p.Default != "" && !isValidLevel(p.Default) {
		return fmt.Errorf("approval: invalid default level %q", p.Default)
	}

	seen := make(map[string]struct{}, len(p.Allow))
	for _, pat := range p.Allow {
		name := normalizePattern(pat)
		if name == "" {
			return fmt.Errorf("approval: allow list contains empty pattern")
		}
		seen[name] = struct{}{}
	}
	for _, pat := range p.Deny {
		name := normalizePattern(pat)
		if name == "" {
			return fmt.Errorf("approval: deny list contains empty pattern")
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q", ErrPatternInBothLists, name)
		}
	}
	return nil
}

func patternMatches(loweredContent, pattern string) bool {
	pat := normalizePattern(pattern)
	return pat != "" && strings.Contains(loweredContent, pat)
}

func normalizePattern(pattern string) string {
	return strings.ToLower(strings.TrimSpace(pattern))
}

func isValidLevel(level Level) bool {
	switch level {
	case LevelAllow, LevelAsk, LevelDeny:
		return true
	default:
		return false
	}
}
