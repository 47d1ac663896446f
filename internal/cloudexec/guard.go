package cloudexec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCommandBlocked is returned when the guard rejects a command.
var ErrCommandBlocked = errors.New("cloudexec: command blocked")

// metaChars are shell operators rejected outright. Commands run through
// `sh -c`; without composition one EXEC line stays one command.
const metaChars = ";|&`$><"

// denyPatterns are substrings that mark a command destructive. Matched
// case-insensitively after whitespace normalization, so patterns here
// must be lowercase and single-spaced.
var denyPatterns = []string{
	"rm -rf /",
	"rm -rf ~",
	"rm -rf *",
	"rm -fr /",
	"mkfs",
	"dd if=",
	"shutdown",
	"reboot",
	"init 0",
	"chmod -r 777",
	"chmod 777 /",
	"sudo ",
	"git push --force",
	"git push -f",
}

// Guard vets commands before execution: shell metacharacters and
// destructive patterns are rejected.
type Guard struct {
	deny []string
}

// NewGuard builds a guard with the built-in denylist plus any extra
// patterns. Extra patterns follow the same normalization rules.
func NewGuard(extra ...string) *Guard {
	deny := make([]string, 0, len(denyPatterns)+len(extra))
	deny = append(deny, denyPatterns...)
	for _, p := range extra {
		deny = append(deny, normalize(p))
	}
	return &Guard{deny: deny}
}

// Check returns nil when the command may run, or ErrCommandBlocked
// wrapped with the reason.
func (g *Guard) Check(command string) error {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return fmt.Errorf("%w: empty command", ErrCommandBlocked)
	}

	if i := strings.IndexAny(trimmed, metaChars); i >= 0 {
		return fmt.Errorf("%w: shell metacharacter %q", ErrCommandBlocked, string(trimmed[i]))
	}

	normalized := normalize(trimmed)
	for _, p := range g.deny {
		if strings.Contains(normalized, p) {
			return fmt.Errorf("%w: matches denied pattern %q", ErrCommandBlocked, p)
		}
	}
	return nil
}

// normalize lowercases and collapses runs of whitespace so "RM   -RF /"
// cannot slip past "rm -rf /".
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
