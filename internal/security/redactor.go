package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is what a secret becomes wherever one is scrubbed.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern flags map keys whose values are presumed sensitive,
// whatever the value looks like.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|key|api_key|credential)`)

// Redactor scrubs secrets out of strings and config maps. It combines
// shape-based matching (regexes for well-known token formats) with exact
// matching (the literal values the daemon loaded at startup), because
// neither alone is enough: regexes miss home-grown secrets, literals miss
// tokens the daemon never saw. All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a Redactor armed with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddPattern registers an extra token-shape regex.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral registers an exact secret value to scrub on sight. Empty
// strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// SyncCredentials swaps the literal list for the store's current values.
// Call it whenever credentials change, config reload included.
func (r *Redactor) SyncCredentials(store *CredentialStore) {
	values := store.Values()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = values
}

// snapshot returns the current rule set without holding the lock during
// the (potentially slow) matching that follows.
func (r *Redactor) snapshot() ([]*regexp.Regexp, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.patterns, r.literals
}

// Redact returns s with every known secret replaced by RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	patterns, literals := r.snapshot()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	return s
}

// RedactMap scrubs a decoded config tree in place. Values under
// secret-looking keys are blanked outright; everything else is run
// through Redact. The admin config endpoint serves the result.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if s, ok := v.(string); ok && s != "" && secretKeyPattern.MatchString(k) {
			m[k] = RedactPlaceholder
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			r.RedactMap(val)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					r.RedactMap(sub)
				}
			}
		case string:
			if scrubbed := r.Redact(val); scrubbed != val {
				m[k] = scrubbed
			}
		}
	}
}

// DefaultPatterns compiles the token shapes the daemon is likely to
// handle or log: its own bot token first, then the ecosystem around it.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Telegram bot token: numeric bot ID, colon, secret part.
		regexp.MustCompile(`\d{6,}:[A-Za-z0-9_-]{30,}`),
		// Anthropic API key. Shares the sk- prefix with OpenAI, so the
		// longer shape runs first.
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
		// OpenAI-style sk- key.
		regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
		// GitHub tokens, classic and fine-grained.
		regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
		// AWS access key ID.
		regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		// Slack bot and user tokens.
		regexp.MustCompile(`xoxb-[0-9]+-[a-zA-Z0-9]+`),
		regexp.MustCompile(`xoxp-[0-9]+-[a-zA-Z0-9]+`),
	}
}
