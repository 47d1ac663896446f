package security

import (
	"os"
	"strings"
)

// Environment keys matching these rules never reach a child process.
// The daemon's own secrets (bot token, API keys) sit in the prefix
// list; the suffix rules catch the long tail of credential-shaped
// variables without enumerating every vendor.
var (
	sensitiveKeyPrefixes = []string{
		"TELEGRAM_",
		"ANTHROPIC_",
		"AWS_SECRET",
		"AWS_SESSION",
	}
	sensitiveKeySuffixes = []string{
		"_TOKEN",
		"_SECRET",
		"_PASSWORD",
		"_API_KEY",
		"_ACCESS_KEY",
	}
	// Exact names that carry credentials without a telltale affix.
	sensitiveKeyExact = map[string]struct{}{
		"DATABASE_URL": {},
	}
)

// minScrubLength keeps short registered values ("true", "1") from
// being scrubbed out of unrelated variables.
const minScrubLength = 8

// SanitizedEnv returns os.Environ() with credential-bearing variables
// dropped. When store is non-nil, values registered in it are also
// scrubbed out of the surviving entries, so a secret smuggled into an
// innocuous variable still never reaches the child.
func SanitizedEnv(store *CredentialStore) []string {
	var secrets []string
	if store != nil {
		for _, v := range store.Values() {
			if len(v) >= minScrubLength {
				secrets = append(secrets, v)
			}
		}
	}

	env := os.Environ()
	kept := make([]string, 0, len(env))
	for _, entry := range env {
		key, _, ok := strings.Cut(entry, "=")
		if !ok || sensitiveKey(key) {
			continue
		}
		for _, secret := range secrets {
			if strings.Contains(entry, secret) {
				entry = strings.ReplaceAll(entry, secret, RedactPlaceholder)
			}
		}
		kept = append(kept, entry)
	}
	return kept
}

func sensitiveKey(name string) bool {
	upper := strings.ToUpper(name)
	if _, ok := sensitiveKeyExact[upper]; ok {
		return true
	}
	for _, p := range sensitiveKeyPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	for _, s := range sensitiveKeySuffixes {
		if strings.HasSuffix(upper, s) {
			return true
		}
	}
	return false
}
