package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads a YAML config file and parses it after expanding
// environment references. Tokens and secrets stay out of the file
// itself: ${TELEGRAM_BOT_TOKEN} pulls the value from the environment
// at load time, and ${VAR:-default} falls back when the variable is
// unset. An unresolved reference fails the load rather than silently
// configuring an empty credential.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// expandEnv substitutes every environment reference in the raw YAML.
// All unresolved names are collected into one error so the operator
// sees the full list at once instead of fixing them one restart at a
// time.
func expandEnv(raw []byte) ([]byte, error) {
	var missing []error

	expanded := envPattern.ReplaceAllFunc(raw, func(ref []byte) []byte {
		groups := envPattern.FindSubmatch(ref)
		name := string(groups[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if groups[2] != nil {
			return groups[2]
		}

		missing = append(missing, fmt.Errorf("unresolved variable: %s", name))
		return ref
	})

	return expanded, errors.Join(missing...)
}
