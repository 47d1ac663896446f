package config

import (
	"slices"
	"strings"

	"github.com/Everest18/claude-code-telegram-control/internal/core"
)

// namespaceRank orders module namespaces so providers load before their
// consumers: the store registers services the executors need, executors
// and the bridge register services the channels need, and the surfaces
// (gateway, cron, heartbeat) come last.
func namespaceRank(id string) int {
	switch core.ModuleID(id).Namespace() {
	case "store":
		return 0
	case "executor":
		return 1
	case "bridge":
		return 2
	case "channel":
		return 3
	default:
		return 4
	}
}

// Resolve returns the module IDs from the configuration in deterministic
// load order: grouped by namespace rank, alphabetical within a group.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if ra, rb := namespaceRank(a), namespaceRank(b); ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})
	return ids
}
