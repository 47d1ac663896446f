package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// defaultRegistry is the process-wide module catalog, filled by the
// modules' init functions via their blank imports in main.
var defaultRegistry = newRegistry()

type registry struct {
	mu   sync.RWMutex
	byID map[string]ModuleInfo
}

func newRegistry() *registry {
	return &registry{byID: make(map[string]ModuleInfo)}
}

func (r *registry) add(info ModuleInfo) {
	if info.ID == "" {
		panic("module ID must not be empty")
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := string(info.ID)
	if _, taken := r.byID[id]; taken {
		panic(fmt.Sprintf("module already registered: %s", id))
	}
	r.byID[id] = info
}

func (r *registry) get(id string) (ModuleInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byID[id]
	return info, ok
}

// list returns the matching modules sorted by ID. A nil match selects
// everything.
func (r *registry) list(match func(id string) bool) []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []ModuleInfo
	for id, info := range r.byID {
		if match == nil || match(id) {
			result = append(result, info)
		}
	}
	slices.SortFunc(result, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// RegisterModule puts a module in the catalog under its ModuleInfo ID.
// It panics on a duplicate or malformed registration: both are build
// mistakes, and init time is the right moment to hear about them.
func RegisterModule(instance Module) {
	defaultRegistry.add(instance.ModuleInfo())
}

// GetModule looks up one module by its full ID, e.g. "executor.local".
func GetModule(id string) (ModuleInfo, bool) {
	return defaultRegistry.get(id)
}

// GetModules returns the whole catalog sorted by ID.
func GetModules() []ModuleInfo {
	return defaultRegistry.list(nil)
}

// GetModulesByNamespace returns the modules under one namespace prefix:
// "executor" matches "executor.local" and "executor.cloud", but not an
// ID that merely starts with the same letters.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	prefix := namespace + "."
	return defaultRegistry.list(func(id string) bool {
		return strings.HasPrefix(id, prefix)
	})
}

// resetRegistry clears the catalog between registry tests.
func resetRegistry() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.byID = make(map[string]ModuleInfo)
}
