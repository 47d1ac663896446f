package core

import "strings"

// ModuleID is a namespaced module identifier, e.g. "channel.telegram" or
// "executor.local". The namespace groups related modules; the name
// identifies the concrete implementation.
type ModuleID string

// Namespace returns the portion before the last dot, or "" when the ID
// has no namespace (e.g. "gateway").
func (id ModuleID) Namespace() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return ""
}

// Name returns the portion after the last dot, or the whole ID when it
// has no namespace.
func (id ModuleID) Name() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ModuleInfo describes a registered module: its identity and a factory
// producing fresh instances.
type ModuleInfo struct {
	// ID is the unique, namespaced module identifier.
	ID ModuleID

	// New returns a new, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface every module implements. Lifecycle
// participation is opt-in through the Configurable, Provisioner,
// Validator, Starter, Stopper, and Reloader interfaces.
type Module interface {
	ModuleInfo() ModuleInfo
}
