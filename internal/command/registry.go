package command

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry holds the registered command handlers. It is instance-based
// (not global) for better testability.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler under its name. It returns ErrEmptyName for a
// blank name and ErrDuplicateCommand when the name is taken.
func (r *Registry) Register(h Handler) error {
	name := strings.TrimSpace(h.Name())
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	r.handlers[name] = h
	return nil
}

// Get returns the handler for the given name, or ErrUnknownCommand.
func (r *Registry) Get(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return h, nil
}

// Names returns all registered command names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Handlers returns all registered handlers sorted by name, for /help.
func (r *Registry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	slices.SortFunc(handlers, func(a, b Handler) int {
		return cmp.Compare(a.Name(), b.Name())
	})
	return handlers
}
