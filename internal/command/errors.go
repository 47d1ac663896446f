package command

import "errors"

// Sentinel errors for command registration and lookup.
var (
	// ErrEmptyName indicates a handler with a blank name.
	ErrEmptyName = errors.New("command: empty command name")

	// ErrDuplicateCommand indicates the name is already registered.
	ErrDuplicateCommand = errors.New("command: duplicate command")

	// ErrUnknownCommand indicates no handler is registered for the name.
	ErrUnknownCommand = errors.New("command: unknown command")
)
