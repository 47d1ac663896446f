// Package router turns inbound chat messages into command executions.
// It owns the session table, the per-chat lanes that keep one chat's
// commands in order, and the replies that go back out.
package router

import "errors"

var (
	// ErrInboxFull means the bounded inbox rejected a message. The
	// channel should tell the chat to slow down rather than queue
	// unboundedly.
	ErrInboxFull = errors.New("router: inbox full, message dropped")

	// ErrRouterStopped is returned by Submit once Stop has run.
	ErrRouterStopped = errors.New("router: stopped")

	// ErrNoCommands rejects construction without a command registry;
	// a router with nothing to dispatch to is a misconfiguration.
	ErrNoCommands = errors.New("router: no command registry configured")

	// ErrNoResponseSender rejects construction without a way to reply.
	ErrNoResponseSender = errors.New("router: no response sender configured")
)
