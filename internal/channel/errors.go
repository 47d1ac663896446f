package channel

import "errors"

var (
	// ErrNoChannel reports an outbound message addressed to a channel
	// ID the dispatcher has never seen.
	ErrNoChannel = errors.New("channel: unknown channel")

	// ErrDuplicateChannel reports a second Register under an ID that
	// is already taken.
	ErrDuplicateChannel = errors.New("channel: duplicate channel name")

	// ErrNoInbox reports an inbound update arriving before the router
	// attached its inbox callback.
	ErrNoInbox = errors.New("channel: inbox not set")

	// ErrDenied reports a sender outside the chat allow-list.
	ErrDenied = errors.New("channel: sender not allowed")
)
