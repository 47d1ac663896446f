package router

import (
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/task"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// SessionKey names one conversation. For a Telegram DM that is the chat
// alone; in forum groups the topic arrives as a thread ID, and each
// topic gets its own session.
type SessionKey struct {
	Channel  string
	ChatID   string
	ThreadID string
}

// SessionKeyFromMessage derives the key a message belongs to.
func SessionKeyFromMessage(msg message.InboundMessage) SessionKey {
	return SessionKey{
		Channel:  msg.Channel,
		ChatID:   msg.Chat.ID,
		ThreadID: msg.ThreadID,
	}
}

// Session is the per-chat state the command handlers work against. The
// only mutable piece is the execution mode override set by /mode; it is
// read and written under the chat's lane, so the fields carry no lock.
type Session struct {
	ID           string
	Key          SessionKey
	ExecMode     task.ExecMode
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// SessionStore manages session lifecycle. Implementations must be safe
// for concurrent use; the worker pool hits them from every lane at once.
type SessionStore interface {
	// GetOrCreate returns the session for key, creating it on first
	// contact. The bool reports whether it was just created.
	GetOrCreate(key SessionKey) (*Session, bool)

	// Get returns the session for key, or nil when the chat has none.
	Get(key SessionKey) *Session

	// Touch refreshes LastActiveAt so the pruner keeps the session.
	Touch(key SessionKey)

	// Delete drops the session for key.
	Delete(key SessionKey)

	// Prune drops sessions idle longer than maxIdle and reports how
	// many went.
	Prune(maxIdle time.Duration) int

	// Len reports the number of live sessions.
	Len() int

	// Range visits every session until fn returns false.
	Range(fn func(SessionKey, *Session) bool)
}
