package channel

import (
	"strings"

	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// AllowList is the inbound gate's answer to "who may talk to this bot".
// The daemon takes orders from a public messenger, so the stance is deny
// by default: a nil or empty list lets no one through, and every sender
// has to be named either directly or through their group chat.
type AllowList struct {
	operators map[string]struct{}
	chats     map[string]struct{}
}

// NewAllowList builds the gate from the configured operator and group
// chat IDs. Entries are canonicalized once here so the per-message check
// stays a plain map hit.
func NewAllowList(users, groups []string) *AllowList {
	return &AllowList{
		operators: indexIDs(users),
		chats:     indexIDs(groups),
	}
}

func indexIDs(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[canonicalID(id)] = struct{}{}
	}
	return m
}

// IsAllowed reports whether msg may enter the pipeline: yes when the
// sender is a configured operator or the chat itself is allow-listed,
// no in every other case, the unconfigured one included.
func (a *AllowList) IsAllowed(msg message.InboundMessage) bool {
	if a.empty() {
		return false
	}
	if _, ok := a.operators[canonicalID(msg.Sender.ID)]; ok {
		return true
	}
	_, ok := a.chats[canonicalID(msg.Chat.ID)]
	return ok
}

func (a *AllowList) empty() bool {
	return a == nil || (len(a.operators) == 0 && len(a.chats) == 0)
}

// canonicalID trims and lowercases, so "@Alice " and "@alice" name the
// same account.
func canonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
