package message

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"
)

// InboundMessage represents a message received from a channel.
type InboundMessage struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Channel   string          `json:"channel"`
	Sender    Sender          `json:"sender"`
	Chat      Chat            `json:"chat"`
	ThreadID  string          `json:"thread_id,omitempty"`
	ReplyToID string          `json:"reply_to_id,omitempty"`
	Blocks    []ContentBlock  `json:"blocks"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// TextContent returns the concatenated text of all text blocks.
func (m *InboundMessage) TextContent() string {
	return textContent(m.Blocks)
}

// HasAttachment reports whether the message contains file or image blocks.
func (m *InboundMessage) HasAttachment() bool {
	return hasAttachment(m.Blocks)
}

// IsGroup reports whether the message was sent in a group chat.
func (m *InboundMessage) IsGroup() bool {
	return m.Chat.IsGroup()
}

// IsDirectMessage reports whether the message is a direct message.
func (m *InboundMessage) IsDirectMessage() bool {
	return m.Chat.IsDirectMessage()
}

// IsCommand reports whether the message text is a bot command
// (first text block starts with "/" followed by a command name).
func (m *InboundMessage) IsCommand() bool {
	name, _ := m.Command()
	return name != ""
}

// Command splits the message text into a command name and its argument
// string. A trailing "@botname" suffix on the command is stripped, so
// "/task@mybot fix the build" yields ("task", "fix the build"). Returns
// ("", "") when the message is not a command.
func (m *InboundMessage) Command() (name, args string) {
	return ParseCommand(m.TextContent())
}

// ParseCommand extracts a command name and argument string from raw text.
// Command names are lowercase alphanumerics and underscores; anything else
// after the slash disqualifies the text as a command.
func ParseCommand(text string) (name, args string) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '/' {
		return "", ""
	}

	rest := text[1:]
	cut := len(rest)
	for i, r := range rest {
		if unicode.IsSpace(r) {
			cut = i
			break
		}
	}

	name = rest[:cut]
	args = strings.TrimSpace(rest[cut:])

	// Strip an addressed-bot suffix: "/task@mybot".
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}

	name = strings.ToLower(name)
	for _, r := range name {
		if !isCommandRune(r) {
			return "", ""
		}
	}
	if name == "" {
		return "", ""
	}
	return name, args
}

func isCommandRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}
