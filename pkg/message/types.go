// Package message defines the platform-agnostic data contract between
// channels and the command router. It covers text, attachments, and the
// command syntax used to drive the agent remotely.
package message

// ChatType classifies how many participants a conversation has and
// who can post to it.
type ChatType string

const (
	// ChatDM is a one-to-one conversation with the operator.
	ChatDM ChatType = "dm"
	// ChatGroup is a multi-participant conversation.
	ChatGroup ChatType = "group"
	// ChatBroadcast is a one-to-many channel the bot can post into.
	ChatBroadcast ChatType = "broadcast"
)

// BlockType names which ContentBlock fields are meaningful.
type BlockType string

// Block types the router and stores understand.
const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
	BlockFile  BlockType = "file"
	BlockRaw   BlockType = "raw"
)

// Sender identifies the author of an inbound message. IDs are
// channel-native identifiers serialized as strings.
type Sender struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	IsBot       bool   `json:"is_bot,omitempty"`
}

// Chat locates the conversation a message was sent in.
type Chat struct {
	ID    string   `json:"id"`
	Type  ChatType `json:"type"`
	Title string   `json:"title,omitempty"`
}

// IsGroup reports whether the chat has multiple participants.
func (c Chat) IsGroup() bool {
	return c.Type == ChatGroup
}

// IsDirectMessage reports whether the chat is a private one-to-one
// conversation with the bot.
func (c Chat) IsDirectMessage() bool {
	return c.Type == ChatDM
}
