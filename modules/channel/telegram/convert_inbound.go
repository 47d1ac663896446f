package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	tg "github.com/Everest18/claude-code-telegram-control/internal/telegram"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// errAddressedElsewhere marks a command explicitly addressed to a
// different bot ("/task@other_bot"). Such updates are skipped, not denied.
var errAddressedElsewhere = errors.New("telegram: command addressed to another bot")

// fileIDRef returns a reference URI for a Telegram file_id. It is NOT a
// download URL; resolveMediaURLs turns it into one via getFile before the
// message reaches the inbox.
func fileIDRef(fileID string) string {
	return "tg://file_id/" + fileID
}

// convertInbound transforms a Telegram Update into a platform-agnostic
// InboundMessage.
func convertInbound(update *tg.Update, botUsername, channelName string) (message.InboundMessage, error) {
	msg := extractMessage(update)
	if msg == nil {
		return message.InboundMessage{}, fmt.Errorf("telegram: update %d contains no message", update.UpdateID)
	}

	if target := commandTarget(msg); target != "" && !strings.EqualFold(target, botUsername) {
		return message.InboundMessage{}, errAddressedElsewhere
	}

	raw, err := json.Marshal(update)
	if err != nil {
		return message.InboundMessage{}, fmt.Errorf("telegram: marshal update: %w", err)
	}

	inbound := message.InboundMessage{
		ID:        strconv.Itoa(msg.MessageID),
		Timestamp: time.Unix(int64(msg.Date), 0),
		Channel:   channelName,
		Sender:    convertSender(msg.From),
		Chat:      convertChat(msg.Chat),
		Blocks:    convertBlocks(msg),
		Raw:       raw,
	}
	if msg.MessageThreadID != 0 {
		inbound.ThreadID = strconv.Itoa(msg.MessageThreadID)
	}
	if msg.ReplyToMessage != nil {
		inbound.ReplyToID = strconv.Itoa(msg.ReplyToMessage.MessageID)
	}
	return inbound, nil
}

// extractMessage returns the actual message from an Update, checking
// Message, EditedMessage, and ChannelPost in order.
func extractMessage(update *tg.Update) *tg.Message {
	switch {
	case update.Message != nil:
		return update.Message
	case update.EditedMessage != nil:
		return update.EditedMessage
	default:
		return update.ChannelPost
	}
}

// convertSender maps a Telegram User to a platform-agnostic Sender.
func convertSender(user *tg.User) message.Sender {
	if user == nil {
		return message.Sender{}
	}
	return message.Sender{
		ID:          strconv.FormatInt(user.ID, 10),
		Username:    user.Username,
		DisplayName: strings.TrimSpace(user.FirstName + " " + user.LastName),
		IsBot:       user.IsBot,
	}
}

// convertChat maps a Telegram Chat to a platform-agnostic Chat.
func convertChat(chat tg.Chat) message.Chat {
	return message.Chat{
		ID:    strconv.FormatInt(chat.ID, 10),
		Type:  mapChatType(chat.Type),
		Title: chat.Title,
	}
}

var chatTypes = map[string]message.ChatType{
	"private":    message.ChatDM,
	"group":      message.ChatGroup,
	"supergroup": message.ChatGroup,
	"channel":    message.ChatBroadcast,
}

// mapChatType converts a Telegram chat type string to message.ChatType.
// Unknown types route like groups: visible but command-gated.
func mapChatType(tgType string) message.ChatType {
	if t, ok := chatTypes[tgType]; ok {
		return t
	}
	return message.ChatGroup
}

// convertBlocks builds content blocks from a Telegram message. Media URLs
// use a tg://file_id/ reference resolved lazily via getFile.
func convertBlocks(msg *tg.Message) []message.ContentBlock {
	var blocks []message.ContentBlock
	if media, ok := mediaBlock(msg); ok {
		blocks = append(blocks, media)
	}

	// The caption becomes a text block after the media block, so command
	// parsing sees "/task fix the tests" whether it came as text or as a
	// caption on an attached file.
	if msg.Caption != "" {
		blocks = append(blocks, message.NewTextBlock(msg.Caption))
	}
	if len(blocks) == 0 && msg.Text != "" {
		blocks = append(blocks, message.NewTextBlock(msg.Text))
	}
	return blocks
}

// mediaBlock returns the block for the message's attachment, if any.
func mediaBlock(msg *tg.Message) (message.ContentBlock, bool) {
	switch {
	case len(msg.Photo) > 0:
		// Telegram orders sizes smallest to largest.
		largest := msg.Photo[len(msg.Photo)-1]
		return message.NewImageBlock(fileIDRef(largest.FileID), ""), true
	case msg.Document != nil:
		d := msg.Document
		return message.NewFileBlock(fileIDRef(d.FileID), d.MIMEType, d.FileName), true
	}
	return message.ContentBlock{}, false
}

// commandTarget returns the "@bot" suffix of a leading command, without
// the "@". It prefers the bot_command entity (offsets are UTF-16 code
// units), falling back to a plain scan when entity data is absent.
// Empty means the message is not a command or the command is unaddressed.
func commandTarget(msg *tg.Message) string {
	text := msg.Text
	entities := msg.Entities
	if text == "" {
		text = msg.Caption
		entities = msg.CaptionEntities
	}

	for _, ent := range entities {
		if ent.Type != "bot_command" || ent.Offset != 0 {
			continue
		}
		cmd := entityText(text, ent.Offset, ent.Length)
		if at := strings.IndexByte(cmd, '@'); at >= 0 {
			return cmd[at+1:]
		}
		return ""
	}

	if strings.HasPrefix(text, "/") {
		first, _, _ := strings.Cut(text, " ")
		if at := strings.IndexByte(first, '@'); at >= 0 {
			return first[at+1:]
		}
	}
	return ""
}

// entityText extracts a substring using UTF-16 offsets, which is what
// Telegram uses for entity offsets and lengths. Non-BMP characters
// (emoji) occupy two code units, so byte slicing would misalign.
func entityText(text string, offset, length int) string {
	encoded := utf16.Encode([]rune(text))
	if offset >= len(encoded) {
		return ""
	}
	end := min(offset+length, len(encoded))
	return string(utf16.Decode(encoded[offset:end]))
}
