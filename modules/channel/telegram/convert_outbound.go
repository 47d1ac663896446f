package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Everest18/claude-code-telegram-control/internal/channel"
	tg "github.com/Everest18/claude-code-telegram-control/internal/telegram"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// sendOutbound sends an OutboundMessage through the Bot API. Messages
// longer than the configured limit are split first; each chunk's blocks
// are then dispatched by type.
func (t *Telegram) sendOutbound(ctx context.Context, msg message.OutboundMessage) error {
	chunks := channel.SplitMessage(msg, channel.ChunkConfig{
		MaxLength:      t.config.MaxMessageLength,
		PreserveBlocks: true,
	})

	chatID, err := strconv.ParseInt(msg.Chat.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", msg.Chat.ID, err)
	}

	for _, chunk := range chunks {
		if err := t.sendChunk(ctx, chunk, chatID); err != nil {
			return err
		}
	}

	return nil
}

// sendChunk dispatches a single chunk's blocks to the matching Bot API
// methods. Fail-fast: if any block send fails, remaining blocks are
// skipped so partial delivery is never reported as success.
func (t *Telegram) sendChunk(ctx context.Context, chunk message.OutboundMessage, chatID int64) error {
	threadID := parseOptionalInt(chunk.ThreadID, t.logger)
	replyToID := parseOptionalInt(chunk.ReplyToID, t.logger)
	parseMode := resolveParseMode(chunk.Hints)
	disablePreview := false
	disableNotification := false

	if chunk.Hints != nil {
		disablePreview = chunk.Hints.DisablePreview
		disableNotification = chunk.Hints.DisableNotification
	}

	for _, block := range chunk.Blocks {
		var err error

		switch block.Type {
		case message.BlockText:
			raw := block.Text
			text, pm := formatText(raw, parseMode)
			_, err = t.sendText(ctx, tg.SendMessageRequest{
				ChatID:                chatID,
				Text:                  text,
				ParseMode:             pm,
				MessageThreadID:       threadID,
				ReplyToMessageID:      replyToID,
				DisableWebPagePreview: disablePreview,
				DisableNotification:   disableNotification,
			}, raw)

		case message.BlockImage:
			caption, pm := formatCaption(block.Caption, parseMode)
			_, err = t.client.SendPhoto(ctx, tg.SendPhotoRequest{
				ChatID:              chatID,
				Photo:               block.URL,
				Caption:             caption,
				ParseMode:           pm,
				MessageThreadID:     threadID,
				ReplyToMessageID:    replyToID,
				DisableNotification: disableNotification,
			})

		case message.BlockFile:
			caption, pm := formatCaption(block.Caption, parseMode)
			_, err = t.client.SendDocument(ctx, tg.SendDocumentRequest{
				ChatID:              chatID,
				Document:            block.URL,
				Caption:             caption,
				ParseMode:           pm,
				MessageThreadID:     threadID,
				ReplyToMessageID:    replyToID,
				DisableNotification: disableNotification,
			})

		default:
			// BlockRaw and anything newer have no Telegram rendering.
			continue
		}

		if err != nil {
			return fmt.Errorf("telegram: send %s block: %w", block.Type, err)
		}
	}

	return nil
}

// sendText sends a text message, falling back to plain text when the API
// rejects the MarkdownV2 entities. Agent output regularly contains
// underscores and brackets that survive formatting but still upset the
// parser; losing the styling beats losing the message.
func (t *Telegram) sendText(ctx context.Context, req tg.SendMessageRequest, raw string) (*tg.Message, error) {
	msg, err := t.client.SendMessage(ctx, req)
	if err != nil && req.ParseMode == "MarkdownV2" && isParseError(err) {
		t.logger.Debug("markdown rejected, resending as plain text", "error", err)
		req.Text = raw
		req.ParseMode = ""
		return t.client.SendMessage(ctx, req)
	}
	return msg, err
}

// formatText applies MarkdownV2 formatting unless the hints requested an
// explicit parse mode.
func formatText(text, parseMode string) (string, string) {
	if parseMode != "" {
		return text, parseMode
	}
	return FormatMarkdownV2(text), "MarkdownV2"
}

// formatCaption is formatText for captions, which may be empty.
func formatCaption(caption, parseMode string) (string, string) {
	if caption == "" {
		return "", parseMode
	}
	return formatText(caption, parseMode)
}

// isParseError reports whether the API rejected the payload because it
// could not parse the formatting entities.
func isParseError(err error) bool {
	var apiErr *tg.APIError
	return errors.As(err, &apiErr) && apiErr.Code == 400 &&
		strings.Contains(apiErr.Description, "can't parse entities")
}

// resolveParseMode returns the parse mode from hints. Empty means the
// channel formats the text itself.
func resolveParseMode(hints *message.OutboundHints) string {
	if hints != nil && hints.ParseMode != "" {
		return hints.ParseMode
	}
	return ""
}

// parseOptionalInt converts a string to int, returning 0 for empty
// strings. Logs a warning if the string is non-empty but not an integer.
func parseOptionalInt(s string, logger *slog.Logger) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Warn("parseOptionalInt: invalid integer value",
			"value", s,
			"error", err,
		)
		return 0
	}
	return v
}
