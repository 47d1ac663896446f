// Package telegram implements the Telegram channel module, the operator's
// surface onto the daemon.
//
// It bridges the Bot API client from internal/telegram into the
// platform-agnostic message model, supporting:
//
//   - Inbound update conversion (text, photo, document, commands)
//   - Outbound dispatch with MarkdownV2 formatting, plain-text fallback on
//     parse errors, and 4096-char chunking via channel.SplitMessage
//   - Two delivery modes: long-polling (default) and webhook
//   - Allow-list enforcement before the inbox; denials are audited and
//     counted, never answered
//   - Owner-chat notifications for approval prompts and agent transitions
//   - Typing indicators via sendChatAction
//
// The module registers itself as "channel.telegram" via init() and
// implements the full lifecycle: Configure → Provision → Validate →
// Start → Stop, plus Reload for live allow-list changes.
package telegram
