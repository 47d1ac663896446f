package router

import (
	"slices"

	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// GroupPolicyMode selects how chatty the daemon is in group chats.
type GroupPolicyMode string

const (
	// GroupPolicyCommandsOnly reacts to slash commands and nothing else.
	// "/task@ccontrol_bot fix the build" counts; the command parser
	// strips the @-suffix before matching.
	GroupPolicyCommandsOnly GroupPolicyMode = "commands_only"
	// GroupPolicyAllowAll feeds every group message through the pipeline.
	GroupPolicyAllowAll GroupPolicyMode = "allow_all"
)

// GroupPolicy decides which group messages reach the command pipeline.
// DMs bypass it entirely: anyone who cleared the channel allowlist can
// always talk to the daemon in private.
type GroupPolicy struct {
	Mode      GroupPolicyMode
	Allowlist []string
	Denylist  []string
}

// ShouldProcess reports whether the message deserves pipeline time.
func (p GroupPolicy) ShouldProcess(msg message.InboundMessage) bool {
	if msg.IsDirectMessage() {
		return true
	}
	if slices.Contains(p.Denylist, msg.Sender.ID) {
		return false
	}
	return p.allowsInGroup(msg)
}

// allowsInGroup applies the mode to a group message from a sender the
// denylist already cleared. An unset or unknown mode drops everything;
// a misconfigured daemon should go quiet, not talkative.
func (p GroupPolicy) allowsInGroup(msg message.InboundMessage) bool {
	switch p.Mode {
	case GroupPolicyAllowAll:
		return true
	case GroupPolicyCommandsOnly:
		return msg.IsCommand() || slices.Contains(p.Allowlist, msg.Sender.ID)
	default:
		return false
	}
}
