package command

import (
	"context"
	"errors"
	"strings"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// Decision replies, kept word-for-word from the original bot.
const (
	replyApproved   = "✅ APPROVED - Claude Code will continue"
	replyRejected   = "❌ REJECTED - Claude Code will stop"
	replyNoApproval = "✅ No pending approvals"
)

// ApproveHandler implements /approve [id].
type ApproveHandler struct {
	approvals *approval.Manager
}

// Compile-time interface guard.
var _ Handler = (*ApproveHandler)(nil)

// NewApproveHandler creates the /approve handler.
func NewApproveHandler(m *approval.Manager) *ApproveHandler {
	return &ApproveHandler{approvals: m}
}

func (h *ApproveHandler) Name() string        { return "approve" }
func (h *ApproveHandler) Description() string { return "Approve action" }

// Execute resolves the pending approval in the agent's favor. A bare
// /approve targets the outstanding request; an explicit id must match it.
func (h *ApproveHandler) Execute(_ context.Context, req Request) (Response, error) {
	id, _ := splitApprovalArgs(req.Args)

	_, err := h.approvals.Resolve(id, approval.Response{
		Approved:  true,
		DecidedBy: decidedBy(req.Message.Sender),
	})
	if err != nil {
		return Response{Text: resolveReply(err, id)}, nil
	}
	return Response{Text: replyApproved}, nil
}

// RejectHandler implements /reject [id] [reason].
type RejectHandler struct {
	approvals *approval.Manager
}

// Compile-time interface guard.
var _ Handler = (*RejectHandler)(nil)

// NewRejectHandler creates the /reject handler.
func NewRejectHandler(m *approval.Manager) *RejectHandler {
	return &RejectHandler{approvals: m}
}

func (h *RejectHandler) Name() string        { return "reject" }
func (h *RejectHandler) Description() string { return "Reject action" }

// Execute resolves the pending approval as denied, with an optional
// reason relayed to the agent.
func (h *RejectHandler) Execute(_ context.Context, req Request) (Response, error) {
	id, reason := splitApprovalArgs(req.Args)

	_, err := h.approvals.Resolve(id, approval.Response{
		Approved:  false,
		DecidedBy: decidedBy(req.Message.Sender),
		Reason:    reason,
	})
	if err != nil {
		return Response{Text: resolveReply(err, id)}, nil
	}
	return Response{Text: replyRejected}, nil
}

// splitApprovalArgs separates an optional leading approval id from the
// rest of the argument text. Approval ids carry the "a-" prefix, so a
// reason that happens to start the args is never mistaken for one.
func splitApprovalArgs(args string) (id, rest string) {
	args = strings.TrimSpace(args)
	if args == "" {
		return "", ""
	}
	first, remainder, _ := strings.Cut(args, " ")
	if strings.HasPrefix(first, "a-") {
		return first, strings.TrimSpace(remainder)
	}
	return "", args
}

// resolveReply maps Resolve errors to operator replies.
func resolveReply(err error, id string) string {
	switch {
	case errors.Is(err, approval.ErrNoPending):
		return replyNoApproval
	case errors.Is(err, approval.ErrUnknownID):
		return "❌ No pending approval with ID " + id
	default:
		return replyNoApproval
	}
}

// decidedBy names the operator for the audit trail: the username when
// the platform provides one, the raw sender id otherwise.
func decidedBy(s message.Sender) string {
	if s.Username != "" {
		return s.Username
	}
	return s.ID
}
