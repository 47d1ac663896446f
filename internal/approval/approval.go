// Package approval implements the operator confirmation flow: an agent
// blocks on a question, the operator answers over a channel, and the
// decision is relayed back. Unanswered requests are denied by default.
package approval

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Request is a single approval question raised by the agent.
type Request struct {
	// ID is a unique identifier for this request, "a-" plus 8 hex chars.
	ID string

	// TaskID links the request to the task being executed, when known.
	TaskID string

	// Content is the agent's question, verbatim.
	Content string

	// ChatID is where the request was announced, filled by the notifier.
	ChatID string

	// CreatedAt is when the agent raised the request.
	CreatedAt time.Time
}

// Response is the operator's decision on a request.
type Response struct {
	// Approved indicates whether the operator approved.
	Approved bool

	// DecidedBy names who decided: an operator handle, "policy" for
	// auto-decisions, or "timeout".
	DecidedBy string

	// Reason is an optional explanation for the decision.
	Reason string
}

// Notifier announces an approval request to the operator. Implementations
// provide channel-specific UX; announcing must not block on the
// operator's answer, which arrives separately through Manager.Resolve.
type Notifier interface {
	NotifyApproval(ctx context.Context, req Request) error
}

// NewID produces "a-" plus an 8-character hex string from 4 random bytes.
func NewID() (string, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("approval: crypto/rand unavailable: %w", err)
	}
	return "a-" + hex.EncodeToString(buf[:]), nil
}
