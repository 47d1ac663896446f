package approval

import (
	"context"
	"time"
)

// Outcome values recorded for resolved entries.
const (
	OutcomeApproved = "approved"
	OutcomeDenied   = "denied"
	OutcomeExpired  = "expired"
)

// OutcomeFromResponse maps an operator decision to a stored outcome.
func OutcomeFromResponse(resp Response) string {
	if resp.Approved {
		return OutcomeApproved
	}
	return OutcomeDenied
}

// Entry is one approval request as persisted, with its outcome once
// decided. Outcome is empty while the request is pending.
type Entry struct {
	ID         string
	TaskID     string
	Content    string
	ChatID     string
	CreatedAt  time.Time
	ResolvedAt time.Time
	Outcome    string
	DecidedBy  string
	Reason     string
}

// Store persists the approval trail. The Manager records best-effort:
// a storage failure never blocks a decision, it only costs history.
type Store interface {
	// Record inserts an entry. Policy decisions arrive already
	// resolved; operator-facing requests arrive pending.
	Record(ctx context.Context, e Entry) error

	// Resolve sets the outcome of a pending entry.
	Resolve(ctx context.Context, id string, resp Response, at time.Time) error

	// ExpireOlder marks pending entries created before the cutoff as
	// expired. Returns how many were swept. Pending rows normally
	// resolve in-process; rows older than the approval timeout are
	// leftovers from a previous run.
	ExpireOlder(ctx context.Context, cutoff time.Time) (int, error)

	// Recent returns the newest entries, resolved or not.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
