package approval

import "errors"

var (
	// ErrAlreadyPending is returned when a request is raised while another
	// is still waiting for a decision. The agent-side handshake is a
	// single file, so at most one approval can be in flight.
	ErrAlreadyPending = errors.New("approval already pending")

	// ErrNoPending is returned when a decision arrives with nothing to
	// decide on.
	ErrNoPending = errors.New("no approval pending")

	// ErrUnknownID is returned when a decision names an approval ID that
	// is not the pending one.
	ErrUnknownID = errors.New("unknown approval id")

	// ErrTimeout is returned when an approval request times out and is
	// denied by default.
	ErrTimeout = errors.New("approval request timed out")

	// ErrPatternInBothLists is returned when a policy pattern appears in
	// both the allow and deny lists.
	ErrPatternInBothLists = errors.New("pattern appears in both allow and deny lists")
)
