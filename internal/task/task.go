// Package task defines the task model: descriptions submitted from a
// channel, validated, persisted, and handed to an executor. A task's
// lifecycle runs pending → dispatched → running → done/failed, with
// rejected as the operator veto path.
package task

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// State is the lifecycle state of a task.
type State string

// Task states.
const (
	StatePending    State = "pending"
	StateDispatched State = "dispatched"
	StateRunning    State = "running"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateRejected   State = "rejected"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateDispatched, StateRunning, StateDone, StateFailed, StateRejected:
		return true
	}
	return false
}

// Terminal reports whether a task in this state will never change again.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateRejected:
		return true
	}
	return false
}

// CanTransition reports whether a task may move from s to next.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next == StateDispatched || next == StateFailed || next == StateRejected
	case StateDispatched:
		return next == StateRunning || next == StateDone || next == StateFailed || next == StateRejected
	case StateRunning:
		return next == StateDone || next == StateFailed || next == StateRejected
	}
	return false
}

// ExecMode selects which executor runs a task.
type ExecMode string

// Execution modes. ModeAuto resolves to local when the agent bridge
// reports a live local session, cloud otherwise.
const (
	ModeLocal ExecMode = "local"
	ModeCloud ExecMode = "cloud"
	ModeAuto  ExecMode = "auto"
)

// Valid reports whether m is a known mode.
func (m ExecMode) Valid() bool {
	return m == ModeLocal || m == ModeCloud || m == ModeAuto
}

// Task is a unit of work submitted through a channel.
type Task struct {
	// ID is the stable identifier, "t-" plus 8 hex chars.
	ID string `json:"id"`

	// Description is the sanitized task text.
	Description string `json:"description"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// Mode records which executor the task was (or will be) routed to.
	Mode ExecMode `json:"mode,omitempty"`

	// Channel and ChatID identify where the task came from, so results
	// can be delivered back.
	Channel string `json:"channel,omitempty"`
	ChatID  string `json:"chat_id,omitempty"`

	// MessageID is the channel message that created the task, used for
	// threading replies.
	MessageID string `json:"message_id,omitempty"`

	// FileName is the on-disk task file name for locally executed tasks.
	FileName string `json:"file_name,omitempty"`

	// Result holds the executor's final report for done tasks, or the
	// failure detail for failed ones.
	Result string `json:"result,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a pending task with a fresh ID and timestamps.
func New(description string, now time.Time) (*Task, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}
	return &Task{
		ID:          id,
		Description: description,
		State:       StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// generateID produces "t-" plus an 8-character hex string from 4 random
// bytes. It uses crypto/rand for uniqueness without external dependencies.
func generateID() (string, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("task: crypto/rand unavailable: %w", err)
	}
	return "t-" + hex.EncodeToString(buf[:]), nil
}
