// Package crontest provides test doubles for the cron package's store
// and service interfaces.
package crontest

import (
	"context"
	"sync/atomic"
	"time"
)

// MockTaskPruner is a test double for cron.TaskPruner.
type MockTaskPruner struct {
	PruneFunc  func(olderThan time.Time) (int, error)
	PruneCalls atomic.Int32
}

// Prune implements cron.TaskPruner.
func (m *MockTaskPruner) Prune(_ context.Context, olderThan time.Time) (int, error) {
	m.PruneCalls.Add(1)
	if m.PruneFunc != nil {
		return m.PruneFunc(olderThan)
	}
	return 0, nil
}

// MockApprovalSweeper is a test double for cron.ApprovalSweeper.
type MockApprovalSweeper struct {
	ExpireFunc  func(cutoff time.Time) (int, error)
	ExpireCalls atomic.Int32
}

// ExpireOlder implements cron.ApprovalSweeper.
func (m *MockApprovalSweeper) ExpireOlder(_ context.Context, cutoff time.Time) (int, error) {
	m.ExpireCalls.Add(1)
	if m.ExpireFunc != nil {
		return m.ExpireFunc(cutoff)
	}
	return 0, nil
}
