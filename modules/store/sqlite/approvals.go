package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/approval"
)

// approvalStore implements approval.Store backed by SQLite.
type approvalStore struct {
	db *sql.DB
}

const approvalColumns = "id, task_id, content, chat_id, created_at, resolved_at, outcome, decided_by, reason"

// Record inserts an approval entry. Policy decisions arrive already
// resolved; operator-facing requests arrive pending (empty outcome).
func (s *approvalStore) Record(ctx context.Context, e approval.Entry) error {
	resolvedAt := ""
	if !e.ResolvedAt.IsZero() {
		resolvedAt = formatTime(e.ResolvedAt)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals (`+approvalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, e.Content, e.ChatID,
		formatTime(e.CreatedAt), resolvedAt,
		e.Outcome, e.DecidedBy, e.Reason,
	)
	if err != nil {
		return fmt.Errorf("sqlite: record approval: %w", err)
	}

	return nil
}

// Resolve sets the outcome of a pending entry.
func (s *approvalStore) Resolve(ctx context.Context, id string, resp approval.Response, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE approvals
		SET outcome = ?, decided_by = ?, reason = ?, resolved_at = ?
		WHERE id = ? AND outcome = ''`,
		approval.OutcomeFromResponse(resp), resp.DecidedBy, resp.Reason,
		formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: resolve approval: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: approval %s not pending", id)
	}

	return nil
}

// ExpireOlder sweeps pending entries created before the cutoff. Live
// requests resolve in-process; anything still pending past the approval
// timeout is a leftover from a previous run.
func (s *approvalStore) ExpireOlder(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE approvals
		SET outcome = ?, decided_by = 'timeout', resolved_at = ?
		WHERE outcome = '' AND created_at < ?`,
		approval.OutcomeExpired, formatTime(time.Now().UTC()), formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: expire approvals: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}

	return int(n), nil
}

// Recent returns the newest entries, resolved or not.
func (s *approvalStore) Recent(ctx context.Context, limit int) ([]approval.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+approvalColumns+`
		FROM approvals
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent approvals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []approval.Entry
	for rows.Next() {
		e, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: recent approvals rows: %w", err)
	}

	return entries, nil
}

func scanApproval(sc scanner) (approval.Entry, error) {
	var (
		e          approval.Entry
		createdAt  string
		resolvedAt string
	)

	if err := sc.Scan(&e.ID, &e.TaskID, &e.Content, &e.ChatID,
		&createdAt, &resolvedAt, &e.Outcome, &e.DecidedBy, &e.Reason); err != nil {
		return e, fmt.Errorf("sqlite: scan approval: %w", err)
	}

	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return e, fmt.Errorf("sqlite: parse created_at %q: %w", createdAt, err)
	}
	if e.ResolvedAt, err = parseTime(resolvedAt); err != nil {
		return e, fmt.Errorf("sqlite: parse resolved_at %q: %w", resolvedAt, err)
	}

	return e, nil
}
