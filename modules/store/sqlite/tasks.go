package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/task"
)

// taskStore implements task.Store backed by SQLite.
type taskStore struct {
	db *sql.DB
}

const taskColumns = "id, description, state, mode, channel, chat_id, message_id, file_name, result, created_at, updated_at"

// Create persists a new task. The ID must be unique.
func (s *taskStore) Create(ctx context.Context, t *task.Task) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Description, string(t.State), string(t.Mode),
		t.Channel, t.ChatID, t.MessageID, t.FileName, t.Result,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create task: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task: duplicate ID %s", t.ID)
	}

	return nil
}

// Get returns the task with the given ID, or task.ErrNotFound.
func (s *taskStore) Get(ctx context.Context, id string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// List returns tasks matching the filter, newest first.
func (s *taskStore) List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(filter.State))
	}
	if filter.ChatID != "" {
		where = append(where, "chat_id = ?")
		args = append(args, filter.ChatID)
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list tasks rows: %w", err)
	}

	return tasks, nil
}

// Transition moves a task through the state machine. The read and the
// update share a transaction so concurrent transitions serialize.
func (s *taskStore) Transition(ctx context.Context, id string, next task.State, detail string) (*task.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	if err := tx.QueryRowContext(ctx, "SELECT state FROM tasks WHERE id = ?", id).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: read task state: %w", err)
	}

	from := task.State(current)
	if !from.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s → %s", task.ErrInvalidTransition, from, next)
	}

	now := formatTime(time.Now().UTC())
	if detail != "" && next.Terminal() {
		_, err = tx.ExecContext(ctx,
			"UPDATE tasks SET state = ?, result = ?, updated_at = ? WHERE id = ?",
			string(next), detail, now, id,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE tasks SET state = ?, updated_at = ? WHERE id = ?",
			string(next), now, id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: update task state: %w", err)
	}

	t, err := scanTask(tx.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit transition: %w", err)
	}

	return t, nil
}

// CountByState returns the number of tasks in each state.
func (s *taskStore) CountByState(ctx context.Context) (map[task.State]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT state, COUNT(*) FROM tasks GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("sqlite: count by state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[task.State]int)
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scan state count: %w", err)
		}
		counts[task.State(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: count by state rows: %w", err)
	}

	return counts, nil
}

// Prune deletes terminal tasks whose last update is older than the cutoff.
func (s *taskStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE state IN (?, ?, ?) AND updated_at < ?`,
		string(task.StateDone), string(task.StateFailed), string(task.StateRejected),
		formatTime(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune tasks: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}

	return int(n), nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*task.Task, error) {
	var (
		t         task.Task
		state     string
		mode      string
		createdAt string
		updatedAt string
	)

	if err := sc.Scan(&t.ID, &t.Description, &state, &mode,
		&t.Channel, &t.ChatID, &t.MessageID, &t.FileName, &t.Result,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan task: %w", err)
	}

	t.State = task.State(state)
	t.Mode = task.ExecMode(mode)

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse created_at %q: %w", createdAt, err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse updated_at %q: %w", updatedAt, err)
	}

	return &t, nil
}
