package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
)

// schedulerStore implements driven.SchedulerStore over the sync_tasks and
// sync_passes tables.
type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const selectSyncTask = `SELECT id, name, interval_ms, last_run, next_run, last_error, last_success, enabled
	FROM sync_tasks`

const selectSyncPass = `SELECT task_id, mode, started_at, ended_at, since, watermark, synced, failed, error
	FROM sync_passes`

// GetTask returns the sync task, or nil when it has never been saved.
func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx, selectSyncTask+" WHERE id = ?", taskID)
	task, err := scanSyncTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns every sync task in id order.
func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx, selectSyncTask+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		task, err := scanSyncTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync tasks: %w", err)
	}
	return tasks, nil
}

// SaveTask upserts a sync task.
func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_tasks (id, name, interval_ms, last_run, next_run, last_error, last_success, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_ms = excluded.interval_ms,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			last_success = excluded.last_success,
			enabled = excluded.enabled
	`, task.ID, task.Name, task.Interval.Milliseconds(),
		millis(task.LastRun), millis(task.NextRun), nullString(task.LastError),
		millis(task.LastSuccess), boolToInt(task.Enabled))
	if err != nil {
		return fmt.Errorf("saving sync task %s: %w", task.ID, err)
	}
	return nil
}

// DeleteTask removes a sync task. Its pass history is kept.
func (s *schedulerStore) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM sync_tasks WHERE id = ?", taskID); err != nil {
		return fmt.Errorf("deleting sync task %s: %w", taskID, err)
	}
	return nil
}

// RecordResult appends one pass to the history. A failed pass is stored
// with its error text; an empty text marks success.
func (s *schedulerStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}

	errText := result.Error
	if !result.Success && errText == "" {
		errText = "failed"
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_passes (task_id, mode, started_at, ended_at, since, watermark, synced, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.TaskID, string(result.Mode),
		result.StartedAt.UnixMilli(), result.EndedAt.UnixMilli(),
		millis(result.Since), millis(result.Watermark),
		result.ItemsProcessed, result.ItemsFailed, nullString(errText))
	if err != nil {
		return fmt.Errorf("recording %s pass: %w", result.TaskID, err)
	}
	return nil
}

// GetTaskHistory returns the latest passes of a task, newest first.
func (s *schedulerStore) GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	rows, err := s.store.db.QueryContext(ctx,
		selectSyncPass+" WHERE task_id = ? ORDER BY started_at DESC, id DESC LIMIT ?", taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying %s passes: %w", taskID, err)
	}
	defer rows.Close()

	var passes []domain.TaskResult
	for rows.Next() {
		pass, err := scanSyncPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s passes: %w", taskID, err)
	}
	return passes, nil
}

// PruneHistory keeps the newest keep passes of each task.
func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM sync_passes
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY started_at DESC, id DESC) AS pos
				FROM sync_passes
			) WHERE pos > ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning sync passes: %w", err)
	}
	return nil
}

func scanSyncTask(row rowScanner) (*domain.ScheduledTask, error) {
	var (
		task                          domain.ScheduledTask
		intervalMS                    int64
		lastRun, nextRun, lastSuccess sql.NullInt64
		lastError                     sql.NullString
		enabled                       int
	)
	err := row.Scan(&task.ID, &task.Name, &intervalMS, &lastRun, &nextRun, &lastError, &lastSuccess, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning sync task: %w", err)
	}

	task.Interval = time.Duration(intervalMS) * time.Millisecond
	task.LastRun = fromMillis(lastRun)
	task.NextRun = fromMillis(nextRun)
	task.LastError = lastError.String
	task.LastSuccess = fromMillis(lastSuccess)
	task.Enabled = enabled == 1
	return &task, nil
}

func scanSyncPass(row rowScanner) (domain.TaskResult, error) {
	var (
		pass               domain.TaskResult
		mode               string
		startedAt, endedAt int64
		since, watermark   sql.NullInt64
		errText            sql.NullString
	)
	err := row.Scan(&pass.TaskID, &mode, &startedAt, &endedAt, &since, &watermark,
		&pass.ItemsProcessed, &pass.ItemsFailed, &errText)
	if err != nil {
		return domain.TaskResult{}, fmt.Errorf("scanning sync pass: %w", err)
	}

	pass.Mode = domain.SyncMode(mode)
	pass.StartedAt = time.UnixMilli(startedAt).UTC()
	pass.EndedAt = time.UnixMilli(endedAt).UTC()
	pass.Since = fromMillis(since)
	pass.Watermark = fromMillis(watermark)
	pass.Error = errText.String
	pass.Success = !errText.Valid
	return pass, nil
}
