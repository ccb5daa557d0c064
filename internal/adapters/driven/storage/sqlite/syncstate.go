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

// syncStateStore implements driven.SyncStateStore.
type syncStateStore struct {
	store *Store
}

var _ driven.SyncStateStore = (*syncStateStore)(nil)

// Save stores or updates sync state.
func (s *syncStateStore) Save(ctx context.Context, state domain.SyncState) error {
	if state.Key == "" {
		return fmt.Errorf("%w: sync state key is empty", domain.ErrInvalidInput)
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_state (key, watermark, mode, synced, failed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			watermark = excluded.watermark,
			mode = excluded.mode,
			synced = excluded.synced,
			failed = excluded.failed,
			updated_at = excluded.updated_at
	`, state.Key, millis(state.Watermark), string(state.Mode), state.Synced, state.Failed,
		state.UpdatedAt.UnixMilli())

	if err != nil {
		return fmt.Errorf("saving sync state: %w", err)
	}
	return nil
}

// Get retrieves sync state by key.
func (s *syncStateStore) Get(ctx context.Context, key string) (*domain.SyncState, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT key, watermark, mode, synced, failed, updated_at
		FROM sync_state WHERE key = ?
	`, key)

	var state domain.SyncState
	var watermark sql.NullInt64
	var mode string
	var updatedAt int64
	if err := row.Scan(&state.Key, &watermark, &mode, &state.Synced, &state.Failed, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning sync state: %w", err)
	}

	state.Watermark = fromMillis(watermark)
	state.Mode = domain.SyncMode(mode)
	state.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &state, nil
}

// Delete removes sync state by key.
func (s *syncStateStore) Delete(ctx context.Context, key string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM sync_state WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting sync state: %w", err)
	}
	return nil
}
