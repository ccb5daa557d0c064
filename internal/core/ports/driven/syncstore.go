package driven

import (
	"context"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// SyncStateStore persists sync progress.
type SyncStateStore interface {
	// Save stores or updates sync state.
	Save(ctx context.Context, state domain.SyncState) error

	// Get retrieves sync state by key.
	// Returns domain.ErrNotFound if no state has been saved.
	Get(ctx context.Context, key string) (*domain.SyncState, error)

	// Delete removes sync state by key.
	Delete(ctx context.Context, key string) error
}
