package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// SyncEngine moves records from the primary store into the search index.
type SyncEngine interface {
	// FullSync re-indexes every record of the given entity types.
	FullSync(ctx context.Context, entities []domain.EntityType) (*domain.SyncReport, error)

	// IncrementalSync re-indexes records modified since the watermark.
	// Returns domain.ErrSyncInProgress if a pass is already running.
	IncrementalSync(ctx context.Context) (*domain.SyncReport, error)

	// SyncOne re-indexes a single record, removing it from the index if it no longer exists.
	SyncOne(ctx context.Context, entity domain.EntityType, id string) error

	// DeleteOne removes a single record from the index.
	DeleteOne(ctx context.Context, entity domain.EntityType, id string) error

	// EnsureIndices creates every entity index that is missing.
	EnsureIndices(ctx context.Context) error

	// Ping checks that the index is reachable.
	Ping(ctx context.Context) error

	// LoadWatermark restores the persisted watermark.
	LoadWatermark(ctx context.Context) error

	// Watermark returns the start time of the latest completed pass.
	Watermark() time.Time
}

// WriteHook keeps the index current on the primary store's write path.
// Failures are logged, never returned.
type WriteHook interface {
	// OnSaved re-indexes a record after it was created or updated.
	OnSaved(ctx context.Context, entity domain.EntityType, id string)

	// OnDeleted removes a record from the index after it was deleted.
	OnDeleted(ctx context.Context, entity domain.EntityType, id string)
}
