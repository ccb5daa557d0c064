package driven

import (
	"context"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// RecordSource is a read-only view of the primary transactional store.
// Read failures wrap domain.ErrPrimaryStoreRead.
type RecordSource interface {
	// FindByID returns one record, or domain.ErrNotFound.
	FindByID(ctx context.Context, entity domain.EntityType, id string) (domain.Record, error)

	// FindModifiedSince returns up to limit records inside the window, in
	// (modification time, id) order starting after the window's cursor.
	FindModifiedSince(ctx context.Context, entity domain.EntityType, window domain.ModifiedWindow, limit int) ([]domain.Record, error)

	// FindPage returns records in a stable id order.
	FindPage(ctx context.Context, entity domain.EntityType, offset, limit int) ([]domain.Record, error)
}
