package services

import (
	"context"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
	"github.com/custodia-labs/searchsync/internal/logger"
)

// Ensure WriteHook implements the interface.
var _ driving.WriteHook = (*WriteHook)(nil)

// WriteHook syncs single records on the primary store's write path.
// Errors are logged; the next incremental pass repairs the index.
type WriteHook struct {
	engine  driving.SyncEngine
	timeout time.Duration
}

// NewWriteHook creates a write hook. A non-positive timeout defaults to 5s.
func NewWriteHook(engine driving.SyncEngine, timeout time.Duration) *WriteHook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WriteHook{engine: engine, timeout: timeout}
}

// OnSaved re-indexes a created or updated record.
func (h *WriteHook) OnSaved(ctx context.Context, entity domain.EntityType, id string) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.engine.SyncOne(ctx, entity, id); err != nil {
		logger.Warn("Write-path sync of %s %s failed: %v", entity, id, err)
	}
}

// OnDeleted removes a deleted record from the index.
func (h *WriteHook) OnDeleted(ctx context.Context, entity domain.EntityType, id string) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.engine.DeleteOne(ctx, entity, id); err != nil {
		logger.Warn("Write-path delete of %s %s failed: %v", entity, id, err)
	}
}
