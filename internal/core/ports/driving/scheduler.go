package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// SyncScheduler runs incremental syncs on an interval.
type SyncScheduler interface {
	// Initialize checks the index, creates missing indices, restores the
	// watermark and runs the initial full sync.
	Initialize(ctx context.Context) error

	// Start launches the periodic incremental sync. It does not block.
	// Returns domain.ErrNotInitialized before a successful Initialize.
	Start(ctx context.Context) error

	// Stop cancels the timer. An in-flight pass runs to completion.
	Stop() error

	// SetSyncInterval changes the interval, resetting a running timer.
	SetSyncInterval(d time.Duration) error

	// Status returns the scheduler's current state.
	Status() domain.SchedulerStatus

	// TriggerFull runs a full sync of the given entity types now.
	TriggerFull(ctx context.Context, entities []domain.EntityType) (*domain.SyncReport, error)

	// TriggerIncremental runs an incremental sync now.
	TriggerIncremental(ctx context.Context) (*domain.SyncReport, error)

	// History returns recent pass results, most recent first.
	History(ctx context.Context, limit int) ([]domain.TaskResult, error)
}
