package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
	"github.com/custodia-labs/searchsync/internal/logger"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncEngine = (*SyncEngine)(nil)

// SyncConfig holds sync engine settings.
type SyncConfig struct {
	// BatchSize is the page size for primary store reads and bulk writes.
	BatchSize int

	// Interval is the incremental window used before any watermark exists.
	Interval time.Duration

	// SafetyMargin is subtracted from the watermark when computing the
	// incremental window.
	SafetyMargin time.Duration

	// MaxCatchUp is the oldest watermark an incremental pass will resume from.
	// Older watermarks trigger a full sync.
	MaxCatchUp time.Duration
}

// DefaultSyncConfig returns the default sync engine settings.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		BatchSize:    100,
		Interval:     5 * time.Minute,
		SafetyMargin: 30 * time.Second,
		MaxCatchUp:   24 * time.Hour,
	}
}

// SyncEngine projects primary-store records into the search index.
type SyncEngine struct {
	index   driven.IndexGateway
	source  driven.RecordSource
	state   driven.SyncStateStore
	metrics driven.Metrics
	config  SyncConfig
	now     func() time.Time

	// passMu guards against overlapping passes; it is only ever TryLocked.
	passMu    sync.Mutex
	watermark atomic.Pointer[time.Time]
}

// NewSyncEngine creates a sync engine.
// The state store is optional; without it the watermark lives in memory only.
func NewSyncEngine(
	index driven.IndexGateway,
	source driven.RecordSource,
	state driven.SyncStateStore,
	config SyncConfig,
) *SyncEngine {
	defaults := DefaultSyncConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.SafetyMargin < 0 {
		config.SafetyMargin = 0
	}
	if config.MaxCatchUp <= 0 {
		config.MaxCatchUp = defaults.MaxCatchUp
	}
	return &SyncEngine{
		index:   index,
		source:  source,
		state:   state,
		metrics: driven.NopMetrics{},
		config:  config,
		now:     time.Now,
	}
}

// SetMetrics sets the metrics sink.
func (e *SyncEngine) SetMetrics(m driven.Metrics) {
	if m != nil {
		e.metrics = m
	}
}

// Ping checks that the index is reachable.
func (e *SyncEngine) Ping(ctx context.Context) error {
	return e.index.Ping(ctx)
}

// EnsureIndices creates every entity index that is missing.
func (e *SyncEngine) EnsureIndices(ctx context.Context) error {
	var errs []error
	for _, entity := range domain.AllEntityTypes() {
		created, err := e.index.EnsureIndex(ctx, entity.Definition())
		if err != nil {
			errs = append(errs, fmt.Errorf("ensure %s index: %w", entity, err))
			continue
		}
		if created {
			logger.Info("Created %s index", entity)
		}
	}
	return errors.Join(errs...)
}

// LoadWatermark restores the persisted watermark. A missing entry leaves the
// watermark unset.
func (e *SyncEngine) LoadWatermark(ctx context.Context) error {
	if e.state == nil {
		return nil
	}
	st, err := e.state.Get(ctx, domain.WatermarkKey)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("No persisted watermark")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}
	if !st.Watermark.IsZero() {
		wm := st.Watermark
		e.watermark.Store(&wm)
		logger.Info("Restored watermark %s", wm.Format(time.RFC3339))
	}
	return nil
}

// Watermark returns the start time of the latest completed pass, or the zero
// time before the first.
func (e *SyncEngine) Watermark() time.Time {
	if wm := e.watermark.Load(); wm != nil {
		return *wm
	}
	return time.Time{}
}

// FullSync re-indexes every record of the given entity types, one bulk
// request per page. The watermark advances only when every type was synced.
func (e *SyncEngine) FullSync(ctx context.Context, entities []domain.EntityType) (*domain.SyncReport, error) {
	if !e.passMu.TryLock() {
		return nil, domain.ErrSyncInProgress
	}
	defer e.passMu.Unlock()

	return e.fullSync(ctx, entities)
}

func (e *SyncEngine) fullSync(ctx context.Context, entities []domain.EntityType) (*domain.SyncReport, error) {
	if len(entities) == 0 {
		entities = domain.AllEntityTypes()
	}

	logger.Section("Full Sync")
	start := e.now()
	report := domain.NewSyncReport(domain.SyncModeFull, start)

	var errs []error
	for _, entity := range entities {
		if err := e.fullSyncEntity(ctx, entity, report); err != nil {
			errs = append(errs, fmt.Errorf("full sync %s: %w", entity, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	report.FinishedAt = e.now()

	if ctx.Err() == nil && coversAll(entities) {
		e.advance(ctx, start, report)
	}

	err := errors.Join(errs...)
	e.metrics.SyncPassCompleted(string(domain.SyncModeFull), report.FinishedAt.Sub(start), err)
	logger.Info("Full sync complete: %d synced, %d failed", report.Synced(), report.Failed())
	return report, err
}

func (e *SyncEngine) fullSyncEntity(ctx context.Context, entity domain.EntityType, report *domain.SyncReport) error {
	for offset := 0; ; offset += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, err := e.source.FindPage(ctx, entity, offset, e.config.BatchSize)
		if err != nil {
			return fmt.Errorf("read page at %d: %w", offset, err)
		}

		docs, failed := e.project(entity, records)
		synced := 0
		if len(docs) > 0 {
			res, err := e.index.BulkIndex(ctx, entity, docs)
			if err != nil {
				// The batch is lost; later batches may still succeed.
				logger.Warn("Bulk index of %d %s documents failed: %v", len(docs), entity, err)
				failed += len(docs)
			} else {
				synced = res.Indexed
				failed += len(res.Failed)
				for _, f := range res.Failed {
					logger.Debug("Rejected %s %s: %v", entity, f.ID, f.Err)
				}
			}
		}

		report.Add(entity, synced, failed)
		e.metrics.DocumentsSynced(string(domain.SyncModeFull), entity.String(), synced, failed)
		logger.Debug("Synced %s page at %d: %d ok, %d failed", entity, offset, synced, failed)

		if len(records) < e.config.BatchSize {
			return nil
		}
	}
}

func (e *SyncEngine) project(entity domain.EntityType, records []domain.Record) ([]domain.IndexedDocument, int) {
	docs := make([]domain.IndexedDocument, 0, len(records))
	failed := 0
	for _, r := range records {
		doc, err := ProjectAs(entity, r)
		if err != nil {
			logger.Warn("Skipping %s: %v", entity, err)
			failed++
			continue
		}
		docs = append(docs, doc)
	}
	return docs, failed
}

// IncrementalSync re-indexes records modified since the watermark minus the
// safety margin. Without a watermark the window is one interval; a watermark
// older than MaxCatchUp runs a full sync instead. The window ends at the pass
// start; later changes fall inside the next pass's safety margin.
func (e *SyncEngine) IncrementalSync(ctx context.Context) (*domain.SyncReport, error) {
	if !e.passMu.TryLock() {
		return nil, domain.ErrSyncInProgress
	}
	defer e.passMu.Unlock()

	start := e.now()
	var since time.Time
	switch wm := e.Watermark(); {
	case wm.IsZero():
		since = start.Add(-e.config.Interval)
	case start.Sub(wm) > e.config.MaxCatchUp:
		logger.Warn("Watermark %s is older than %s, running full sync", wm.Format(time.RFC3339), e.config.MaxCatchUp)
		return e.fullSync(ctx, domain.AllEntityTypes())
	default:
		since = wm.Add(-e.config.SafetyMargin)
	}

	logger.Section("Incremental Sync")
	logger.Debug("Window starts at %s", since.Format(time.RFC3339))
	report := domain.NewSyncReport(domain.SyncModeIncremental, start)
	report.Since = since

	var errs []error
	for _, entity := range domain.AllEntityTypes() {
		window := domain.ModifiedWindow{Since: since, Until: start}
		if err := e.incrementalEntity(ctx, entity, window, report); err != nil {
			errs = append(errs, fmt.Errorf("incremental sync %s: %w", entity, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	report.FinishedAt = e.now()

	if ctx.Err() == nil {
		e.advance(ctx, start, report)
	}

	err := errors.Join(errs...)
	e.metrics.SyncPassCompleted(string(domain.SyncModeIncremental), report.FinishedAt.Sub(start), err)
	logger.Info("Incremental sync complete: %d synced, %d failed", report.Synced(), report.Failed())
	return report, err
}

func (e *SyncEngine) incrementalEntity(
	ctx context.Context,
	entity domain.EntityType,
	window domain.ModifiedWindow,
	report *domain.SyncReport,
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, err := e.source.FindModifiedSince(ctx, entity, window, e.config.BatchSize)
		if err != nil {
			return fmt.Errorf("read modified after %s: %w", window.AfterTime.Format(time.RFC3339), err)
		}
		if len(records) > 0 {
			window = window.Next(records[len(records)-1])
		}

		synced, failed := 0, 0
		for i, r := range records {
			doc, err := ProjectAs(entity, r)
			if err != nil {
				logger.Warn("Skipping %s: %v", entity, err)
				failed++
				continue
			}
			if err := e.index.IndexDocument(ctx, doc); err != nil {
				logger.Warn("Index %s %s failed: %v", entity, doc.ID, err)
				failed++
				if domain.IsRetryable(err) {
					// Index is down: abandon the rest of this batch.
					failed += len(records) - i - 1
					break
				}
				continue
			}
			synced++
		}

		report.Add(entity, synced, failed)
		e.metrics.DocumentsSynced(string(domain.SyncModeIncremental), entity.String(), synced, failed)

		if len(records) < e.config.BatchSize {
			return nil
		}
	}
}

// advance stores the new watermark and persists it. Persistence failures are
// logged; the in-memory watermark still advances.
func (e *SyncEngine) advance(ctx context.Context, start time.Time, report *domain.SyncReport) {
	wm := start
	e.watermark.Store(&wm)

	if e.state == nil {
		return
	}
	st := domain.SyncState{
		Key:       domain.WatermarkKey,
		Watermark: wm,
		Mode:      report.Mode,
		Synced:    report.Synced(),
		Failed:    report.Failed(),
		UpdatedAt: e.now(),
	}
	if err := e.state.Save(ctx, st); err != nil {
		logger.Error("Persist watermark: %v", err)
	}
}

// SyncOne re-indexes a single record. A record that no longer exists in the
// primary store is removed from the index.
func (e *SyncEngine) SyncOne(ctx context.Context, entity domain.EntityType, id string) error {
	if !entity.Valid() || id == "" {
		return fmt.Errorf("%w: sync %s %q", domain.ErrInvalidInput, entity, id)
	}

	record, err := e.source.FindByID(ctx, entity, id)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("%s %s vanished from primary store, deleting", entity, id)
		return e.DeleteOne(ctx, entity, id)
	}
	if err != nil {
		return fmt.Errorf("find %s %s: %w", entity, id, err)
	}

	doc, err := ProjectAs(entity, record)
	if err != nil {
		return err
	}
	if err := e.index.IndexDocument(ctx, doc); err != nil {
		return fmt.Errorf("index %s %s: %w", entity, id, err)
	}
	return nil
}

// DeleteOne removes a single record from the index.
func (e *SyncEngine) DeleteOne(ctx context.Context, entity domain.EntityType, id string) error {
	if !entity.Valid() || id == "" {
		return fmt.Errorf("%w: delete %s %q", domain.ErrInvalidInput, entity, id)
	}
	if err := e.index.DeleteDocument(ctx, entity, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", entity, id, err)
	}
	return nil
}

func coversAll(entities []domain.EntityType) bool {
	seen := make(map[domain.EntityType]bool, len(entities))
	for _, e := range entities {
		seen[e] = true
	}
	for _, e := range domain.AllEntityTypes() {
		if !seen[e] {
			return false
		}
	}
	return true
}
