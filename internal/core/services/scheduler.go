package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
	"github.com/custodia-labs/searchsync/internal/logger"
)

// Ensure SyncScheduler implements the interface.
var _ driving.SyncScheduler = (*SyncScheduler)(nil)

// SyncScheduler runs incremental sync passes on an interval.
// Passes run on the ticker goroutine, so at most one tick is ever pending.
type SyncScheduler struct {
	config domain.SchedulerConfig
	engine driving.SyncEngine
	store  driven.SchedulerStore

	mu          sync.Mutex
	state       domain.SchedulerState
	initialized bool
	running     bool
	interval    time.Duration
	stopCh      chan struct{}
	resetCh     chan time.Duration
	lastResult  *domain.TaskResult
}

// NewSyncScheduler creates a scheduler. The store is optional.
func NewSyncScheduler(
	config domain.SchedulerConfig,
	engine driving.SyncEngine,
	store driven.SchedulerStore,
) *SyncScheduler {
	defaults := domain.DefaultSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = defaults.HistoryLimit
	}
	return &SyncScheduler{
		config:   config,
		engine:   engine,
		store:    store,
		state:    domain.SchedulerStopped,
		interval: config.Interval,
	}
}

// Initialize checks the index, creates missing indices, restores the
// watermark and runs the initial full sync. A failing ping or index creation
// returns the scheduler to stopped; a failing full sync is logged only.
func (s *SyncScheduler) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state == domain.SchedulerInitializing {
		s.mu.Unlock()
		return fmt.Errorf("initialize: %w", domain.ErrSyncInProgress)
	}
	s.state = domain.SchedulerInitializing
	s.mu.Unlock()

	logger.Section("Sync Initialisation")

	fail := func(err error) error {
		s.mu.Lock()
		s.state = s.settledState()
		if !s.initialized {
			s.state = domain.SchedulerStopped
		}
		s.mu.Unlock()
		logger.Error("Sync initialisation failed: %v", err)
		return err
	}

	if err := s.engine.Ping(ctx); err != nil {
		return fail(fmt.Errorf("ping index: %w", err))
	}
	if err := s.engine.EnsureIndices(ctx); err != nil {
		return fail(fmt.Errorf("ensure indices: %w", err))
	}
	if err := s.engine.LoadWatermark(ctx); err != nil {
		logger.Warn("Starting without watermark: %v", err)
	}
	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("Failed to initialise scheduler tasks: %v", err)
	}

	if s.config.InitialFullSync {
		if _, err := s.runPass(ctx, domain.TaskIDFullSync, nil); err != nil {
			logger.Warn("Initial full sync incomplete: %v", err)
		}
	}

	s.mu.Lock()
	s.initialized = true
	s.state = s.settledState()
	s.mu.Unlock()
	return nil
}

// settledState is the state outside initialisation. Callers hold mu.
func (s *SyncScheduler) settledState() domain.SchedulerState {
	if s.running {
		return domain.SchedulerRunning
	}
	return domain.SchedulerReady
}

// Start launches the periodic incremental sync and returns immediately.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return domain.ErrNotInitialized
	}
	if s.running {
		return nil // Already running
	}

	s.running = true
	s.state = domain.SchedulerRunning
	s.stopCh = make(chan struct{})
	s.resetCh = make(chan time.Duration, 1)

	logger.Info("Starting periodic sync every %s", s.interval)
	go s.run(ctx, s.interval, s.stopCh, s.resetCh)
	return nil
}

// Stop cancels the timer. It does not wait for or interrupt an in-flight pass.
func (s *SyncScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.state = domain.SchedulerStopped
	close(s.stopCh)
	logger.Info("Periodic sync stopped")
	return nil
}

// SetSyncInterval changes the interval and resets a running timer.
func (s *SyncScheduler) SetSyncInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: sync interval must be positive, got %s", domain.ErrInvalidInput, d)
	}

	s.mu.Lock()
	s.interval = d
	if s.running {
		// Keep only the newest value in the reset slot.
		select {
		case <-s.resetCh:
		default:
		}
		s.resetCh <- d
	}
	s.mu.Unlock()

	logger.Info("Sync interval set to %s", d)
	if s.store != nil {
		if err := s.ensureTask(context.Background(), domain.TaskIDIncrementalSync, "Incremental Sync", d); err != nil {
			logger.Warn("Failed to update task interval: %v", err)
		}
	}
	return nil
}

// Status returns the scheduler's current state.
func (s *SyncScheduler) Status() domain.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := domain.SchedulerStatus{
		Running:  s.running,
		State:    s.state,
		LastSync: s.engine.Watermark(),
		Interval: s.interval,
	}
	if s.lastResult != nil {
		r := *s.lastResult
		status.LastResult = &r
	}
	return status
}

// TriggerFull runs a full sync of the given entity types now.
func (s *SyncScheduler) TriggerFull(ctx context.Context, entities []domain.EntityType) (*domain.SyncReport, error) {
	return s.runPass(ctx, domain.TaskIDFullSync, entities)
}

// TriggerIncremental runs an incremental sync now.
func (s *SyncScheduler) TriggerIncremental(ctx context.Context) (*domain.SyncReport, error) {
	return s.runPass(ctx, domain.TaskIDIncrementalSync, nil)
}

// History returns recent pass results across both tasks, most recent first.
func (s *SyncScheduler) History(ctx context.Context, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		limit = s.config.HistoryLimit
	}
	if s.store == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.lastResult == nil {
			return []domain.TaskResult{}, nil
		}
		return []domain.TaskResult{*s.lastResult}, nil
	}

	var results []domain.TaskResult
	for _, id := range []string{domain.TaskIDFullSync, domain.TaskIDIncrementalSync} {
		h, err := s.store.GetTaskHistory(ctx, id, limit)
		if err != nil {
			return nil, fmt.Errorf("task history %s: %w", id, err)
		}
		results = append(results, h...)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// run is the ticker loop.
func (s *SyncScheduler) run(ctx context.Context, interval time.Duration, stopCh <-chan struct{}, resetCh <-chan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.stopCh == stopCh && s.running {
				s.running = false
				s.state = domain.SchedulerStopped
			}
			s.mu.Unlock()
			return
		case <-stopCh:
			return
		case d := <-resetCh:
			ticker.Reset(d)
		case <-ticker.C:
			if _, err := s.runPass(ctx, domain.TaskIDIncrementalSync, nil); err != nil {
				logger.Warn("Incremental sync: %v", err)
			}
		}
	}
}

// runPass executes one pass and records its result.
// A pass rejected because another is in flight is not recorded.
func (s *SyncScheduler) runPass(ctx context.Context, taskID string, entities []domain.EntityType) (*domain.SyncReport, error) {
	result := &domain.TaskResult{
		TaskID:    taskID,
		StartedAt: time.Now(),
	}

	var (
		report *domain.SyncReport
		err    error
	)
	switch taskID {
	case domain.TaskIDFullSync:
		report, err = s.engine.FullSync(ctx, entities)
	default:
		report, err = s.engine.IncrementalSync(ctx)
	}
	if errors.Is(err, domain.ErrSyncInProgress) {
		logger.Debug("Skipping %s: another pass is running", taskID)
		return nil, err
	}

	result.EndedAt = time.Now()
	if report != nil {
		result.Mode = report.Mode
		result.Since = report.Since
		result.ItemsProcessed = report.Synced()
		result.ItemsFailed = report.Failed()
	}
	result.Watermark = s.engine.Watermark()
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Success = true
	}

	s.mu.Lock()
	s.lastResult = result
	interval := s.interval
	s.mu.Unlock()

	s.recordResult(ctx, result, interval)
	return report, err
}

// recordResult persists task state and history.
func (s *SyncScheduler) recordResult(ctx context.Context, result *domain.TaskResult, interval time.Duration) {
	if s.store == nil {
		return
	}

	task, err := s.store.GetTask(ctx, result.TaskID)
	if err != nil {
		logger.Warn("scheduler: failed to load task %s: %v", result.TaskID, err)
	}
	if task == nil {
		task = &domain.ScheduledTask{ID: result.TaskID, Name: taskName(result.TaskID), Enabled: true}
	}
	task.LastRun = result.StartedAt
	if result.Success {
		task.LastError = ""
		task.LastSuccess = result.EndedAt
	} else {
		task.LastError = result.Error
	}
	if result.TaskID == domain.TaskIDIncrementalSync {
		task.Interval = interval
		task.NextRun = result.EndedAt.Add(interval)
	}

	if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
	}
	if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
	}
	if pruneErr := s.store.PruneHistory(ctx, s.config.HistoryLimit); pruneErr != nil {
		logger.Warn("scheduler: failed to prune history: %v", pruneErr)
	}
}

// initialiseTasks ensures both sync tasks exist in the store.
func (s *SyncScheduler) initialiseTasks(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	interval := s.interval
	s.mu.Unlock()

	if err := s.ensureTask(ctx, domain.TaskIDIncrementalSync, taskName(domain.TaskIDIncrementalSync), interval); err != nil {
		return err
	}
	return s.ensureTask(ctx, domain.TaskIDFullSync, taskName(domain.TaskIDFullSync), 0)
}

// ensureTask creates or updates a task in the store.
func (s *SyncScheduler) ensureTask(ctx context.Context, id, name string, interval time.Duration) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: interval,
			Enabled:  true,
		}
		if interval > 0 {
			task.NextRun = time.Now().Add(interval)
		}
	} else if task.Interval != interval {
		task.Interval = interval
		if interval > 0 {
			task.NextRun = time.Now().Add(interval)
		}
	}

	return s.store.SaveTask(ctx, task)
}

func taskName(id string) string {
	if id == domain.TaskIDFullSync {
		return "Full Sync"
	}
	return "Incremental Sync"
}
