// Package app assembles searchsync from its configuration: it picks the
// index and state backends, wraps the index in the resilient decorator
// and connects every core service to telemetry.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/searchsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/searchsync/internal/adapters/driven/index/bleveindex"
	"github.com/custodia-labs/searchsync/internal/adapters/driven/index/elastic"
	"github.com/custodia-labs/searchsync/internal/adapters/driven/index/resilient"
	"github.com/custodia-labs/searchsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/searchsync/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/searchsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
	"github.com/custodia-labs/searchsync/internal/core/services"
	"github.com/custodia-labs/searchsync/internal/logger"
	"github.com/custodia-labs/searchsync/internal/telemetry"
)

// App holds the wired services.
type App struct {
	Config file.Config

	Search    driving.SearchService
	Suggest   driving.Autocompleter
	Engine    driving.SyncEngine
	Scheduler driving.SyncScheduler
	Analytics driving.AnalyticsService
	Recorder  driving.QueryLogRecorder
	WriteHook driving.WriteHook

	// Telemetry is nil when metrics are disabled.
	Telemetry *telemetry.Telemetry

	closers []func(context.Context) error
}

// Build wires an App from cfg. The caller must Close it.
func Build(ctx context.Context, cfg file.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	tel, err := telemetry.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.Telemetry = tel
	a.onClose(tel.Shutdown)

	store, err := sqlite.NewStore(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.onClose(func(context.Context) error { return store.Close() })
	logger.Debug("store opened at %s", store.Path())

	index, err := buildIndex(cfg)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return index.Close() })

	state, err := a.buildState(ctx, cfg, store)
	if err != nil {
		return nil, err
	}

	engine := services.NewSyncEngine(index, store.RecordSource(), state, SyncConfig(cfg))
	engine.SetMetrics(tel)
	a.Engine = engine

	a.Scheduler = services.NewSyncScheduler(SchedulerConfig(cfg), engine, store.SchedulerStore())
	a.onClose(func(context.Context) error { return a.Scheduler.Stop() })

	recorder := services.NewQueryLogRecorder(store.QueryLogStore(), RecorderConfig(cfg))
	recorder.SetMetrics(tel)
	a.Recorder = recorder
	// Runs before the store closes so queued entries are flushed.
	a.onClose(recorder.Close)

	search := services.NewSearchService(index, recorder)
	search.SetMetrics(tel)
	a.Search = search

	suggest := services.NewAutocompleter(index, store.QueryLogStore(), AutocompleteConfig(cfg))
	suggest.SetMetrics(tel)
	a.Suggest = suggest

	a.Analytics = services.NewAnalyticsService(store.QueryLogStore(), recorder)
	a.WriteHook = services.NewWriteHook(engine, cfg.Sync.WriteTimeout.Std())

	logger.Debug("wired index=%s state=%s", cfg.Index.Backend, cfg.State.Backend)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func buildIndex(cfg file.Config) (driven.IndexGateway, error) {
	var (
		backend driven.IndexGateway
		err     error
	)
	switch cfg.Index.Backend {
	case file.BackendBleve:
		dir := cfg.Index.DataDir
		if dir == "" {
			dir, err = defaultDir("index")
			if err != nil {
				return nil, err
			}
		}
		backend, err = bleveindex.New(bleveindex.Options{DataDir: dir, Prefix: cfg.Index.Prefix})
	case file.BackendElasticsearch:
		backend, err = elastic.New(elastic.Options{
			Addresses: cfg.Index.Addresses,
			Username:  cfg.Index.Username,
			Password:  cfg.Index.Password,
			APIKey:    cfg.Index.APIKey,
			Prefix:    cfg.Index.Prefix,
		})
	default:
		return nil, fmt.Errorf("%w: unknown index backend %q", domain.ErrInvalidInput, cfg.Index.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s index: %w", cfg.Index.Backend, err)
	}
	return resilient.New(backend, ResilientConfig(cfg)), nil
}

func (a *App) buildState(ctx context.Context, cfg file.Config, store *sqlite.Store) (driven.SyncStateStore, error) {
	switch cfg.State.Backend {
	case file.StateSQLite:
		return store.SyncStateStore(), nil
	case file.StateMemory:
		return memory.NewSyncStateStore(), nil
	case file.StateRedis:
		rs, err := redis.New(ctx, redis.Options{
			Addr:     cfg.State.RedisAddr,
			Password: cfg.State.RedisPassword,
			DB:       cfg.State.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.onClose(func(context.Context) error { return rs.Close() })
		return rs, nil
	default:
		return nil, fmt.Errorf("%w: unknown state backend %q", domain.ErrInvalidInput, cfg.State.Backend)
	}
}

func defaultDir(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".searchsync", name), nil
}

// SyncConfig converts the sync section for the engine.
func SyncConfig(cfg file.Config) services.SyncConfig {
	return services.SyncConfig{
		BatchSize:    cfg.Sync.BatchSize,
		Interval:     cfg.Sync.Interval.Std(),
		SafetyMargin: cfg.Sync.SafetyMargin.Std(),
		MaxCatchUp:   cfg.Sync.MaxCatchUp.Std(),
	}
}

// SchedulerConfig converts the sync section for the scheduler.
func SchedulerConfig(cfg file.Config) domain.SchedulerConfig {
	return domain.SchedulerConfig{
		Interval:        cfg.Sync.Interval.Std(),
		HistoryLimit:    cfg.Sync.HistoryLimit,
		InitialFullSync: cfg.Sync.InitialFullSync,
	}
}

// RecorderConfig converts the query_log section.
func RecorderConfig(cfg file.Config) services.RecorderConfig {
	return services.RecorderConfig{
		QueueSize:    cfg.QueryLog.QueueSize,
		WriteTimeout: cfg.QueryLog.WriteTimeout.Std(),
	}
}

// AutocompleteConfig converts the autocomplete section.
func AutocompleteConfig(cfg file.Config) services.AutocompleteConfig {
	return services.AutocompleteConfig{
		MinPrefix:    cfg.Autocomplete.MinPrefix,
		DefaultLimit: cfg.Autocomplete.DefaultLimit,
		MaxLimit:     cfg.Autocomplete.MaxLimit,
		HistoryLimit: cfg.Autocomplete.HistoryLimit,
		PopularLimit: cfg.Autocomplete.PopularLimit,
	}
}

// ResilientConfig converts the index retry and throttle settings.
func ResilientConfig(cfg file.Config) resilient.Config {
	rc := resilient.DefaultConfig()
	rc.Timeout = cfg.Index.Timeout.Std()
	rc.MaxRetries = cfg.Index.MaxRetries
	rc.RateLimit = cfg.Index.RateLimit
	rc.Burst = cfg.Index.Burst
	return rc
}
