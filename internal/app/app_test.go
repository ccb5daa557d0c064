package app

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/searchsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/searchsync/internal/core/domain"
)

func testConfig(t *testing.T) file.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := file.DefaultConfig()
	cfg.Store.DataDir = dir
	cfg.Index.DataDir = filepath.Join(dir, "index")
	cfg.State.Backend = file.StateMemory
	return cfg
}

func buildApp(t *testing.T, cfg file.Config) *App {
	t.Helper()
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func seed(t *testing.T, cfg file.Config) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(cfg.Store.DataDir, sqlite.DatabaseFile)+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UnixMilli()
	_, err = db.Exec(`INSERT INTO users (id, username, first_name, last_name, college, created_at)
		VALUES ('u1', 'asha', 'Asha', 'Rao', 'IIT Delhi', ?)`, now)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO posts (id, author_id, caption, content, tags, category, is_public, created_at)
		VALUES ('p1', 'u1', 'Fest night', 'College fest starts today', '["fest"]', 'events', 1, ?)`, now)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO comments (id, post_id, author_id, content, created_at)
		VALUES ('c1', 'p1', 'u1', 'See you at the fest', ?)`, now)
	require.NoError(t, err)
}

func TestBuild_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	a := buildApp(t, cfg)
	seed(t, cfg)
	ctx := context.Background()

	require.NoError(t, a.Scheduler.Initialize(ctx))
	status := a.Scheduler.Status()
	require.NotNil(t, status.LastResult)
	assert.True(t, status.LastResult.Success)
	assert.Equal(t, 3, status.LastResult.ItemsProcessed)

	resp, err := a.Search.Search(ctx, domain.SearchRequest{
		Query:    "fest",
		Entities: []domain.EntityType{domain.EntityPost},
		UserID:   "u1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "p1", resp.Results[0].ID)
	assert.NotEmpty(t, resp.QueryID)

	history, err := a.Scheduler.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TaskIDFullSync, history[0].TaskID)
}

func TestBuild_QueryLogFlushedOnClose(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := Build(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, a.Engine.EnsureIndices(ctx))
	_, err = a.Search.Search(ctx, domain.SearchRequest{Query: "robotics", UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, a.Close(ctx))

	// A second app over the same data directory sees the logged query.
	b := buildApp(t, cfg)
	stats, err := b.Analytics.GetAnalytics(ctx, domain.TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSearches)
	require.Len(t, stats.TopSearches, 1)
	assert.Equal(t, "robotics", stats.TopSearches[0].Query)
}

func TestBuild_RedisState(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.State.Backend = file.StateRedis
	cfg.State.RedisAddr = mr.Addr()
	cfg.Sync.InitialFullSync = false

	a := buildApp(t, cfg)
	ctx := context.Background()

	require.NoError(t, a.Engine.EnsureIndices(ctx))
	_, err := a.Engine.IncrementalSync(ctx)
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], domain.WatermarkKey)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("unknown index backend", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Index.Backend = "solr"
		_, err := Build(context.Background(), cfg)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unknown state backend", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.State.Backend = "etcd"
		_, err := Build(context.Background(), cfg)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.State.Backend = file.StateRedis
		cfg.State.RedisAddr = "127.0.0.1:1"
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := Build(ctx, cfg)
		assert.Error(t, err)
	})
}

func TestClose_Idempotent(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)

	assert.NoError(t, a.Close(context.Background()))
	assert.NoError(t, a.Close(context.Background()))
}

func TestConfigConversions(t *testing.T) {
	cfg := file.DefaultConfig()
	cfg.Sync.Interval = file.Duration(time.Minute)
	cfg.Sync.HistoryLimit = 7
	cfg.Index.Timeout = file.Duration(3 * time.Second)
	cfg.Index.MaxRetries = 1
	cfg.Index.RateLimit = 50
	cfg.Index.Burst = 5

	sc := SyncConfig(cfg)
	assert.Equal(t, time.Minute, sc.Interval)
	assert.Equal(t, 100, sc.BatchSize)
	assert.Equal(t, 30*time.Second, sc.SafetyMargin)

	sched := SchedulerConfig(cfg)
	assert.Equal(t, time.Minute, sched.Interval)
	assert.Equal(t, 7, sched.HistoryLimit)
	assert.True(t, sched.InitialFullSync)

	rc := ResilientConfig(cfg)
	assert.Equal(t, 3*time.Second, rc.Timeout)
	assert.Equal(t, 1, rc.MaxRetries)
	assert.Equal(t, 50.0, rc.RateLimit)
	assert.Equal(t, 5, rc.Burst)
	assert.Positive(t, rc.BaseDelay)

	assert.Equal(t, 256, RecorderConfig(cfg).QueueSize)
	assert.Equal(t, domain.MinPrefixLength, AutocompleteConfig(cfg).MinPrefix)
}
