package cli

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/searchsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/searchsync/internal/app"
	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
)

var (
	_ driving.SearchService    = (*mockSearchService)(nil)
	_ driving.Autocompleter    = (*mockAutocompleter)(nil)
	_ driving.SyncEngine       = (*mockEngine)(nil)
	_ driving.SyncScheduler    = (*mockScheduler)(nil)
	_ driving.AnalyticsService = (*mockAnalytics)(nil)
)

type mockSearchService struct {
	resp    *domain.SearchResponse
	err     error
	lastReq domain.SearchRequest
}

func (m *mockSearchService) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type mockAutocompleter struct {
	resp     *domain.SuggestResponse
	trending []domain.PopularQuery
	lastReq  domain.SuggestRequest
	lastDays int
}

func (m *mockAutocompleter) Suggest(_ context.Context, req domain.SuggestRequest) *domain.SuggestResponse {
	m.lastReq = req
	return m.resp
}

func (m *mockAutocompleter) Trending(_ context.Context, _, days int) []domain.PopularQuery {
	m.lastDays = days
	return m.trending
}

type mockEngine struct {
	pingErr   error
	ensureErr error
	syncErr   error
	watermark time.Time

	ensured  int
	synced   []string
	deleted  []string
	loadedWM bool
}

func (m *mockEngine) FullSync(context.Context, []domain.EntityType) (*domain.SyncReport, error) {
	return nil, nil
}

func (m *mockEngine) IncrementalSync(context.Context) (*domain.SyncReport, error) {
	return nil, nil
}

func (m *mockEngine) SyncOne(_ context.Context, entity domain.EntityType, id string) error {
	m.synced = append(m.synced, entity.String()+":"+id)
	return m.syncErr
}

func (m *mockEngine) DeleteOne(_ context.Context, entity domain.EntityType, id string) error {
	m.deleted = append(m.deleted, entity.String()+":"+id)
	return m.syncErr
}

func (m *mockEngine) EnsureIndices(context.Context) error {
	m.ensured++
	return m.ensureErr
}

func (m *mockEngine) Ping(context.Context) error { return m.pingErr }

func (m *mockEngine) LoadWatermark(context.Context) error {
	m.loadedWM = true
	return nil
}

func (m *mockEngine) Watermark() time.Time { return m.watermark }

type mockScheduler struct {
	mu sync.Mutex

	report   *domain.SyncReport
	err      error
	history  []domain.TaskResult
	interval time.Duration

	fullEntities []domain.EntityType
	fullCalls    int
	incCalls     int
	initialized  bool
	started      bool
	stopped      bool
}

func (m *mockScheduler) Initialize(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return m.err
}

func (m *mockScheduler) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *mockScheduler) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockScheduler) SetSyncInterval(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
	return nil
}

func (m *mockScheduler) Status() domain.SchedulerStatus {
	return domain.SchedulerStatus{}
}

func (m *mockScheduler) TriggerFull(_ context.Context, entities []domain.EntityType) (*domain.SyncReport, error) {
	m.fullCalls++
	m.fullEntities = entities
	return m.report, m.err
}

func (m *mockScheduler) TriggerIncremental(context.Context) (*domain.SyncReport, error) {
	m.incCalls++
	return m.report, m.err
}

func (m *mockScheduler) History(context.Context, int) ([]domain.TaskResult, error) {
	return m.history, nil
}

type mockAnalytics struct {
	stats    *domain.SearchAnalytics
	ctr      *domain.ClickThroughStats
	trends   []domain.TrendPoint
	behavior *domain.UserBehavior
	err      error

	lastRange domain.TimeRange
	lastDays  int
	queryID   string
	click     domain.ClickedResult
}

func (m *mockAnalytics) GetAnalytics(_ context.Context, r domain.TimeRange) (*domain.SearchAnalytics, error) {
	m.lastRange = r
	return m.stats, m.err
}

func (m *mockAnalytics) ClickThroughRate(context.Context, domain.TimeRange) (*domain.ClickThroughStats, error) {
	return m.ctr, m.err
}

func (m *mockAnalytics) SearchTrends(_ context.Context, days int) ([]domain.TrendPoint, error) {
	m.lastDays = days
	return m.trends, m.err
}

func (m *mockAnalytics) UserBehavior(_ context.Context, _ string, days int) (*domain.UserBehavior, error) {
	m.lastDays = days
	return m.behavior, m.err
}

func (m *mockAnalytics) TrackClick(_ context.Context, queryID string, click domain.ClickedResult) error {
	m.queryID = queryID
	m.click = click
	return m.err
}

// testServices holds the mocks injected by setupTestServices.
type testServices struct {
	search    *mockSearchService
	suggest   *mockAutocompleter
	engine    *mockEngine
	scheduler *mockScheduler
	analytics *mockAnalytics
}

// setupTestServices injects mock services and returns a cleanup function.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		search: &mockSearchService{resp: &domain.SearchResponse{
			Total: 2,
			Results: []domain.SearchResult{
				{
					ID:         "p1",
					Type:       domain.EntityPost,
					Score:      2.5,
					Data:       map[string]any{"caption": "Fest night", "content": "College fest starts today"},
					Highlights: map[string][]string{"content": {"College <mark>fest</mark> starts today"}},
				},
				{
					ID:    "u1",
					Type:  domain.EntityUser,
					Score: 1.25,
					Data:  map[string]any{"username": "asha"},
				},
			},
			ExecutionTime: 3 * time.Millisecond,
		}},
		suggest:   &mockAutocompleter{},
		engine:    &mockEngine{},
		scheduler: &mockScheduler{},
		analytics: &mockAnalytics{},
	}

	cfg := file.DefaultConfig()
	cfg.Server.MCPAddr = ""
	cfg.Server.MetricsAddr = ""

	SetApp(&app.App{
		Config:    cfg,
		Search:    ts.search,
		Suggest:   ts.suggest,
		Engine:    ts.engine,
		Scheduler: ts.scheduler,
		Analytics: ts.analytics,
	})

	return ts, func() {
		application = nil
		loadedConfig = ""
		resetFlags(rootCmd)
	}
}

// execute runs the root command with args and returns its combined output.
func execute(args ...string) (string, error) {
	return executeContext(context.Background(), args...)
}

func executeContext(ctx context.Context, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
