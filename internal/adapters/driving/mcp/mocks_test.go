package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
)

var (
	_ driving.SearchService    = (*mockSearchService)(nil)
	_ driving.Autocompleter    = (*mockAutocompleter)(nil)
	_ driving.SyncScheduler    = (*mockScheduler)(nil)
	_ driving.AnalyticsService = (*mockAnalytics)(nil)
)

// mockSearchService is a mock implementation of driving.SearchService.
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
	if m.resp == nil {
		return &domain.SearchResponse{Results: []domain.SearchResult{}}, nil
	}
	return m.resp, nil
}

// mockAutocompleter is a mock implementation of driving.Autocompleter.
type mockAutocompleter struct {
	resp     *domain.SuggestResponse
	trending []domain.PopularQuery
	lastReq  domain.SuggestRequest
}

func (m *mockAutocompleter) Suggest(_ context.Context, req domain.SuggestRequest) *domain.SuggestResponse {
	m.lastReq = req
	if m.resp == nil {
		return &domain.SuggestResponse{Suggestions: []domain.Suggestion{}, Categories: []domain.SuggestionCategory{}}
	}
	return m.resp
}

func (m *mockAutocompleter) Trending(_ context.Context, _, _ int) []domain.PopularQuery {
	return m.trending
}

// mockScheduler is a mock implementation of driving.SyncScheduler.
type mockScheduler struct {
	status       domain.SchedulerStatus
	report       *domain.SyncReport
	history      []domain.TaskResult
	err          error
	fullEntities []domain.EntityType
	fullCalls    int
	incCalls     int
}

func (m *mockScheduler) Initialize(context.Context) error    { return m.err }
func (m *mockScheduler) Start(context.Context) error         { return m.err }
func (m *mockScheduler) Stop() error                         { return nil }
func (m *mockScheduler) SetSyncInterval(time.Duration) error { return nil }
func (m *mockScheduler) Status() domain.SchedulerStatus      { return m.status }

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
	return m.history, m.err
}

// mockAnalytics is a mock implementation of driving.AnalyticsService.
type mockAnalytics struct {
	stats    *domain.SearchAnalytics
	ctr      *domain.ClickThroughStats
	trends   []domain.TrendPoint
	behavior *domain.UserBehavior
	err      error
	lastDays int
	lastUser string
}

func (m *mockAnalytics) GetAnalytics(context.Context, domain.TimeRange) (*domain.SearchAnalytics, error) {
	return m.stats, m.err
}

func (m *mockAnalytics) ClickThroughRate(context.Context, domain.TimeRange) (*domain.ClickThroughStats, error) {
	return m.ctr, m.err
}

func (m *mockAnalytics) SearchTrends(_ context.Context, days int) ([]domain.TrendPoint, error) {
	m.lastDays = days
	return m.trends, m.err
}

func (m *mockAnalytics) UserBehavior(_ context.Context, userID string, _ int) (*domain.UserBehavior, error) {
	m.lastUser = userID
	return m.behavior, m.err
}

func (m *mockAnalytics) TrackClick(context.Context, string, domain.ClickedResult) error {
	return m.err
}
