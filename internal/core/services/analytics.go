package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
)

// Ensure AnalyticsService implements the interface.
var _ driving.AnalyticsService = (*AnalyticsService)(nil)

const (
	topSearchesLimit  = 10
	topUserQueries    = 5
	defaultTrendsDays = 30
)

// AnalyticsService reports on the query log.
type AnalyticsService struct {
	store    driven.QueryLogStore
	recorder driving.QueryLogRecorder
	now      func() time.Time
}

// NewAnalyticsService creates an analytics service.
// Clicks go through the recorder when one is given, else straight to the store.
func NewAnalyticsService(store driven.QueryLogStore, recorder driving.QueryLogRecorder) *AnalyticsService {
	return &AnalyticsService{
		store:    store,
		recorder: recorder,
		now:      time.Now,
	}
}

// GetAnalytics summarises searches within r.
func (s *AnalyticsService) GetAnalytics(ctx context.Context, r domain.TimeRange) (*domain.SearchAnalytics, error) {
	a, err := s.store.Analytics(ctx, r, topSearchesLimit)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	return a, nil
}

// ClickThroughRate reports the share of searches within r that received a click.
func (s *AnalyticsService) ClickThroughRate(ctx context.Context, r domain.TimeRange) (*domain.ClickThroughStats, error) {
	c, err := s.store.ClickThrough(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("click-through rate: %w", err)
	}
	return c, nil
}

// SearchTrends returns daily search volume over the last days (default 30).
func (s *AnalyticsService) SearchTrends(ctx context.Context, days int) ([]domain.TrendPoint, error) {
	if days <= 0 {
		days = defaultTrendsDays
	}
	t, err := s.store.Trends(ctx, domain.LastDays(s.now(), days))
	if err != nil {
		return nil, fmt.Errorf("search trends: %w", err)
	}
	return t, nil
}

// UserBehavior summarises a user's searches over the last days (default 30).
func (s *AnalyticsService) UserBehavior(ctx context.Context, userID string, days int) (*domain.UserBehavior, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", domain.ErrInvalidInput)
	}
	if days <= 0 {
		days = defaultTrendsDays
	}
	b, err := s.store.UserBehavior(ctx, userID, domain.LastDays(s.now(), days), topUserQueries)
	if err != nil {
		return nil, fmt.Errorf("user behavior: %w", err)
	}
	return b, nil
}

// TrackClick records a click on a search result.
func (s *AnalyticsService) TrackClick(ctx context.Context, queryID string, click domain.ClickedResult) error {
	if queryID == "" || click.ResultID == "" {
		return fmt.Errorf("%w: query id and result id required", domain.ErrInvalidInput)
	}
	if click.ClickedAt.IsZero() {
		click.ClickedAt = s.now()
	}
	if s.recorder != nil {
		s.recorder.RecordClick(queryID, click)
		return nil
	}
	if err := s.store.AppendClick(ctx, queryID, click); err != nil {
		return fmt.Errorf("track click: %w", err)
	}
	return nil
}
