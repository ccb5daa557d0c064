package driving

import (
	"context"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// QueryLogRecorder writes the query log off the request path.
type QueryLogRecorder interface {
	// Record enqueues a query record and returns its id. It never blocks.
	Record(record domain.SearchQueryRecord) string

	// RecordClick enqueues a click on a logged query. It never blocks.
	RecordClick(queryID string, click domain.ClickedResult)

	// Close stops accepting entries and drains the queue.
	Close(ctx context.Context) error
}

// AnalyticsService reports on the query log.
type AnalyticsService interface {
	// GetAnalytics summarises searches within r.
	GetAnalytics(ctx context.Context, r domain.TimeRange) (*domain.SearchAnalytics, error)

	// ClickThroughRate reports the share of searches that received a click.
	ClickThroughRate(ctx context.Context, r domain.TimeRange) (*domain.ClickThroughStats, error)

	// SearchTrends returns daily search volume over the last days.
	SearchTrends(ctx context.Context, days int) ([]domain.TrendPoint, error)

	// UserBehavior summarises a user's searches over the last days.
	UserBehavior(ctx context.Context, userID string, days int) (*domain.UserBehavior, error)

	// TrackClick records a click on a search result.
	TrackClick(ctx context.Context, queryID string, click domain.ClickedResult) error
}
