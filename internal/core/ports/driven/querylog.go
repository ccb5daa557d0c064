package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// QueryLogStore persists the search query log.
type QueryLogStore interface {
	// Save appends a query record.
	Save(ctx context.Context, record *domain.SearchQueryRecord) error

	// AppendClick attaches a click to a logged query.
	// Returns domain.ErrNotFound if the query does not exist.
	AppendClick(ctx context.Context, queryID string, click domain.ClickedResult) error

	// Get returns one logged query with its clicks.
	Get(ctx context.Context, queryID string) (*domain.SearchQueryRecord, error)

	// UserHistory returns the user's distinct past queries starting with prefix,
	// most recent first.
	UserHistory(ctx context.Context, userID, prefix string, limit int) ([]string, error)

	// PopularQueries groups queries starting with prefix (all when empty) searched
	// since the given time, ordered by frequency desc then average result count desc.
	PopularQueries(ctx context.Context, prefix string, since time.Time, limit int) ([]domain.PopularQuery, error)

	// Analytics summarises the log within r.
	Analytics(ctx context.Context, r domain.TimeRange, topLimit int) (*domain.SearchAnalytics, error)

	// ClickThrough counts searches with at least one click within r.
	ClickThrough(ctx context.Context, r domain.TimeRange) (*domain.ClickThroughStats, error)

	// Trends returns one point per day within r, oldest first.
	Trends(ctx context.Context, r domain.TimeRange) ([]domain.TrendPoint, error)

	// UserBehavior summarises one user's searches within r.
	UserBehavior(ctx context.Context, userID string, r domain.TimeRange, topLimit int) (*domain.UserBehavior, error)
}
