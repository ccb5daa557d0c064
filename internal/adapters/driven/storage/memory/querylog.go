package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
)

// Ensure QueryLogStore implements the interface.
var _ driven.QueryLogStore = (*QueryLogStore)(nil)

// QueryLogStore is an in-memory implementation of driven.QueryLogStore.
type QueryLogStore struct {
	mu      sync.RWMutex
	records []*domain.SearchQueryRecord
	byID    map[string]*domain.SearchQueryRecord
}

// NewQueryLogStore creates a new in-memory query log.
func NewQueryLogStore() *QueryLogStore {
	return &QueryLogStore{
		byID: make(map[string]*domain.SearchQueryRecord),
	}
}

// Save appends a copy of record. A missing ID is generated and written back.
func (s *QueryLogStore) Save(_ context.Context, record *domain.SearchQueryRecord) error {
	if record == nil {
		return domain.ErrInvalidInput
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SearchedAt.IsZero() {
		record.SearchedAt = time.Now()
	}

	cp := *record
	cp.Entities = append([]domain.EntityType(nil), record.Entities...)
	cp.Clicks = append([]domain.ClickedResult(nil), record.Clicks...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[cp.ID]; exists {
		return fmt.Errorf("%w: duplicate query id %s", domain.ErrInvalidInput, cp.ID)
	}
	s.records = append(s.records, &cp)
	s.byID[cp.ID] = &cp
	return nil
}

// AppendClick attaches a click to a logged query.
func (s *QueryLogStore) AppendClick(_ context.Context, queryID string, click domain.ClickedResult) error {
	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[queryID]
	if !ok {
		return fmt.Errorf("query %s: %w", queryID, domain.ErrNotFound)
	}
	rec.Clicks = append(rec.Clicks, click)
	return nil
}

// Get returns a copy of one logged query.
func (s *QueryLogStore) Get(_ context.Context, queryID string) (*domain.SearchQueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[queryID]
	if !ok {
		return nil, fmt.Errorf("query %s: %w", queryID, domain.ErrNotFound)
	}
	cp := *rec
	cp.Clicks = append([]domain.ClickedResult(nil), rec.Clicks...)
	return &cp, nil
}

// UserHistory returns the user's distinct past queries starting with prefix, most recent first.
func (s *QueryLogStore) UserHistory(_ context.Context, userID, prefix string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix = strings.ToLower(prefix)
	last := make(map[string]time.Time)
	for _, r := range s.records {
		if r.UserID != userID || !strings.HasPrefix(strings.ToLower(r.Query), prefix) {
			continue
		}
		if t, ok := last[r.Query]; !ok || r.SearchedAt.After(t) {
			last[r.Query] = r.SearchedAt
		}
	}

	history := make([]string, 0, len(last))
	for q := range last {
		history = append(history, q)
	}
	sort.Slice(history, func(i, j int) bool {
		ti, tj := last[history[i]], last[history[j]]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return history[i] < history[j]
	})
	return truncate(history, limit), nil
}

// PopularQueries groups queries by text, most frequent first.
func (s *QueryLogStore) PopularQueries(
	_ context.Context, prefix string, since time.Time, limit int,
) ([]domain.PopularQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix = strings.ToLower(prefix)
	groups := group(s.records, func(r *domain.SearchQueryRecord) bool {
		return strings.HasPrefix(strings.ToLower(r.Query), prefix) && !r.SearchedAt.Before(since)
	})

	popular := make([]domain.PopularQuery, 0, len(groups))
	for _, g := range groups {
		popular = append(popular, domain.PopularQuery{
			Query:      g.query,
			Count:      g.count,
			AvgResults: domain.Round(g.avgResults(), 2),
		})
	}
	sort.Slice(popular, func(i, j int) bool {
		a, b := popular[i], popular[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.AvgResults != b.AvgResults {
			return a.AvgResults > b.AvgResults
		}
		return a.Query < b.Query
	})
	return truncate(popular, limit), nil
}

// Analytics summarises the log within r.
func (s *QueryLogStore) Analytics(_ context.Context, r domain.TimeRange, topLimit int) (*domain.SearchAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in := func(q *domain.SearchQueryRecord) bool { return r.Contains(q.SearchedAt) }
	groups := group(s.records, in)

	a := &domain.SearchAnalytics{UniqueQueries: len(groups)}
	var results int
	var exec time.Duration
	types := make(map[string]int)
	for _, q := range s.records {
		if !in(q) {
			continue
		}
		a.TotalSearches++
		results += q.ResultsCount
		exec += q.ExecutionTime
		if q.ResultsCount == 0 {
			a.ZeroResultSearches++
		}
		types[q.TypeLabel()]++
	}
	if a.TotalSearches > 0 {
		a.AvgResultsCount = domain.Round(float64(results)/float64(a.TotalSearches), 2)
		a.AvgExecutionTime = exec / time.Duration(a.TotalSearches)
	}
	a.ZeroResultRate = domain.Percent(a.ZeroResultSearches, a.TotalSearches)
	a.TopSearches = topSearches(groups, topLimit)

	a.SearchesByType = make([]domain.TypeCount, 0, len(types))
	for t, n := range types {
		a.SearchesByType = append(a.SearchesByType, domain.TypeCount{Type: t, Count: n})
	}
	sort.Slice(a.SearchesByType, func(i, j int) bool {
		x, y := a.SearchesByType[i], a.SearchesByType[j]
		if x.Count != y.Count {
			return x.Count > y.Count
		}
		return x.Type < y.Type
	})
	return a, nil
}

// ClickThrough counts searches with at least one click within r.
func (s *QueryLogStore) ClickThrough(_ context.Context, r domain.TimeRange) (*domain.ClickThroughStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &domain.ClickThroughStats{}
	for _, q := range s.records {
		if !r.Contains(q.SearchedAt) {
			continue
		}
		c.TotalSearches++
		if len(q.Clicks) > 0 {
			c.SearchesWithClicks++
		}
	}
	c.Rate = domain.Percent(c.SearchesWithClicks, c.TotalSearches)
	return c, nil
}

// Trends returns one point per UTC day within r, oldest first.
func (s *QueryLogStore) Trends(_ context.Context, r domain.TimeRange) ([]domain.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		count   int
		results int
		exec    time.Duration
	}
	days := make(map[string]*acc)
	for _, q := range s.records {
		if !r.Contains(q.SearchedAt) {
			continue
		}
		day := q.SearchedAt.UTC().Format(time.DateOnly)
		d, ok := days[day]
		if !ok {
			d = &acc{}
			days[day] = d
		}
		d.count++
		d.results += q.ResultsCount
		d.exec += q.ExecutionTime
	}

	points := make([]domain.TrendPoint, 0, len(days))
	for day, d := range days {
		points = append(points, domain.TrendPoint{
			Date:             day,
			Count:            d.count,
			AvgResults:       domain.Round(float64(d.results)/float64(d.count), 2),
			AvgExecutionTime: d.exec / time.Duration(d.count),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

// UserBehavior summarises one user's searches within r.
func (s *QueryLogStore) UserBehavior(
	_ context.Context, userID string, r domain.TimeRange, topLimit int,
) (*domain.UserBehavior, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mine := func(q *domain.SearchQueryRecord) bool { return q.UserID == userID && r.Contains(q.SearchedAt) }
	groups := group(s.records, mine)

	b := &domain.UserBehavior{UserID: userID, UniqueQueries: len(groups)}
	clicks := 0
	for _, q := range s.records {
		if mine(q) {
			b.TotalSearches++
			clicks += len(q.Clicks)
		}
	}
	if b.TotalSearches > 0 {
		b.AvgResultsClicked = domain.Round(float64(clicks)/float64(b.TotalSearches), 1)
	}
	b.TopQueries = topSearches(groups, topLimit)
	return b, nil
}

// queryGroup aggregates records sharing the same query text.
type queryGroup struct {
	query   string
	count   int
	results int
	exec    time.Duration
}

func (g *queryGroup) avgResults() float64 {
	return float64(g.results) / float64(g.count)
}

func group(records []*domain.SearchQueryRecord, keep func(*domain.SearchQueryRecord) bool) map[string]*queryGroup {
	groups := make(map[string]*queryGroup)
	for _, r := range records {
		if !keep(r) {
			continue
		}
		g, ok := groups[r.Query]
		if !ok {
			g = &queryGroup{query: r.Query}
			groups[r.Query] = g
		}
		g.count++
		g.results += r.ResultsCount
		g.exec += r.ExecutionTime
	}
	return groups
}

func topSearches(groups map[string]*queryGroup, limit int) []domain.TopSearch {
	top := make([]domain.TopSearch, 0, len(groups))
	for _, g := range groups {
		top = append(top, domain.TopSearch{
			Query:            g.query,
			Count:            g.count,
			AvgResults:       domain.Round(g.avgResults(), 2),
			AvgExecutionTime: g.exec / time.Duration(g.count),
		})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Query < top[j].Query
	})
	return truncate(top, limit)
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
