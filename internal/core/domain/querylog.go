package domain

import (
	"math"
	"time"
)

// SearchQueryRecord is one logged search.
type SearchQueryRecord struct {
	ID            string
	UserID        string
	SessionID     string
	Query         string
	Entities      []EntityType
	Filters       SearchFilters
	Sort          SortMode
	ResultsCount  int
	ExecutionTime time.Duration
	SearchedAt    time.Time

	// Clicks is append-only.
	Clicks []ClickedResult
}

// TypeLabel returns the entity filter label used by searches-by-type analytics.
func (r SearchQueryRecord) TypeLabel() string {
	return EntityNames(r.Entities)
}

// ClickedResult records a click on a search result.
type ClickedResult struct {
	ResultID   string     `json:"resultId"`
	ResultType EntityType `json:"resultType"`
	Position   int        `json:"position"`
	ClickedAt  time.Time  `json:"clickedAt"`
}

// TimeRange bounds analytics queries. A zero bound is open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls within the range, inclusively.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// LastDays returns the range covering the days before now.
func LastDays(now time.Time, days int) TimeRange {
	return TimeRange{From: now.AddDate(0, 0, -days)}
}

// TopSearch is a query text with its aggregate statistics.
type TopSearch struct {
	Query            string        `json:"query"`
	Count            int           `json:"count"`
	AvgResults       float64       `json:"avgResults"`
	AvgExecutionTime time.Duration `json:"avgExecutionTime"`
}

// TypeCount is the number of searches for one entity filter label.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// SearchAnalytics summarises the query log over a time range.
type SearchAnalytics struct {
	TotalSearches      int           `json:"totalSearches"`
	UniqueQueries      int           `json:"uniqueQueries"`
	AvgExecutionTime   time.Duration `json:"avgExecutionTime"`
	AvgResultsCount    float64       `json:"avgResultsCount"`
	TopSearches        []TopSearch   `json:"topSearches"`
	ZeroResultSearches int           `json:"zeroResultSearches"`
	ZeroResultRate     float64       `json:"zeroResultRate"`
	SearchesByType     []TypeCount   `json:"searchesByType"`
}

// ClickThroughStats is the share of searches that received a click.
type ClickThroughStats struct {
	TotalSearches      int     `json:"totalSearches"`
	SearchesWithClicks int     `json:"searchesWithClicks"`
	Rate               float64 `json:"ctr"`
}

// TrendPoint is one day of search volume.
type TrendPoint struct {
	Date             string        `json:"date"`
	Count            int           `json:"count"`
	AvgResults       float64       `json:"avgResults"`
	AvgExecutionTime time.Duration `json:"avgExecutionTime"`
}

// UserBehavior summarises one user's searches.
type UserBehavior struct {
	UserID            string      `json:"userId"`
	TotalSearches     int         `json:"totalSearches"`
	UniqueQueries     int         `json:"uniqueQueries"`
	AvgResultsClicked float64     `json:"avgResultsClicked"`
	TopQueries        []TopSearch `json:"topQueries"`
}

// Percent returns part/total as a percentage rounded to 2 decimals, or 0 when total is 0.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round(float64(part)/float64(total)*100, 2)
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
