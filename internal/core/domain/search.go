package domain

import "time"

// Search result limits.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// SearchRequest is a caller's search.
type SearchRequest struct {
	// Query is free text with optional "phrases", field:value filters and NOT terms.
	Query string

	// Entities restricts the searched indices. Empty searches all.
	Entities []EntityType

	// Filters narrows the results.
	Filters SearchFilters

	// Sort orders the results.
	Sort SortMode

	// Offset and Limit page the results.
	Offset int
	Limit  int

	// UserID and SessionID identify the caller for the query log.
	UserID    string
	SessionID string
}

// SearchResult is one result returned to callers.
type SearchResult struct {
	ID         string              `json:"id"`
	Type       EntityType          `json:"type"`
	Score      float64             `json:"score"`
	Data       map[string]any      `json:"data"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// SearchResponse is the outcome of a search.
type SearchResponse struct {
	Total         int                 `json:"total"`
	Results       []SearchResult      `json:"results"`
	Aggregations  map[string][]Bucket `json:"aggregations,omitempty"`
	ExecutionTime time.Duration       `json:"executionTime"`

	// QueryID identifies the logged query for click tracking. Empty when not logged.
	QueryID string `json:"queryId,omitempty"`
}
