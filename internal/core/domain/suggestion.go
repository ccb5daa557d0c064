package domain

// Autocomplete limits.
const (
	MinPrefixLength     = 2
	DefaultSuggestLimit = 10
	HistorySuggestLimit = 5
	PopularSuggestLimit = 5
)

// SuggestionSource identifies where a suggestion came from.
type SuggestionSource string

// Suggestion sources, in merge priority order.
const (
	SourceHistory SuggestionSource = "history"
	SourcePopular SuggestionSource = "popular"
	SourceContent SuggestionSource = "content"
)

// Category returns the display bucket name for the source.
func (s SuggestionSource) Category() string {
	switch s {
	case SourceHistory:
		return "Recent Searches"
	case SourcePopular:
		return "Popular Searches"
	default:
		return "Suggestions"
	}
}

// Suggestion is a single autocomplete candidate.
type Suggestion struct {
	Text   string           `json:"text"`
	Source SuggestionSource `json:"source"`

	// Entity is set for content suggestions.
	Entity EntityType `json:"type,omitempty"`

	// ID is the matching document for content suggestions.
	ID string `json:"id,omitempty"`

	// Score is the index score for content suggestions.
	Score float64 `json:"score,omitempty"`

	// Count is the query frequency for popular suggestions.
	Count int `json:"count,omitempty"`
}

// SuggestionCategory groups suggestions by source for display.
type SuggestionCategory struct {
	Name        string       `json:"name"`
	Suggestions []Suggestion `json:"suggestions"`
}

// SuggestRequest is an autocomplete request.
type SuggestRequest struct {
	Prefix   string
	Entities []EntityType
	Limit    int
	UserID   string
}

// SuggestResponse is the merged autocomplete result.
type SuggestResponse struct {
	Suggestions []Suggestion         `json:"suggestions"`
	Categories  []SuggestionCategory `json:"categories"`
}

// PopularQuery is a query text aggregated over the query log.
type PopularQuery struct {
	Query      string  `json:"query"`
	Count      int     `json:"count"`
	AvgResults float64 `json:"avgResults"`
}
