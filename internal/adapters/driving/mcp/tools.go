package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

const defaultToolLimit = 10

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query    string   `json:"query" jsonschema:"free text; supports \"phrases\", field:value filters and NOT terms"`
	Types    string   `json:"types,omitempty" jsonschema:"comma-separated entity types: posts, users, comments or all"`
	Tags     []string `json:"tags,omitempty" jsonschema:"match posts carrying any of these tags"`
	Author   string   `json:"author,omitempty" jsonschema:"exact author username"`
	Category string   `json:"category,omitempty" jsonschema:"exact post category"`
	Sort     string   `json:"sort,omitempty" jsonschema:"relevance, newest, oldest or popular"`
	Offset   int      `json:"offset,omitempty" jsonschema:"number of results to skip"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	UserID   string   `json:"user_id,omitempty" jsonschema:"searching user, recorded in the query log"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Total           int                  `json:"total"`
	Count           int                  `json:"count"`
	Results         []SearchResultOutput `json:"results"`
	QueryID         string               `json:"query_id,omitempty"`
	ExecutionTimeMs float64              `json:"execution_time_ms"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Score      float64             `json:"score"`
	Data       map[string]any      `json:"data,omitempty"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// AutocompleteInput is the input schema for the autocomplete tool.
type AutocompleteInput struct {
	Prefix string `json:"prefix" jsonschema:"text typed so far; at least two characters"`
	Types  string `json:"types,omitempty" jsonschema:"comma-separated entity types for content suggestions"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of suggestions (default 10)"`
	UserID string `json:"user_id,omitempty" jsonschema:"user whose search history is consulted"`
}

// AutocompleteOutput is the output schema for the autocomplete tool.
type AutocompleteOutput struct {
	Suggestions []SuggestionOutput `json:"suggestions"`
}

// SuggestionOutput is a single suggestion.
type SuggestionOutput struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Category string `json:"category"`
	Type     string `json:"type,omitempty"`
	ID       string `json:"id,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// TriggerSyncInput is the input schema for the trigger_sync tool.
type TriggerSyncInput struct {
	Types       string `json:"types,omitempty" jsonschema:"comma-separated entity types for a full sync (default all)"`
	Incremental bool   `json:"incremental,omitempty" jsonschema:"run an incremental pass instead of a full sync"`
}

// TriggerSyncOutput is the output schema for the trigger_sync tool.
type TriggerSyncOutput struct {
	Mode   string         `json:"mode"`
	Counts map[string]int `json:"counts"`
	Synced int            `json:"synced"`
	Failed int            `json:"failed"`
}

// AnalyticsInput is the input schema for the analytics tool.
type AnalyticsInput struct {
	Days int `json:"days,omitempty" jsonschema:"look-back window in days (default 7)"`
}

// AnalyticsOutput is the output schema for the analytics tool.
type AnalyticsOutput struct {
	TotalSearches      int               `json:"total_searches"`
	UniqueQueries      int               `json:"unique_queries"`
	AvgExecutionTimeMs float64           `json:"avg_execution_time_ms"`
	AvgResultsCount    float64           `json:"avg_results_count"`
	ZeroResultSearches int               `json:"zero_result_searches"`
	ZeroResultRate     float64           `json:"zero_result_rate"`
	ClickThroughRate   float64           `json:"click_through_rate"`
	TopSearches        []TopSearchOutput `json:"top_searches"`
	SearchesByType     map[string]int    `json:"searches_by_type"`
}

// TopSearchOutput is a frequent query.
type TopSearchOutput struct {
	Query      string  `json:"query"`
	Count      int     `json:"count"`
	AvgResults float64 `json:"avg_results"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search posts, users and comments",
	}, s.handleSearch)

	if s.ports.Suggest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "autocomplete",
			Description: "Suggest completions from search history, popular queries and indexed content",
		}, s.handleAutocomplete)
	}

	if s.ports.Scheduler != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "trigger_sync",
			Description: "Re-index records from the primary store now",
		}, s.handleTriggerSync)
	}

	if s.ports.Analytics != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "analytics",
			Description: "Summarise recent searches",
		}, s.handleAnalytics)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	entities, err := domain.ParseEntityFilter(input.Types)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultToolLimit
	}

	resp, err := s.ports.Search.Search(ctx, domain.SearchRequest{
		Query:    input.Query,
		Entities: entities,
		Filters: domain.SearchFilters{
			Tags:     input.Tags,
			Author:   input.Author,
			Category: input.Category,
		},
		Sort:   domain.ParseSortMode(input.Sort),
		Offset: input.Offset,
		Limit:  limit,
		UserID: input.UserID,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Total:           resp.Total,
		Count:           len(resp.Results),
		Results:         make([]SearchResultOutput, len(resp.Results)),
		QueryID:         resp.QueryID,
		ExecutionTimeMs: millis(resp.ExecutionTime),
	}
	for i, r := range resp.Results {
		output.Results[i] = SearchResultOutput{
			ID:         r.ID,
			Type:       r.Type.String(),
			Score:      r.Score,
			Data:       r.Data,
			Highlights: r.Highlights,
		}
	}

	return nil, output, nil
}

// handleAutocomplete handles the autocomplete tool invocation.
func (s *Server) handleAutocomplete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AutocompleteInput,
) (*mcp.CallToolResult, AutocompleteOutput, error) {
	entities, err := domain.ParseEntityFilter(input.Types)
	if err != nil {
		return nil, AutocompleteOutput{}, err
	}

	resp := s.ports.Suggest.Suggest(ctx, domain.SuggestRequest{
		Prefix:   input.Prefix,
		Entities: entities,
		Limit:    input.Limit,
		UserID:   input.UserID,
	})

	output := AutocompleteOutput{Suggestions: make([]SuggestionOutput, 0, len(resp.Suggestions))}
	for _, sg := range resp.Suggestions {
		out := SuggestionOutput{
			Text:     sg.Text,
			Source:   string(sg.Source),
			Category: sg.Source.Category(),
			ID:       sg.ID,
			Count:    sg.Count,
		}
		if sg.Source == domain.SourceContent {
			out.Type = sg.Entity.String()
		}
		output.Suggestions = append(output.Suggestions, out)
	}
	return nil, output, nil
}

// handleTriggerSync handles the trigger_sync tool invocation.
func (s *Server) handleTriggerSync(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TriggerSyncInput,
) (*mcp.CallToolResult, TriggerSyncOutput, error) {
	var (
		report *domain.SyncReport
		err    error
	)
	if input.Incremental {
		report, err = s.ports.Scheduler.TriggerIncremental(ctx)
	} else {
		entities, perr := domain.ParseEntityFilter(input.Types)
		if perr != nil {
			return nil, TriggerSyncOutput{}, perr
		}
		report, err = s.ports.Scheduler.TriggerFull(ctx, entities)
	}
	if report == nil {
		if err == nil {
			err = errors.New("sync returned no report")
		}
		return nil, TriggerSyncOutput{}, err
	}

	// A partial pass still reports its counts.
	output := TriggerSyncOutput{
		Mode:   string(report.Mode),
		Counts: report.Counts(),
		Synced: report.Synced(),
		Failed: report.Failed(),
	}
	return nil, output, err
}

// handleAnalytics handles the analytics tool invocation.
func (s *Server) handleAnalytics(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyticsInput,
) (*mcp.CallToolResult, AnalyticsOutput, error) {
	days := input.Days
	if days <= 0 {
		days = 7
	}
	r := domain.LastDays(time.Now(), days)

	stats, err := s.ports.Analytics.GetAnalytics(ctx, r)
	if err != nil {
		return nil, AnalyticsOutput{}, err
	}
	ctr, err := s.ports.Analytics.ClickThroughRate(ctx, r)
	if err != nil {
		return nil, AnalyticsOutput{}, err
	}

	output := AnalyticsOutput{
		TotalSearches:      stats.TotalSearches,
		UniqueQueries:      stats.UniqueQueries,
		AvgExecutionTimeMs: millis(stats.AvgExecutionTime),
		AvgResultsCount:    stats.AvgResultsCount,
		ZeroResultSearches: stats.ZeroResultSearches,
		ZeroResultRate:     stats.ZeroResultRate,
		ClickThroughRate:   ctr.Rate,
		TopSearches:        make([]TopSearchOutput, len(stats.TopSearches)),
		SearchesByType:     make(map[string]int, len(stats.SearchesByType)),
	}
	for i, ts := range stats.TopSearches {
		output.TopSearches[i] = TopSearchOutput{Query: ts.Query, Count: ts.Count, AvgResults: ts.AvgResults}
	}
	for _, tc := range stats.SearchesByType {
		output.SearchesByType[tc.Type] = tc.Count
	}
	return nil, output, nil
}

func millis(d time.Duration) float64 {
	return domain.Round(float64(d)/float64(time.Millisecond), 2)
}
