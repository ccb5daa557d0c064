package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
	"github.com/custodia-labs/searchsync/internal/logger"
)

// Ensure Autocompleter implements the interface.
var _ driving.Autocompleter = (*Autocompleter)(nil)

// AutocompleteConfig holds autocomplete settings.
type AutocompleteConfig struct {
	MinPrefix    int
	DefaultLimit int
	MaxLimit     int
	HistoryLimit int
	PopularLimit int
}

// DefaultAutocompleteConfig returns the default autocomplete settings.
func DefaultAutocompleteConfig() AutocompleteConfig {
	return AutocompleteConfig{
		MinPrefix:    domain.MinPrefixLength,
		DefaultLimit: domain.DefaultSuggestLimit,
		MaxLimit:     50,
		HistoryLimit: domain.HistorySuggestLimit,
		PopularLimit: domain.PopularSuggestLimit,
	}
}

// Autocompleter merges suggestions from the user's history, popular queries
// and index content.
type Autocompleter struct {
	index   driven.IndexGateway
	log     driven.QueryLogStore
	metrics driven.Metrics
	config  AutocompleteConfig
	now     func() time.Time
}

// NewAutocompleter creates an autocompleter. The query log store is optional;
// without it only content suggestions are returned.
func NewAutocompleter(index driven.IndexGateway, log driven.QueryLogStore, config AutocompleteConfig) *Autocompleter {
	defaults := DefaultAutocompleteConfig()
	if config.MinPrefix <= 0 {
		config.MinPrefix = defaults.MinPrefix
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaults.DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = defaults.MaxLimit
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = defaults.HistoryLimit
	}
	if config.PopularLimit <= 0 {
		config.PopularLimit = defaults.PopularLimit
	}
	return &Autocompleter{
		index:   index,
		log:     log,
		metrics: driven.NopMetrics{},
		config:  config,
		now:     time.Now,
	}
}

// SetMetrics sets the metrics sink.
func (a *Autocompleter) SetMetrics(m driven.Metrics) {
	if m != nil {
		a.metrics = m
	}
}

// Suggest fans out to every source concurrently and merges the results in
// history, popular, content order. A failing source is skipped.
func (a *Autocompleter) Suggest(ctx context.Context, req domain.SuggestRequest) *domain.SuggestResponse {
	prefix := strings.TrimSpace(req.Prefix)
	if utf8.RuneCountInString(prefix) < a.config.MinPrefix {
		return emptySuggestions()
	}

	limit := req.Limit
	if limit <= 0 {
		limit = a.config.DefaultLimit
	}
	if limit > a.config.MaxLimit {
		limit = a.config.MaxLimit
	}
	entities := req.Entities
	if len(entities) == 0 {
		entities = domain.AllEntityTypes()
	}

	var (
		history []string
		popular []domain.PopularQuery
		content []domain.Suggestion
		g       errgroup.Group
	)

	g.Go(func() error {
		var err error
		content, err = a.index.Completion(ctx, entities, prefix, limit)
		if err != nil {
			a.sourceFailed(domain.SourceContent, err)
			content = nil
		}
		return nil
	})
	if a.log != nil && req.UserID != "" {
		g.Go(func() error {
			var err error
			history, err = a.log.UserHistory(ctx, req.UserID, prefix, a.config.HistoryLimit)
			if err != nil {
				a.sourceFailed(domain.SourceHistory, err)
				history = nil
			}
			return nil
		})
	}
	if a.log != nil {
		g.Go(func() error {
			var err error
			popular, err = a.log.PopularQueries(ctx, prefix, time.Time{}, a.config.PopularLimit)
			if err != nil {
				a.sourceFailed(domain.SourcePopular, err)
				popular = nil
			}
			return nil
		})
	}
	_ = g.Wait()

	return mergeSuggestions(history, popular, content, limit)
}

func (a *Autocompleter) sourceFailed(source domain.SuggestionSource, err error) {
	a.metrics.AutocompleteSourceFailed(string(source))
	logger.Warn("Autocomplete %s source failed: %v", source, err)
}

// Trending returns the most frequent queries of the last days.
func (a *Autocompleter) Trending(ctx context.Context, limit, days int) []domain.PopularQuery {
	if a.log == nil {
		return []domain.PopularQuery{}
	}
	if limit <= 0 {
		limit = 10
	}
	if days <= 0 {
		days = 7
	}
	trending, err := a.log.PopularQueries(ctx, "", a.now().AddDate(0, 0, -days), limit)
	if err != nil {
		logger.Warn("Trending searches failed: %v", err)
		return []domain.PopularQuery{}
	}
	return trending
}

// mergeSuggestions dedupes case-insensitively keeping the first occurrence,
// truncates to limit and groups by source.
func mergeSuggestions(history []string, popular []domain.PopularQuery, content []domain.Suggestion, limit int) *domain.SuggestResponse {
	all := make([]domain.Suggestion, 0, len(history)+len(popular)+len(content))
	for _, h := range history {
		all = append(all, domain.Suggestion{Text: h, Source: domain.SourceHistory})
	}
	for _, p := range popular {
		all = append(all, domain.Suggestion{Text: p.Query, Source: domain.SourcePopular, Count: p.Count})
	}
	for _, c := range content {
		c.Source = domain.SourceContent
		all = append(all, c)
	}

	seen := make(map[string]bool, len(all))
	merged := make([]domain.Suggestion, 0, limit)
	for _, s := range all {
		if len(merged) == limit {
			break
		}
		key := strings.ToLower(strings.TrimSpace(s.Text))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, s)
	}

	resp := emptySuggestions()
	resp.Suggestions = merged
	for _, src := range []domain.SuggestionSource{domain.SourceHistory, domain.SourcePopular, domain.SourceContent} {
		var bucket []domain.Suggestion
		for _, s := range merged {
			if s.Source == src {
				bucket = append(bucket, s)
			}
		}
		if len(bucket) > 0 {
			resp.Categories = append(resp.Categories, domain.SuggestionCategory{Name: src.Category(), Suggestions: bucket})
		}
	}
	return resp
}

func emptySuggestions() *domain.SuggestResponse {
	return &domain.SuggestResponse{
		Suggestions: []domain.Suggestion{},
		Categories:  []domain.SuggestionCategory{},
	}
}
