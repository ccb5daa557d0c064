package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
	"github.com/custodia-labs/searchsync/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService runs ranked full-text searches against the index.
type SearchService struct {
	index    driven.IndexGateway
	builder  *QueryBuilder
	recorder driving.QueryLogRecorder
	metrics  driven.Metrics
	now      func() time.Time
}

// NewSearchService creates a new search service.
// The recorder is optional (can be nil); without it searches are not logged.
func NewSearchService(index driven.IndexGateway, recorder driving.QueryLogRecorder) *SearchService {
	return &SearchService{
		index:    index,
		builder:  NewQueryBuilder(),
		recorder: recorder,
		metrics:  driven.NopMetrics{},
		now:      time.Now,
	}
}

// SetMetrics sets the metrics sink.
func (s *SearchService) SetMetrics(m driven.Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Search parses the query, builds a structured query and runs it.
// The search is logged only for identified users.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", req.Query)

	limit := req.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	if limit > domain.MaxSearchLimit {
		limit = domain.MaxSearchLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	logger.Debug("Limit: %d, Offset: %d", limit, offset)

	pq := ParseQuery(req.Query)
	entities := pq.MergeEntities(req.Entities)
	filters := pq.MergeFilters(req.Filters)
	if len(entities) == 0 {
		logger.Debug("Entity filters do not overlap, returning no results")
		return &domain.SearchResponse{Results: []domain.SearchResult{}}, nil
	}

	q := s.builder.BuildParsed(pq, filters, req.Sort)
	logger.Debug("Entities: %s, match all: %t, filters: %d", domain.EntityNames(entities), q.MatchAll, len(q.Filters))

	start := s.now()
	hits, err := s.index.Search(ctx, entities, q, domain.Page{Offset: offset, Limit: limit})
	elapsed := s.now().Sub(start)
	if err != nil {
		s.metrics.SearchCompleted(domain.EntityNames(entities), elapsed, 0, err)
		logger.Warn("Search failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}
	s.metrics.SearchCompleted(domain.EntityNames(entities), elapsed, hits.Total, nil)

	resp := &domain.SearchResponse{
		Total:         hits.Total,
		Results:       make([]domain.SearchResult, 0, len(hits.Hits)),
		Aggregations:  hits.Aggregations,
		ExecutionTime: elapsed,
	}
	for _, h := range hits.Hits {
		resp.Results = append(resp.Results, domain.SearchResult{
			ID:         h.ID,
			Type:       h.Entity,
			Score:      h.Score,
			Data:       h.Fields,
			Highlights: h.Highlights,
		})
	}
	logger.Info("Final results: %d of %d", len(resp.Results), resp.Total)

	if req.UserID != "" && s.recorder != nil {
		resp.QueryID = s.recorder.Record(domain.SearchQueryRecord{
			UserID:        req.UserID,
			SessionID:     req.SessionID,
			Query:         strings.TrimSpace(req.Query),
			Entities:      entities,
			Filters:       filters,
			Sort:          domain.ParseSortMode(string(req.Sort)),
			ResultsCount:  hits.Total,
			ExecutionTime: elapsed,
			SearchedAt:    start,
		})
	}
	return resp, nil
}
