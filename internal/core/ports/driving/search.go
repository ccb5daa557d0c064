package driving

import (
	"context"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search runs a ranked full-text search across the requested entity types.
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
}

// Autocompleter provides type-ahead suggestions.
type Autocompleter interface {
	// Suggest merges history, popular and content suggestions for a prefix.
	// It never fails; unavailable sources are skipped.
	Suggest(ctx context.Context, req domain.SuggestRequest) *domain.SuggestResponse

	// Trending returns the most frequent queries of the last days.
	Trending(ctx context.Context, limit, days int) []domain.PopularQuery
}
