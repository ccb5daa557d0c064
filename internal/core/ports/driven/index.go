package driven

import (
	"context"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// IndexGateway is the narrow boundary to the search index.
//
// Failures wrap domain.ErrIndexUnavailable (transport, 5xx, closed) or
// domain.ErrIndexRequest (rejected request). Writes are visible to
// searches when the call returns.
type IndexGateway interface {
	// Ping checks that the index service is reachable.
	Ping(ctx context.Context) error

	// EnsureIndex creates the entity's index if absent.
	// Returns true when the index was created by this call.
	EnsureIndex(ctx context.Context, def domain.IndexDefinition) (bool, error)

	// IndexDocument upserts a document by id.
	IndexDocument(ctx context.Context, doc domain.IndexedDocument) error

	// UpdateDocument merges fields into an existing document.
	UpdateDocument(ctx context.Context, entity domain.EntityType, id string, fields map[string]any) error

	// DeleteDocument removes a document. A missing document is not an error.
	DeleteDocument(ctx context.Context, entity domain.EntityType, id string) error

	// BulkIndex upserts documents in one round trip and reports per-item failures.
	BulkIndex(ctx context.Context, entity domain.EntityType, docs []domain.IndexedDocument) (domain.BulkResult, error)

	// Search runs a structured query over the given entity indices.
	Search(ctx context.Context, entities []domain.EntityType, q domain.StructuredQuery, page domain.Page) (*domain.SearchHits, error)

	// Completion returns content suggestions whose suggest field starts with prefix.
	Completion(ctx context.Context, entities []domain.EntityType, prefix string, limit int) ([]domain.Suggestion, error)

	// Count returns the number of documents in the entity's index.
	Count(ctx context.Context, entity domain.EntityType) (int, error)

	// Health reports the backend's state.
	Health(ctx context.Context) (*domain.IndexHealth, error)

	// Close releases resources.
	Close() error
}
