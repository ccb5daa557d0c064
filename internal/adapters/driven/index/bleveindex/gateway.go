package bleveindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/logger"
)

// Ensure Gateway implements the interface.
var _ driven.IndexGateway = (*Gateway)(nil)

// BackendName identifies this gateway in health reports.
const BackendName = "bleve"

// Options configures the gateway.
type Options struct {
	// DataDir holds on-disk indices. Empty keeps every index in memory.
	DataDir string

	// Prefix is the index name prefix. Defaults to domain.DefaultIndexPrefix.
	Prefix string
}

// Gateway serves the index gateway from one bleve index per entity type.
// All methods are safe for concurrent use.
type Gateway struct {
	opts Options

	mu      sync.RWMutex
	indices map[domain.EntityType]bleve.Index
	byName  map[string]domain.EntityType
	closed  bool
}

// New creates a gateway. Indices are created or opened by EnsureIndex.
func New(opts Options) (*Gateway, error) {
	if opts.Prefix == "" {
		opts.Prefix = domain.DefaultIndexPrefix
	}
	if err := registerHighlighter(); err != nil {
		return nil, fmt.Errorf("registering highlighter: %w", err)
	}
	if opts.DataDir != "" {
		if err := os.MkdirAll(opts.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}
	return &Gateway{
		opts:    opts,
		indices: make(map[domain.EntityType]bleve.Index),
		byName:  make(map[string]domain.EntityType),
	}, nil
}

// Ping reports whether the gateway is open.
func (g *Gateway) Ping(_ context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return fmt.Errorf("%w: gateway closed", domain.ErrIndexUnavailable)
	}
	return nil
}

// EnsureIndex creates the entity's index, or opens it from the data directory.
func (g *Gateway) EnsureIndex(_ context.Context, def domain.IndexDefinition) (bool, error) {
	if !def.Entity.Valid() {
		return false, fmt.Errorf("%w: unknown entity type", domain.ErrInvalidIndexDefinition)
	}
	required := []string{domain.FieldEntityType, domain.FieldVisible}
	if def.SuggestField != "" {
		required = append(required, def.SuggestField)
	}
	if err := def.Validate(required...); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false, fmt.Errorf("%w: gateway closed", domain.ErrIndexUnavailable)
	}
	if _, ok := g.indices[def.Entity]; ok {
		return false, nil
	}

	m, err := buildMapping(def)
	if err != nil {
		return false, err
	}

	name := def.Entity.IndexName(g.opts.Prefix)
	created := true
	var idx bleve.Index
	if g.opts.DataDir == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		path := filepath.Join(g.opts.DataDir, name+".bleve")
		idx, err = bleve.Open(path)
		switch {
		case err == bleve.ErrorIndexPathDoesNotExist:
			idx, err = bleve.New(path, m)
		case err == nil:
			created = false
		}
	}
	if err != nil {
		return false, fmt.Errorf("%w: creating index %s: %v", domain.ErrIndexUnavailable, name, err)
	}

	idx.SetName(name)
	g.indices[def.Entity] = idx
	g.byName[name] = def.Entity
	if created {
		logger.Debug("Created bleve index %s", name)
	}
	return created, nil
}

// index returns the entity's index. Callers hold g.mu.
func (g *Gateway) index(entity domain.EntityType) (bleve.Index, error) {
	if g.closed {
		return nil, fmt.Errorf("%w: gateway closed", domain.ErrIndexUnavailable)
	}
	idx, ok := g.indices[entity]
	if !ok {
		return nil, fmt.Errorf("%w: index %s not created", domain.ErrIndexUnavailable, entity.IndexName(g.opts.Prefix))
	}
	return idx, nil
}

// IndexDocument upserts a document.
func (g *Gateway) IndexDocument(ctx context.Context, doc domain.IndexedDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id required", domain.ErrIndexRequest)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, err := g.index(doc.Entity)
	if err != nil {
		return err
	}
	if err := idx.Index(doc.ID, doc.Fields); err != nil {
		return fmt.Errorf("%w: indexing %s %s: %v", domain.ErrIndexUnavailable, doc.Entity, doc.ID, err)
	}
	return nil
}

// UpdateDocument merges fields into the stored document and re-indexes it.
func (g *Gateway) UpdateDocument(ctx context.Context, entity domain.EntityType, id string, fields map[string]any) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, err := g.index(entity)
	if err != nil {
		return err
	}

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Fields = []string{"*"}
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: loading %s %s: %v", domain.ErrIndexUnavailable, entity, id, err)
	}
	if len(res.Hits) == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}

	merged := decodeFields(entity.Definition(), res.Hits[0].Fields)
	for k, v := range fields {
		merged[k] = v
	}
	if err := idx.Index(id, merged); err != nil {
		return fmt.Errorf("%w: updating %s %s: %v", domain.ErrIndexUnavailable, entity, id, err)
	}
	return nil
}

// DeleteDocument removes a document. Deleting a missing id succeeds.
func (g *Gateway) DeleteDocument(_ context.Context, entity domain.EntityType, id string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, err := g.index(entity)
	if err != nil {
		return err
	}
	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("%w: deleting %s %s: %v", domain.ErrIndexUnavailable, entity, id, err)
	}
	return nil
}

// BulkIndex writes docs in a single batch. Documents that cannot be added to
// the batch are reported as item failures.
func (g *Gateway) BulkIndex(ctx context.Context, entity domain.EntityType, docs []domain.IndexedDocument) (domain.BulkResult, error) {
	var result domain.BulkResult
	if len(docs) == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, err := g.index(entity)
	if err != nil {
		return result, err
	}

	batch := idx.NewBatch()
	for _, doc := range docs {
		switch {
		case doc.ID == "":
			result.Failed = append(result.Failed, domain.BulkItemError{Err: fmt.Errorf("%w: document id required", domain.ErrIndexRequest)})
			continue
		case doc.Entity != entity:
			result.Failed = append(result.Failed, domain.BulkItemError{ID: doc.ID, Err: fmt.Errorf("%w: %s document in %s batch", domain.ErrIndexRequest, doc.Entity, entity)})
			continue
		}
		if err := batch.Index(doc.ID, doc.Fields); err != nil {
			result.Failed = append(result.Failed, domain.BulkItemError{ID: doc.ID, Err: fmt.Errorf("%w: %v", domain.ErrIndexRequest, err)})
			continue
		}
		result.Indexed++
	}
	if batch.Size() == 0 {
		return result, nil
	}
	if err := idx.Batch(batch); err != nil {
		return domain.BulkResult{}, fmt.Errorf("%w: committing %s batch: %v", domain.ErrIndexUnavailable, entity, err)
	}
	return result, nil
}

// Search runs q over an alias of the selected entity indices.
func (g *Gateway) Search(ctx context.Context, entities []domain.EntityType, q domain.StructuredQuery, page domain.Page) (*domain.SearchHits, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idxs := make([]bleve.Index, 0, len(entities))
	for _, e := range entities {
		idx, err := g.index(e)
		if err != nil {
			return nil, err
		}
		idxs = append(idxs, idx)
	}
	if len(idxs) == 0 {
		return &domain.SearchHits{Hits: []domain.Hit{}, Aggregations: map[string][]domain.Bucket{}}, nil
	}

	size := page.Limit
	if size <= 0 {
		size = domain.DefaultSearchLimit
	}
	req := bleve.NewSearchRequestOptions(translate(q), size, page.Offset, false)
	req.Fields = []string{"*"}
	if len(q.Sort) > 0 {
		req.SortBy(sortOrder(q.Sort))
	}
	if len(q.Highlight.Fields) > 0 {
		req.Highlight = bleve.NewHighlightWithStyle(markHighlighter)
		for _, f := range q.Highlight.Fields {
			req.Highlight.AddField(f)
		}
	}
	for _, a := range q.Aggregations {
		req.AddFacet(a.Name, bleve.NewFacetRequest(a.Field, a.Size))
	}

	res, err := bleve.NewIndexAlias(idxs...).SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexRequest, err)
	}

	out := &domain.SearchHits{
		Total:        int(res.Total),
		Hits:         make([]domain.Hit, 0, len(res.Hits)),
		Aggregations: make(map[string][]domain.Bucket, len(res.Facets)),
	}
	for _, h := range res.Hits {
		entity, ok := g.byName[h.Index]
		if !ok {
			entity, _ = domain.ParseEntityType(fmt.Sprint(h.Fields[domain.FieldEntityType]))
		}
		out.Hits = append(out.Hits, domain.Hit{
			Entity:     entity,
			ID:         h.ID,
			Score:      h.Score,
			Fields:     decodeFields(entity.Definition(), h.Fields),
			Highlights: fragments(h.Fragments, q.Highlight),
		})
	}
	for name, fr := range res.Facets {
		buckets := []domain.Bucket{}
		if fr != nil && fr.Terms != nil {
			for _, t := range fr.Terms.Terms() {
				buckets = append(buckets, domain.Bucket{Key: t.Term, Count: t.Count})
			}
		}
		out.Aggregations[name] = buckets
	}
	return out, nil
}

// Completion matches the prefix against each entity's suggest field.
func (g *Gateway) Completion(ctx context.Context, entities []domain.EntityType, prefix string, limit int) ([]domain.Suggestion, error) {
	tokens := prefixTokens(prefix)
	if len(tokens) == 0 || limit <= 0 {
		return []domain.Suggestion{}, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	suggestions := []domain.Suggestion{}
	for _, e := range entities {
		def := e.Definition()
		if def.SuggestField == "" {
			continue
		}
		idx, err := g.index(e)
		if err != nil {
			return nil, err
		}

		req := bleve.NewSearchRequestOptions(completionQuery(def.SuggestField, tokens), limit, 0, false)
		req.Fields = []string{def.SuggestField}
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: completion on %s: %v", domain.ErrIndexUnavailable, e, err)
		}
		for _, h := range res.Hits {
			text, _ := h.Fields[def.SuggestField].(string)
			if text == "" {
				continue
			}
			suggestions = append(suggestions, domain.Suggestion{
				Text:   text,
				Entity: e,
				ID:     h.ID,
				Score:  h.Score,
			})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// Count returns the number of documents in the entity's index.
func (g *Gateway) Count(_ context.Context, entity domain.EntityType) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, err := g.index(entity)
	if err != nil {
		return 0, err
	}
	n, err := idx.DocCount()
	if err != nil {
		return 0, fmt.Errorf("%w: counting %s: %v", domain.ErrIndexUnavailable, entity, err)
	}
	return int(n), nil
}

// Health reports document counts. Status is yellow until every entity
// index exists.
func (g *Gateway) Health(_ context.Context) (*domain.IndexHealth, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return nil, fmt.Errorf("%w: gateway closed", domain.ErrIndexUnavailable)
	}
	h := &domain.IndexHealth{
		Backend:   BackendName,
		Status:    "green",
		Documents: make(map[string]int, len(g.indices)),
	}
	for _, e := range domain.AllEntityTypes() {
		idx, ok := g.indices[e]
		if !ok {
			h.Status = "yellow"
			continue
		}
		n, err := idx.DocCount()
		if err != nil {
			return nil, fmt.Errorf("%w: counting %s: %v", domain.ErrIndexUnavailable, e, err)
		}
		h.Documents[idx.Name()] = int(n)
	}
	return h, nil
}

// Close closes every index. Later calls fail with ErrIndexUnavailable.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	var errs []error
	for e, idx := range g.indices {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", e, err))
		}
	}
	return errors.Join(errs...)
}
