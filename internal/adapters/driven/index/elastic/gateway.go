package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/logger"
)

// Ensure Gateway implements the interface.
var _ driven.IndexGateway = (*Gateway)(nil)

// BackendName identifies this gateway in health reports.
const BackendName = "elasticsearch"

// refreshWaitFor makes writes visible to searches before the call returns.
const refreshWaitFor = "wait_for"

// Options configures the Elasticsearch connection.
type Options struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string

	// Prefix is the index name prefix. Defaults to domain.DefaultIndexPrefix.
	Prefix string

	// Transport overrides the HTTP transport.
	Transport http.RoundTripper
}

// Gateway serves the index gateway from an Elasticsearch cluster.
type Gateway struct {
	es     *elasticsearch.Client
	prefix string
	closed atomic.Bool
}

// New creates a gateway. The client's own retries are disabled; retry
// policy belongs to the resilient decorator.
func New(opts Options) (*Gateway, error) {
	if opts.Prefix == "" {
		opts.Prefix = domain.DefaultIndexPrefix
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    opts.Addresses,
		Username:     opts.Username,
		Password:     opts.Password,
		APIKey:       opts.APIKey,
		Transport:    opts.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &Gateway{es: es, prefix: opts.Prefix}, nil
}

func (g *Gateway) indexName(e domain.EntityType) string {
	return e.IndexName(g.prefix)
}

func (g *Gateway) open() error {
	if g.closed.Load() {
		return fmt.Errorf("%w: gateway closed", domain.ErrIndexUnavailable)
	}
	return nil
}

// check classifies a transport result. On error the body is closed.
func check(op string, res *esapi.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrIndexUnavailable, op, err)
	}
	if !res.IsError() {
		return nil
	}
	defer res.Body.Close()

	reason := errorReason(res.Body)
	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s: [%d] %s", domain.ErrIndexUnavailable, op, res.StatusCode, reason)
	}
	return fmt.Errorf("%w: %s: [%d] %s", domain.ErrIndexRequest, op, res.StatusCode, reason)
}

func errorReason(body io.Reader) string {
	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&e); err != nil || e.Error.Type == "" {
		return "unknown error"
	}
	return e.Error.Type + ": " + e.Error.Reason
}

func drain(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		res.Body.Close()
	}
}

func encode(v any) (*bytes.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding body: %v", domain.ErrIndexRequest, err)
	}
	return bytes.NewReader(b), nil
}

// Ping calls the cluster info endpoint.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.open(); err != nil {
		return err
	}
	res, err := g.es.Info(g.es.Info.WithContext(ctx))
	if err := check("ping", res, err); err != nil {
		return err
	}
	drain(res)
	return nil
}

// EnsureIndex creates the index with settings and mappings if absent.
func (g *Gateway) EnsureIndex(ctx context.Context, def domain.IndexDefinition) (bool, error) {
	if err := g.open(); err != nil {
		return false, err
	}
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

	name := g.indexName(def.Entity)
	res, err := g.es.Indices.Exists([]string{name}, g.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("%w: checking index %s: %v", domain.ErrIndexUnavailable, name, err)
	}
	drain(res)
	switch {
	case res.StatusCode == http.StatusOK:
		return false, nil
	case res.StatusCode != http.StatusNotFound:
		return false, fmt.Errorf("%w: checking index %s: status %d", domain.ErrIndexUnavailable, name, res.StatusCode)
	}

	body, err := encode(indexBody(def))
	if err != nil {
		return false, err
	}
	res, err = g.es.Indices.Create(name,
		g.es.Indices.Create.WithBody(body),
		g.es.Indices.Create.WithContext(ctx),
	)
	if err := check("creating index "+name, res, err); err != nil {
		if strings.Contains(err.Error(), "resource_already_exists_exception") {
			return false, nil
		}
		return false, err
	}
	drain(res)
	logger.Debug("Created elasticsearch index %s", name)
	return true, nil
}

// IndexDocument upserts a document and waits for refresh.
func (g *Gateway) IndexDocument(ctx context.Context, doc domain.IndexedDocument) error {
	if err := g.open(); err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: document id required", domain.ErrIndexRequest)
	}
	body, err := encode(doc.Fields)
	if err != nil {
		return err
	}
	res, err := g.es.Index(g.indexName(doc.Entity), body,
		g.es.Index.WithDocumentID(doc.ID),
		g.es.Index.WithRefresh(refreshWaitFor),
		g.es.Index.WithContext(ctx),
	)
	if err := check(fmt.Sprintf("indexing %s %s", doc.Entity, doc.ID), res, err); err != nil {
		return err
	}
	drain(res)
	return nil
}

// UpdateDocument merges fields into an existing document.
func (g *Gateway) UpdateDocument(ctx context.Context, entity domain.EntityType, id string, fields map[string]any) error {
	if err := g.open(); err != nil {
		return err
	}
	body, err := encode(map[string]any{"doc": fields})
	if err != nil {
		return err
	}
	res, err := g.es.Update(g.indexName(entity), id, body,
		g.es.Update.WithRefresh(refreshWaitFor),
		g.es.Update.WithContext(ctx),
	)
	if err == nil && res.StatusCode == http.StatusNotFound {
		drain(res)
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	if err := check(fmt.Sprintf("updating %s %s", entity, id), res, err); err != nil {
		return err
	}
	drain(res)
	return nil
}

// DeleteDocument removes a document. A 404 is success.
func (g *Gateway) DeleteDocument(ctx context.Context, entity domain.EntityType, id string) error {
	if err := g.open(); err != nil {
		return err
	}
	res, err := g.es.Delete(g.indexName(entity), id,
		g.es.Delete.WithRefresh(refreshWaitFor),
		g.es.Delete.WithContext(ctx),
	)
	if err == nil && res.StatusCode == http.StatusNotFound {
		drain(res)
		return nil
	}
	if err := check(fmt.Sprintf("deleting %s %s", entity, id), res, err); err != nil {
		return err
	}
	drain(res)
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// BulkIndex sends one NDJSON bulk request and reports per-item failures.
func (g *Gateway) BulkIndex(ctx context.Context, entity domain.EntityType, docs []domain.IndexedDocument) (domain.BulkResult, error) {
	var result domain.BulkResult
	if err := g.open(); err != nil {
		return result, err
	}

	name := g.indexName(entity)
	var buf bytes.Buffer
	sent := 0
	for _, doc := range docs {
		if doc.ID == "" || doc.Entity != entity {
			result.Failed = append(result.Failed, domain.BulkItemError{
				ID:  doc.ID,
				Err: fmt.Errorf("%w: invalid %s document in %s batch", domain.ErrIndexRequest, doc.Entity, entity),
			})
			continue
		}
		meta, err := json.Marshal(map[string]any{"index": map[string]any{"_index": name, "_id": doc.ID}})
		if err != nil {
			return domain.BulkResult{}, fmt.Errorf("%w: encoding bulk metadata: %v", domain.ErrIndexRequest, err)
		}
		src, err := json.Marshal(doc.Fields)
		if err != nil {
			result.Failed = append(result.Failed, domain.BulkItemError{ID: doc.ID, Err: fmt.Errorf("%w: %v", domain.ErrIndexRequest, err)})
			continue
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(src)
		buf.WriteByte('\n')
		sent++
	}
	if sent == 0 {
		return result, nil
	}

	res, err := g.es.Bulk(bytes.NewReader(buf.Bytes()),
		g.es.Bulk.WithIndex(name),
		g.es.Bulk.WithRefresh(refreshWaitFor),
		g.es.Bulk.WithContext(ctx),
	)
	if err := check("bulk "+name, res, err); err != nil {
		return domain.BulkResult{}, err
	}
	defer res.Body.Close()

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return domain.BulkResult{}, fmt.Errorf("%w: decoding bulk response: %v", domain.ErrIndexUnavailable, err)
	}
	for _, item := range br.Items {
		for _, r := range item {
			if r.Error != nil {
				result.Failed = append(result.Failed, domain.BulkItemError{
					ID:  r.ID,
					Err: fmt.Errorf("%w: [%d] %s: %s", domain.ErrIndexRequest, r.Status, r.Error.Type, r.Error.Reason),
				})
				continue
			}
			result.Indexed++
		}
	}
	return result, nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Index     string              `json:"_index"`
			ID        string              `json:"_id"`
			Score     *float64            `json:"_score"`
			Source    map[string]any      `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []struct {
			Key      any    `json:"key"`
			KeyAsStr string `json:"key_as_string"`
			DocCount int    `json:"doc_count"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

func (g *Gateway) search(ctx context.Context, entities []domain.EntityType, body map[string]any) (*searchResponse, error) {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, g.indexName(e))
	}
	r, err := encode(body)
	if err != nil {
		return nil, err
	}
	res, err := g.es.Search(
		g.es.Search.WithIndex(names...),
		g.es.Search.WithBody(r),
		g.es.Search.WithContext(ctx),
	)
	if err := check("search "+strings.Join(names, ","), res, err); err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decoding search response: %v", domain.ErrIndexUnavailable, err)
	}
	return &sr, nil
}

// entityOf resolves a hit's entity from its index name.
func (g *Gateway) entityOf(index string, source map[string]any) domain.EntityType {
	if e, ok := domain.EntityTypeFromIndex(g.prefix, index); ok {
		return e
	}
	e, _ := domain.ParseEntityType(fmt.Sprint(source[domain.FieldEntityType]))
	return e
}

// Search runs q across the selected indices.
func (g *Gateway) Search(ctx context.Context, entities []domain.EntityType, q domain.StructuredQuery, page domain.Page) (*domain.SearchHits, error) {
	if err := g.open(); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return &domain.SearchHits{Hits: []domain.Hit{}, Aggregations: map[string][]domain.Bucket{}}, nil
	}
	if page.Limit <= 0 {
		page.Limit = domain.DefaultSearchLimit
	}

	sr, err := g.search(ctx, entities, searchBody(q, page))
	if err != nil {
		return nil, err
	}

	out := &domain.SearchHits{
		Total:        sr.Hits.Total.Value,
		Hits:         make([]domain.Hit, 0, len(sr.Hits.Hits)),
		Aggregations: make(map[string][]domain.Bucket, len(sr.Aggregations)),
	}
	for _, h := range sr.Hits.Hits {
		entity := g.entityOf(h.Index, h.Source)
		hit := domain.Hit{
			Entity:     entity,
			ID:         h.ID,
			Fields:     normalize(entity.Definition(), h.Source),
			Highlights: h.Highlight,
		}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits = append(out.Hits, hit)
	}
	for name, agg := range sr.Aggregations {
		buckets := make([]domain.Bucket, 0, len(agg.Buckets))
		for _, b := range agg.Buckets {
			key := b.KeyAsStr
			if key == "" {
				key = fmt.Sprint(b.Key)
			}
			buckets = append(buckets, domain.Bucket{Key: key, Count: b.DocCount})
		}
		out.Aggregations[name] = buckets
	}
	return out, nil
}

// Completion matches the prefix against the autocomplete sub-fields of the
// selected entities' suggest fields.
func (g *Gateway) Completion(ctx context.Context, entities []domain.EntityType, prefix string, limit int) ([]domain.Suggestion, error) {
	if err := g.open(); err != nil {
		return nil, err
	}

	var targets []domain.EntityType
	var fields []string
	seen := map[string]bool{}
	for _, e := range entities {
		f := e.Definition().SuggestField
		if f == "" {
			continue
		}
		targets = append(targets, e)
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	if len(targets) == 0 || strings.TrimSpace(prefix) == "" || limit <= 0 {
		return []domain.Suggestion{}, nil
	}

	sr, err := g.search(ctx, targets, completionBody(fields, strings.TrimSpace(prefix), limit))
	if err != nil {
		return nil, err
	}

	out := make([]domain.Suggestion, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		entity := g.entityOf(h.Index, h.Source)
		text, _ := h.Source[entity.Definition().SuggestField].(string)
		if text == "" {
			continue
		}
		s := domain.Suggestion{Text: text, Entity: entity, ID: h.ID}
		if h.Score != nil {
			s.Score = *h.Score
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Count returns the number of documents in the entity's index.
func (g *Gateway) Count(ctx context.Context, entity domain.EntityType) (int, error) {
	if err := g.open(); err != nil {
		return 0, err
	}
	name := g.indexName(entity)
	res, err := g.es.Count(g.es.Count.WithIndex(name), g.es.Count.WithContext(ctx))
	if err := check("count "+name, res, err); err != nil {
		return 0, err
	}
	defer res.Body.Close()

	var cr struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return 0, fmt.Errorf("%w: decoding count response: %v", domain.ErrIndexUnavailable, err)
	}
	return cr.Count, nil
}

// Health reports cluster status and per-index document counts. Missing
// indices are omitted from the counts.
func (g *Gateway) Health(ctx context.Context) (*domain.IndexHealth, error) {
	if err := g.open(); err != nil {
		return nil, err
	}
	res, err := g.es.Cluster.Health(g.es.Cluster.Health.WithContext(ctx))
	if err := check("cluster health", res, err); err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var hr struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&hr); err != nil {
		return nil, fmt.Errorf("%w: decoding health response: %v", domain.ErrIndexUnavailable, err)
	}

	h := &domain.IndexHealth{Backend: BackendName, Status: hr.Status, Documents: map[string]int{}}
	for _, e := range domain.AllEntityTypes() {
		n, err := g.Count(ctx, e)
		if err != nil {
			logger.Debug("Health count for %s failed: %v", e, err)
			continue
		}
		h.Documents[g.indexName(e)] = n
	}
	return h, nil
}

// Close marks the gateway closed. The HTTP client holds no resources.
func (g *Gateway) Close() error {
	g.closed.Store(true)
	return nil
}

// normalize converts JSON-decoded source values to the definition's kinds.
func normalize(def domain.IndexDefinition, src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	for _, f := range def.Fields {
		v, ok := out[f.Name]
		if !ok || v == nil {
			continue
		}
		switch {
		case f.Multi:
			if list, ok := v.([]any); ok {
				strs := make([]string, 0, len(list))
				for _, x := range list {
					strs = append(strs, fmt.Sprint(x))
				}
				out[f.Name] = strs
			}
		case f.Kind == domain.FieldInteger:
			if n, ok := v.(float64); ok {
				out[f.Name] = int(n)
			}
		}
	}
	return out
}
