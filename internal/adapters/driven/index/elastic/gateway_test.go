package elastic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/services"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type reply struct {
	status int
	body   string
}

// fakeCluster answers Elasticsearch requests from canned replies keyed by
// "METHOD /path".
type fakeCluster struct {
	mu       sync.Mutex
	requests []recorded
	replies  map[string]reply
}

func newFakeCluster(t *testing.T) (*fakeCluster, *Gateway) {
	t.Helper()
	fc := &fakeCluster{replies: map[string]reply{
		"GET /": {200, `{"version":{"number":"8.15.0"},"tagline":"You Know, for Search"}`},
	}}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)

	g, err := New(Options{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return fc, g
}

func (fc *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path

	fc.mu.Lock()
	fc.requests = append(fc.requests, recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
	rep, ok := fc.replies[key]
	fc.mu.Unlock()

	if !ok {
		rep = reply{200, `{}`}
	}
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	if r.Method != http.MethodHead {
		_, _ = io.WriteString(w, rep.body)
	}
}

func (fc *fakeCluster) on(key string, status int, body string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.replies[key] = reply{status, body}
}

func (fc *fakeCluster) last(prefix string) recorded {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for i := len(fc.requests) - 1; i >= 0; i-- {
		r := fc.requests[i]
		if strings.HasPrefix(r.Method+" "+r.Path, prefix) {
			return r
		}
	}
	return recorded{}
}

func decodeBody(t *testing.T, body string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	return m
}

func TestGateway_Ping(t *testing.T) {
	fc, g := newFakeCluster(t)
	require.NoError(t, g.Ping(context.Background()))

	fc.on("GET /", 503, `{"error":{"type":"unavailable","reason":"starting"}}`)
	assert.ErrorIs(t, g.Ping(context.Background()), domain.ErrIndexUnavailable)

	require.NoError(t, g.Close())
	assert.ErrorIs(t, g.Ping(context.Background()), domain.ErrIndexUnavailable)
}

func TestGateway_EnsureIndex(t *testing.T) {
	fc, g := newFakeCluster(t)
	fc.on("HEAD /college_media_posts", 404, ``)
	fc.on("PUT /college_media_posts", 200, `{"acknowledged":true}`)

	created, err := g.EnsureIndex(context.Background(), domain.EntityPost.Definition())
	require.NoError(t, err)
	assert.True(t, created)

	body := decodeBody(t, fc.last("PUT /college_media_posts").Body)
	props := body["mappings"].(map[string]any)["properties"].(map[string]any)
	caption := props[domain.FieldCaption].(map[string]any)
	assert.Equal(t, "text", caption["type"])
	assert.Contains(t, caption["fields"], "autocomplete")
	assert.Equal(t, "geo_point", props[domain.FieldLocation].(map[string]any)["type"])
	analysis := body["settings"].(map[string]any)["analysis"].(map[string]any)
	assert.Contains(t, analysis["analyzer"], domain.AutocompleteAnalyzer)

	fc.on("HEAD /college_media_posts", 200, ``)
	created, err = g.EnsureIndex(context.Background(), domain.EntityPost.Definition())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestGateway_EnsureIndexRace(t *testing.T) {
	fc, g := newFakeCluster(t)
	fc.on("HEAD /college_media_users", 404, ``)
	fc.on("PUT /college_media_users", 400, `{"error":{"type":"resource_already_exists_exception","reason":"exists"}}`)

	created, err := g.EnsureIndex(context.Background(), domain.EntityUser.Definition())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestGateway_IndexDocument(t *testing.T) {
	fc, g := newFakeCluster(t)
	fc.on("PUT /college_media_posts/_doc/p1", 201, `{"result":"created"}`)

	err := g.IndexDocument(context.Background(), domain.IndexedDocument{
		Entity: domain.EntityPost,
		ID:     "p1",
		Fields: map[string]any{domain.FieldCaption: "hi", domain.FieldVisible: true},
	})
	require.NoError(t, err)

	req := fc.last("PUT /college_media_posts/_doc/p1")
	assert.Contains(t, req.Query, "refresh=wait_for")
	assert.Equal(t, "hi", decodeBody(t, req.Body)[domain.FieldCaption])

	fc.on("PUT /college_media_posts/_doc/p2", 400, `{"error":{"type":"mapper_parsing_exception","reason":"bad date"}}`)
	err = g.IndexDocument(context.Background(), domain.IndexedDocument{Entity: domain.EntityPost, ID: "p2"})
	assert.ErrorIs(t, err, domain.ErrIndexRequest)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")

	fc.on("PUT /college_media_posts/_doc/p3", 503, `{}`)
	err = g.IndexDocument(context.Background(), domain.IndexedDocument{Entity: domain.EntityPost, ID: "p3"})
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestGateway_UpdateAndDelete(t *testing.T) {
	fc, g := newFakeCluster(t)
	fc.on("POST /college_media_posts/_update/p1", 200, `{"result":"updated"}`)
	fc.on("POST /college_media_posts/_update/gone", 404, `{"error":{"type":"document_missing_exception","reason":"missing"}}`)
	fc.on("DELETE /college_media_comments/_doc/c1", 404, `{"result":"not_found"}`)

	require.NoError(t, g.UpdateDocument(context.Background(), domain.EntityPost, "p1", map[string]any{domain.FieldLikes: 9}))
	doc := decodeBody(t, fc.last("POST /college_media_posts/_update/p1").Body)["doc"].(map[string]any)
	assert.Equal(t, float64(9), doc[domain.FieldLikes])

	err := g.UpdateDocument(context.Background(), domain.EntityPost, "gone", map[string]any{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, g.DeleteDocument(context.Background(), domain.EntityComment, "c1"))
}

func TestGateway_BulkIndex(t *testing.T) {
	fc, g := newFakeCluster(t)
	fc.on("POST /college_media_posts/_bulk", 200, `{"errors":true,"items":[
		{"index":{"_id":"p1","status":201}},
		{"index":{"_id":"p2","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad"}}}
	]}`)

	docs := []domain.IndexedDocument{
		{Entity: domain.EntityPost, ID: "p1", Fields: map[string]any{"caption": "a"}},
		{Entity: domain.EntityPost, ID: "p2", Fields: map[string]any{"caption": "b"}},
		{Entity: domain.EntityUser, ID: "u1"},
	}
	res, err := g.BulkIndex(context.Background(), domain.EntityPost, docs)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, "u1", res.Failed[0].ID)
	assert.Equal(t, "p2", res.Failed[1].ID)
	assert.ErrorIs(t, res.Failed[1].Err, domain.ErrIndexRequest)

	req := fc.last("POST /college_media_posts/_bulk")
	lines := strings.Split(strings.TrimSpace(req.Body), "\n")
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_index":"college_media_posts","_id":"p1"}}`, lines[0])
	assert.Contains(t, req.Query, "refresh=wait_for")

	fc.on("POST /college_media_posts/_bulk", 502, `{}`)
	_, err = g.BulkIndex(context.Background(), domain.EntityPost, docs[:1])
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestGateway_Search(t *testing.T) {
	fc, g := newFakeCluster(t)
	fc.on("POST /college_media_posts,college_media_users/_search", 200, `{
		"hits":{"total":{"value":2},"hits":[
			{"_index":"college_media_posts","_id":"p1","_score":3.5,
			 "_source":{"entity_type":"post","caption":"React hooks","tags":["dev","js"],"likes":4},
			 "highlight":{"caption":["<mark>React</mark> hooks"]}},
			{"_index":"college_media_users","_id":"u1","_score":1.2,
			 "_source":{"entity_type":"user","username":"reagan","followers":10}}
		]},
		"aggregations":{
			"types":{"buckets":[{"key":"post","doc_count":1},{"key":"user","doc_count":1}]},
			"by_day":{"buckets":[{"key":"2024-03-01","doc_count":2}]}
		}
	}`)

	q := services.NewQueryBuilder().Build("react", domain.SearchFilters{Tags: []string{"dev"}}, domain.SortRelevance)
	hits, err := g.Search(context.Background(), []domain.EntityType{domain.EntityPost, domain.EntityUser}, q, domain.Page{Offset: 20, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, hits.Total)
	require.Len(t, hits.Hits, 2)
	assert.Equal(t, domain.EntityPost, hits.Hits[0].Entity)
	assert.Equal(t, 3.5, hits.Hits[0].Score)
	assert.Equal(t, []string{"dev", "js"}, hits.Hits[0].Fields[domain.FieldTags])
	assert.Equal(t, 4, hits.Hits[0].Fields[domain.FieldLikes])
	assert.Equal(t, []string{"<mark>React</mark> hooks"}, hits.Hits[0].Highlights[domain.FieldCaption])
	assert.Equal(t, domain.EntityUser, hits.Hits[1].Entity)
	assert.Equal(t, 10, hits.Hits[1].Fields[domain.FieldFollowers])
	assert.Equal(t, []domain.Bucket{{Key: "post", Count: 1}, {Key: "user", Count: 1}}, hits.Aggregations[domain.AggregationTypes])

	body := decodeBody(t, fc.last("POST /college_media_posts,college_media_users/_search").Body)
	assert.Equal(t, float64(20), body["from"])
	assert.Equal(t, float64(10), body["size"])

	boolQ := body["query"].(map[string]any)["bool"].(map[string]any)
	mm := boolQ["must"].([]any)[0].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "react", mm["query"])
	assert.Equal(t, "AUTO", mm["fuzziness"])
	assert.Equal(t, float64(2), mm["prefix_length"])
	assert.Contains(t, mm["fields"], "caption^3")
	assert.Contains(t, mm["fields"], "bio")

	filters := boolQ["filter"].([]any)
	assert.Equal(t, map[string]any{"term": map[string]any{"visible": true}}, filters[0])
	assert.Equal(t, map[string]any{"terms": map[string]any{"tags": []any{"dev"}}}, filters[1])

	hl := body["highlight"].(map[string]any)
	assert.Equal(t, []any{"<mark>"}, hl["pre_tags"])
	assert.Contains(t, body["aggs"], domain.AggregationByDay)
}

func TestGateway_SearchErrors(t *testing.T) {
	fc, g := newFakeCluster(t)
	fc.on("POST /college_media_posts/_search", 400, `{"error":{"type":"search_phase_execution_exception","reason":"bad"}}`)

	_, err := g.Search(context.Background(), []domain.EntityType{domain.EntityPost}, domain.StructuredQuery{MatchAll: true}, domain.Page{})
	assert.ErrorIs(t, err, domain.ErrIndexRequest)

	fc.on("POST /college_media_posts/_search", 500, `{}`)
	_, err = g.Search(context.Background(), []domain.EntityType{domain.EntityPost}, domain.StructuredQuery{MatchAll: true}, domain.Page{})
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestGateway_Completion(t *testing.T) {
	fc, g := newFakeCluster(t)
	fc.on("POST /college_media_posts,college_media_users/_search", 200, `{
		"hits":{"total":{"value":2},"hits":[
			{"_index":"college_media_users","_id":"u1","_score":1.0,"_source":{"username":"reagan"}},
			{"_index":"college_media_posts","_id":"p1","_score":2.0,"_source":{"caption":"React hooks"}}
		]}
	}`)

	got, err := g.Completion(context.Background(), domain.AllEntityTypes(), "rea", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Suggestion{Text: "React hooks", Entity: domain.EntityPost, ID: "p1", Score: 2}, got[0])
	assert.Equal(t, "reagan", got[1].Text)

	body := decodeBody(t, fc.last("POST /college_media_posts,college_media_users/_search").Body)
	assert.Equal(t, float64(5), body["size"])
	should := body["query"].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	assert.Contains(t, should[0].(map[string]any)["match"], "caption.autocomplete")

	got, err = g.Completion(context.Background(), []domain.EntityType{domain.EntityComment}, "rea", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGateway_CountAndHealth(t *testing.T) {
	fc, g := newFakeCluster(t)
	fc.on("GET /_cluster/health", 200, `{"status":"yellow"}`)
	fc.on("POST /college_media_posts/_count", 200, `{"count":7}`)
	fc.on("GET /college_media_posts/_count", 200, `{"count":7}`)
	fc.on("POST /college_media_users/_count", 404, `{"error":{"type":"index_not_found_exception","reason":"no such index"}}`)
	fc.on("GET /college_media_users/_count", 404, `{"error":{"type":"index_not_found_exception","reason":"no such index"}}`)
	fc.on("POST /college_media_comments/_count", 200, `{"count":0}`)
	fc.on("GET /college_media_comments/_count", 200, `{"count":0}`)

	n, err := g.Count(context.Background(), domain.EntityPost)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	h, err := g.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BackendName, h.Backend)
	assert.Equal(t, "yellow", h.Status)
	assert.Equal(t, map[string]int{"college_media_posts": 7, "college_media_comments": 0}, h.Documents)
}
