package bleveindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/services"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	for _, e := range domain.AllEntityTypes() {
		created, err := g.EnsureIndex(context.Background(), e.Definition())
		require.NoError(t, err)
		assert.True(t, created)
	}
	return g
}

func post(id, caption, content string, created time.Time) *domain.PostRecord {
	return &domain.PostRecord{
		ID:        id,
		Author:    &domain.AuthorRef{ID: "u-" + id, Username: "author_" + id},
		Caption:   domain.Ptr(caption),
		Content:   domain.Ptr(content),
		Tags:      []string{"campus"},
		Likes:     domain.Ptr(3),
		CreatedAt: domain.Ptr(created),
	}
}

func index(t *testing.T, g *Gateway, records ...domain.Record) {
	t.Helper()
	for _, r := range records {
		doc, err := services.Project(r)
		require.NoError(t, err)
		require.NoError(t, g.IndexDocument(context.Background(), doc))
	}
}

func search(t *testing.T, g *Gateway, text string, sort domain.SortMode, entities ...domain.EntityType) *domain.SearchHits {
	t.Helper()
	if len(entities) == 0 {
		entities = domain.AllEntityTypes()
	}
	q := services.NewQueryBuilder().Build(text, domain.SearchFilters{}, sort)
	hits, err := g.Search(context.Background(), entities, q, domain.Page{Limit: 20})
	require.NoError(t, err)
	return hits
}

func ids(hits *domain.SearchHits) []string {
	out := make([]string, 0, len(hits.Hits))
	for _, h := range hits.Hits {
		out = append(out, h.ID)
	}
	return out
}

func TestGateway_EnsureIndexIdempotent(t *testing.T) {
	g := newTestGateway(t)

	created, err := g.EnsureIndex(context.Background(), domain.EntityPost.Definition())
	require.NoError(t, err)
	assert.False(t, created)

	_, err = g.EnsureIndex(context.Background(), domain.IndexDefinition{Entity: domain.EntityPost})
	assert.ErrorIs(t, err, domain.ErrInvalidIndexDefinition)
}

func TestGateway_IndexingIsIdempotent(t *testing.T) {
	g := newTestGateway(t)
	p := post("p1", "Study group tonight", "bring notes", base)

	index(t, g, p, p)
	p.Caption = domain.Ptr("Study group moved")
	index(t, g, p)

	n, err := g.Count(context.Background(), domain.EntityPost)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits := search(t, g, "moved", domain.SortRelevance)
	assert.Equal(t, []string{"p1"}, ids(hits))
	assert.Equal(t, domain.EntityPost, hits.Hits[0].Entity)
	assert.Equal(t, "Study group moved", hits.Hits[0].Fields[domain.FieldCaption])
	assert.Equal(t, []string{"campus"}, hits.Hits[0].Fields[domain.FieldTags])
	assert.Equal(t, 3, hits.Hits[0].Fields[domain.FieldLikes])
}

func TestGateway_RelevanceVersusNewest(t *testing.T) {
	g := newTestGateway(t)
	index(t, g,
		post("strong", "hooks", "hooks explained", base),
		post("weak", "weekend plans", "a long post about many things that mentions hooks only once near the end", base.Add(48*time.Hour)),
		post("none", "cafeteria menu", "pasta and salad", base.Add(time.Hour)),
	)

	relevance := search(t, g, "hooks", domain.SortRelevance)
	assert.Equal(t, []string{"strong", "weak"}, ids(relevance))
	assert.Equal(t, 2, relevance.Total)
	assert.Greater(t, relevance.Hits[0].Score, relevance.Hits[1].Score)

	newest := search(t, g, "hooks", domain.SortNewest)
	assert.Equal(t, []string{"weak", "strong"}, ids(newest))

	oldest := search(t, g, "", domain.SortOldest)
	assert.Equal(t, []string{"strong", "none", "weak"}, ids(oldest))
}

func TestGateway_BrowseExcludesHidden(t *testing.T) {
	g := newTestGateway(t)
	private := post("private", "secret", "members only", base)
	private.IsPublic = domain.Ptr(false)
	deleted := post("deleted", "gone", "removed", base)
	deleted.Deleted = true

	index(t, g,
		post("p1", "open mic", "music night", base),
		private,
		deleted,
		&domain.UserRecord{ID: "u1", Username: domain.Ptr("ada_l"), CreatedAt: domain.Ptr(base)},
		&domain.UserRecord{ID: "u2", Username: domain.Ptr("gone_user"), Deactivated: true},
	)

	hits := search(t, g, "   ", domain.SortRelevance)
	assert.ElementsMatch(t, []string{"p1", "u1"}, ids(hits))

	types := map[string]int{}
	for _, b := range hits.Aggregations[domain.AggregationTypes] {
		types[b.Key] = b.Count
	}
	assert.Equal(t, map[string]int{"post": 1, "user": 1}, types)
}

func TestGateway_EntitySelection(t *testing.T) {
	g := newTestGateway(t)
	index(t, g,
		post("p1", "chess club", "weekly games", base),
		&domain.CommentRecord{ID: "c1", PostID: "p1", Author: &domain.AuthorRef{ID: "u1", Username: "ada"}, Content: domain.Ptr("chess is great"), CreatedAt: domain.Ptr(base)},
	)

	assert.ElementsMatch(t, []string{"p1", "c1"}, ids(search(t, g, "chess", domain.SortRelevance)))
	assert.Equal(t, []string{"c1"}, ids(search(t, g, "chess", domain.SortRelevance, domain.EntityComment)))
}

func TestGateway_Highlights(t *testing.T) {
	g := newTestGateway(t)
	index(t, g, post("p1", "robotics workshop", "build a robot", base))

	hits := search(t, g, "robotics", domain.SortRelevance)
	require.Len(t, hits.Hits, 1)
	require.NotEmpty(t, hits.Hits[0].Highlights[domain.FieldCaption])
	assert.Contains(t, hits.Hits[0].Highlights[domain.FieldCaption][0], "<mark>robotics</mark>")
}

func TestGateway_Filters(t *testing.T) {
	g := newTestGateway(t)
	music := post("music", "jam session", "guitar", base)
	music.Tags = []string{"music", "events"}
	music.Category = domain.Ptr("arts")
	sports := post("sports", "jam packed game", "football", base.Add(72*time.Hour))
	sports.Tags = []string{"sports"}
	index(t, g, music, sports)

	b := services.NewQueryBuilder()
	run := func(f domain.SearchFilters) []string {
		hits, err := g.Search(context.Background(), []domain.EntityType{domain.EntityPost}, b.Build("jam", f, domain.SortRelevance), domain.Page{Limit: 10})
		require.NoError(t, err)
		return ids(hits)
	}

	assert.Equal(t, []string{"music"}, run(domain.SearchFilters{Tags: []string{"events", "other"}}))
	assert.Equal(t, []string{"music"}, run(domain.SearchFilters{Category: "arts"}))
	assert.Equal(t, []string{"sports"}, run(domain.SearchFilters{Author: "author_sports"}))
	assert.Equal(t, []string{"sports"}, run(domain.SearchFilters{DateRange: domain.DateRange{From: base.Add(24 * time.Hour)}}))
}

func TestGateway_FiltersDoNotAffectScores(t *testing.T) {
	g := newTestGateway(t)
	a := post("a", "spring fest", "", base)
	a.Tags = []string{"music", "art"}
	b := post("b", "spring fest", "", base)
	b.Tags = []string{"music"}
	index(t, g, a, b)

	qb := services.NewQueryBuilder()
	scores := func(f domain.SearchFilters) map[string]float64 {
		hits, err := g.Search(context.Background(), []domain.EntityType{domain.EntityPost}, qb.Build("fest", f, domain.SortRelevance), domain.Page{Limit: 10})
		require.NoError(t, err)
		out := map[string]float64{}
		for _, h := range hits.Hits {
			out[h.ID] = h.Score
		}
		return out
	}

	plain := scores(domain.SearchFilters{})
	filtered := scores(domain.SearchFilters{Tags: []string{"music", "art"}})
	require.Len(t, plain, 2)
	require.Len(t, filtered, 2)

	assert.InDelta(t, filtered["a"], filtered["b"], 1e-9)
	assert.InDelta(t, plain["a"], filtered["a"], 1e-9)
	assert.InDelta(t, plain["b"], filtered["b"], 1e-9)
}

func TestGateway_BestFieldDecidesRelevance(t *testing.T) {
	g := newTestGateway(t)
	a := post("a", "robotics fest", "", base)
	a.Tags = nil
	// b matches in two lower-weighted fields.
	b := post("b", "", "robotics workshop", base)
	b.Caption = nil
	b.Tags = []string{"robotics"}
	index(t, g, a, b)

	hits := search(t, g, "robotics", domain.SortRelevance, domain.EntityPost)
	require.Equal(t, []string{"a", "b"}, ids(hits))
	assert.Greater(t, hits.Hits[0].Score, hits.Hits[1].Score)
}

func TestGateway_PhrasesAndExclusions(t *testing.T) {
	g := newTestGateway(t)
	index(t, g,
		post("a", "machine learning meetup", "talks", base),
		post("b", "learning machine shop", "tools", base),
	)

	b := services.NewQueryBuilder()
	pq := services.ParseQuery(`"machine learning"`)
	hits, err := g.Search(context.Background(), []domain.EntityType{domain.EntityPost}, b.BuildParsed(pq, domain.SearchFilters{}, domain.SortRelevance), domain.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(hits))

	pq = services.ParseQuery("machine NOT shop")
	hits, err = g.Search(context.Background(), []domain.EntityType{domain.EntityPost}, b.BuildParsed(pq, domain.SearchFilters{}, domain.SortRelevance), domain.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(hits))
}

func TestGateway_DeletePropagation(t *testing.T) {
	g := newTestGateway(t)
	index(t, g, post("p1", "lost keys", "near library", base))
	require.Len(t, search(t, g, "keys", domain.SortRelevance).Hits, 1)

	require.NoError(t, g.DeleteDocument(context.Background(), domain.EntityPost, "p1"))
	assert.Empty(t, search(t, g, "keys", domain.SortRelevance).Hits)

	assert.NoError(t, g.DeleteDocument(context.Background(), domain.EntityPost, "never-existed"))
}

func TestGateway_UpdateDocument(t *testing.T) {
	g := newTestGateway(t)
	index(t, g, post("p1", "bake sale", "cookies", base))

	err := g.UpdateDocument(context.Background(), domain.EntityPost, "p1", map[string]any{domain.FieldLikes: 42})
	require.NoError(t, err)

	hits := search(t, g, "bake", domain.SortRelevance)
	require.Len(t, hits.Hits, 1)
	assert.Equal(t, 42, hits.Hits[0].Fields[domain.FieldLikes])
	assert.Equal(t, "bake sale", hits.Hits[0].Fields[domain.FieldCaption])

	err = g.UpdateDocument(context.Background(), domain.EntityPost, "missing", map[string]any{domain.FieldLikes: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGateway_BulkIndex(t *testing.T) {
	g := newTestGateway(t)

	var docs []domain.IndexedDocument
	for _, id := range []string{"p1", "p2", "p3"} {
		doc, err := services.Project(post(id, "bulk "+id, "body", base))
		require.NoError(t, err)
		docs = append(docs, doc)
	}
	docs = append(docs, domain.IndexedDocument{Entity: domain.EntityUser, ID: "u1"})

	res, err := g.BulkIndex(context.Background(), domain.EntityPost, docs)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Indexed)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "u1", res.Failed[0].ID)
	assert.ErrorIs(t, res.Failed[0].Err, domain.ErrIndexRequest)

	n, err := g.Count(context.Background(), domain.EntityPost)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestGateway_Completion(t *testing.T) {
	g := newTestGateway(t)
	hidden := post("p3", "React secrets", "private", base)
	hidden.IsPublic = domain.Ptr(false)
	index(t, g,
		post("p1", "React hooks guide", "intro", base),
		post("p2", "Campus radio", "shows", base),
		hidden,
		&domain.UserRecord{ID: "u1", Username: domain.Ptr("reagan"), CreatedAt: domain.Ptr(base)},
	)

	got, err := g.Completion(context.Background(), domain.AllEntityTypes(), "rea", 10)
	require.NoError(t, err)

	texts := map[string]domain.EntityType{}
	for _, s := range got {
		texts[s.Text] = s.Entity
	}
	assert.Equal(t, map[string]domain.EntityType{
		"React hooks guide": domain.EntityPost,
		"reagan":            domain.EntityUser,
	}, texts)

	got, err = g.Completion(context.Background(), []domain.EntityType{domain.EntityUser}, "rea", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].ID)

	got, err = g.Completion(context.Background(), domain.AllEntityTypes(), "r", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGateway_HealthAndClose(t *testing.T) {
	g, err := New(Options{Prefix: "test"})
	require.NoError(t, err)

	_, err = g.EnsureIndex(context.Background(), domain.EntityPost.Definition())
	require.NoError(t, err)

	h, err := g.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BackendName, h.Backend)
	assert.Equal(t, "yellow", h.Status)
	assert.Equal(t, map[string]int{"test_posts": 0}, h.Documents)

	_, err = g.Search(context.Background(), []domain.EntityType{domain.EntityUser}, domain.StructuredQuery{MatchAll: true}, domain.Page{Limit: 1})
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.ErrorIs(t, g.Ping(context.Background()), domain.ErrIndexUnavailable)
	assert.ErrorIs(t, g.IndexDocument(context.Background(), domain.IndexedDocument{Entity: domain.EntityPost, ID: "x"}), domain.ErrIndexUnavailable)
}

func TestGateway_OnDiskReopen(t *testing.T) {
	dir := t.TempDir()

	g, err := New(Options{DataDir: dir})
	require.NoError(t, err)
	created, err := g.EnsureIndex(context.Background(), domain.EntityPost.Definition())
	require.NoError(t, err)
	assert.True(t, created)
	index(t, g, post("p1", "persisted", "body", base))
	require.NoError(t, g.Close())

	g, err = New(Options{DataDir: dir})
	require.NoError(t, err)
	defer g.Close()
	created, err = g.EnsureIndex(context.Background(), domain.EntityPost.Definition())
	require.NoError(t, err)
	assert.False(t, created)

	n, err := g.Count(context.Background(), domain.EntityPost)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
