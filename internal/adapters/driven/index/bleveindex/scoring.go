package bleveindex

import (
	"context"

	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	index "github.com/blevesearch/bleve_index_api"
)

// unscoredQuery restricts the candidate set without contributing to the
// score or to the query norm.
type unscoredQuery struct {
	inner query.Query
}

func unscored(q query.Query) query.Query {
	return unscoredQuery{inner: q}
}

func (q unscoredQuery) Searcher(
	ctx context.Context, i index.IndexReader, m mapping.IndexMapping, options search.SearcherOptions,
) (search.Searcher, error) {
	s, err := q.inner.Searcher(ctx, i, m, options)
	if err != nil {
		return nil, err
	}
	return &unscoredSearcher{Searcher: s}, nil
}

type unscoredSearcher struct {
	search.Searcher
}

func (s *unscoredSearcher) Next(ctx *search.SearchContext) (*search.DocumentMatch, error) {
	return zeroScore(s.Searcher.Next(ctx))
}

func (s *unscoredSearcher) Advance(ctx *search.SearchContext, id index.IndexInternalID) (*search.DocumentMatch, error) {
	return zeroScore(s.Searcher.Advance(ctx, id))
}

func (s *unscoredSearcher) Weight() float64 { return 0 }

func (s *unscoredSearcher) SetQueryNorm(float64) {}

func zeroScore(dm *search.DocumentMatch, err error) (*search.DocumentMatch, error) {
	if dm != nil {
		dm.Score = 0
		dm.Expl = nil
	}
	return dm, err
}

// bestFieldsQuery matches documents matching any per-field query and scores
// each by its single best field.
type bestFieldsQuery struct {
	fields []query.Query
}

func (q bestFieldsQuery) Searcher(
	ctx context.Context, i index.IndexReader, m mapping.IndexMapping, options search.SearcherOptions,
) (search.Searcher, error) {
	searchers := make([]search.Searcher, 0, len(q.fields))
	for _, fq := range q.fields {
		s, err := fq.Searcher(ctx, i, m, options)
		if err != nil {
			for _, open := range searchers {
				_ = open.Close()
			}
			return nil, err
		}
		searchers = append(searchers, s)
	}
	return &bestFieldsSearcher{
		searchers: searchers,
		currs:     make([]*search.DocumentMatch, len(searchers)),
		matching:  make([]int, 0, len(searchers)),
	}, nil
}

// bestFieldsSearcher merges its children in internal id order. The score of
// a match is the maximum of its children's scores.
type bestFieldsSearcher struct {
	searchers   []search.Searcher
	currs       []*search.DocumentMatch
	matching    []int
	initialized bool
}

func (s *bestFieldsSearcher) init(ctx *search.SearchContext) error {
	for i, child := range s.searchers {
		if s.currs[i] != nil {
			ctx.DocumentMatchPool.Put(s.currs[i])
		}
		curr, err := child.Next(ctx)
		if err != nil {
			return err
		}
		s.currs[i] = curr
	}
	s.updateMatching()
	s.initialized = true
	return nil
}

// updateMatching collects the children positioned on the lowest id.
func (s *bestFieldsSearcher) updateMatching() {
	s.matching = s.matching[:0]
	for i, curr := range s.currs {
		if curr == nil {
			continue
		}
		if len(s.matching) > 0 {
			cmp := curr.IndexInternalID.Compare(s.currs[s.matching[0]].IndexInternalID)
			if cmp > 0 {
				continue
			}
			if cmp < 0 {
				s.matching = s.matching[:0]
			}
		}
		s.matching = append(s.matching, i)
	}
}

func (s *bestFieldsSearcher) Next(ctx *search.SearchContext) (*search.DocumentMatch, error) {
	if !s.initialized {
		if err := s.init(ctx); err != nil {
			return nil, err
		}
	}
	if len(s.matching) == 0 {
		return nil, nil
	}

	best := s.currs[s.matching[0]]
	for _, i := range s.matching[1:] {
		if s.currs[i].Score > best.Score {
			best = s.currs[i]
		}
	}
	others := make([]*search.DocumentMatch, 0, len(s.matching)-1)
	for _, i := range s.matching {
		if s.currs[i] != best {
			others = append(others, s.currs[i])
		}
	}
	// Highlights still cover every field that matched.
	best.FieldTermLocations = search.MergeFieldTermLocations(best.FieldTermLocations, others)

	for _, i := range s.matching {
		if s.currs[i] != best {
			ctx.DocumentMatchPool.Put(s.currs[i])
		}
		curr, err := s.searchers[i].Next(ctx)
		if err != nil {
			return nil, err
		}
		s.currs[i] = curr
	}
	s.updateMatching()
	return best, nil
}

func (s *bestFieldsSearcher) Advance(ctx *search.SearchContext, id index.IndexInternalID) (*search.DocumentMatch, error) {
	if !s.initialized {
		if err := s.init(ctx); err != nil {
			return nil, err
		}
	}
	for i, child := range s.searchers {
		if s.currs[i] != nil {
			if s.currs[i].IndexInternalID.Compare(id) >= 0 {
				continue
			}
			ctx.DocumentMatchPool.Put(s.currs[i])
		}
		curr, err := child.Advance(ctx, id)
		if err != nil {
			return nil, err
		}
		s.currs[i] = curr
	}
	s.updateMatching()
	return s.Next(ctx)
}

func (s *bestFieldsSearcher) Close() (err error) {
	for _, child := range s.searchers {
		if cerr := child.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Weight is the largest child weight, so the query norm matches a single
// best field.
func (s *bestFieldsSearcher) Weight() float64 {
	var w float64
	for _, child := range s.searchers {
		if cw := child.Weight(); cw > w {
			w = cw
		}
	}
	return w
}

func (s *bestFieldsSearcher) SetQueryNorm(qnorm float64) {
	for _, child := range s.searchers {
		child.SetQueryNorm(qnorm)
	}
}

func (s *bestFieldsSearcher) Count() uint64 {
	var n uint64
	for _, child := range s.searchers {
		n += child.Count()
	}
	return n
}

func (s *bestFieldsSearcher) Min() int { return 0 }

func (s *bestFieldsSearcher) Size() int {
	n := 0
	for _, child := range s.searchers {
		n += child.Size()
	}
	for _, curr := range s.currs {
		if curr != nil {
			n += curr.Size()
		}
	}
	return n
}

func (s *bestFieldsSearcher) DocumentMatchPoolSize() int {
	n := len(s.currs)
	for _, child := range s.searchers {
		n += child.DocumentMatchPoolSize()
	}
	return n
}
