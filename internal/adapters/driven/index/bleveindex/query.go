package bleveindex

import (
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// translate converts a structured query into a bleve query.
// Scoring clauses and filters are combined as must clauses, exclusions as
// must-not clauses. Filters only narrow the candidates and never score.
func translate(q domain.StructuredQuery) query.Query {
	bq := bleve.NewBooleanQuery()

	scored := false
	if q.MatchAll {
		bq.AddMust(bleve.NewMatchAllQuery())
		scored = true
	} else if tokens := strings.Fields(q.Text); len(tokens) > 0 {
		bq.AddMust(textQuery(tokens, q))
		scored = true
	}
	for _, phrase := range q.Phrases {
		bq.AddMust(phraseQuery(phrase, q.Fields))
		scored = true
	}
	if !scored {
		bq.AddMust(bleve.NewMatchAllQuery())
	}

	for _, f := range q.Filters {
		if fq := filterQuery(f); fq != nil {
			bq.AddMust(unscored(fq))
		}
	}
	for _, term := range q.Excluded {
		bq.AddMustNot(excludeQuery(term, q.Fields))
	}
	return bq
}

// textQuery matches the tokens against each boosted field and scores a
// document by its best field. Within a field the tokens are ORed with
// per-token fuzziness.
func textQuery(tokens []string, q domain.StructuredQuery) query.Query {
	fields := make([]query.Query, 0, len(q.Fields))
	for _, fb := range q.Fields {
		disjuncts := make([]query.Query, 0, len(tokens))
		for _, tok := range tokens {
			fuzz := 0
			if q.Fuzzy {
				fuzz = domain.AutoFuzziness(tok)
			}
			mq := bleve.NewMatchQuery(tok)
			mq.SetField(fb.Field)
			mq.SetFuzziness(fuzz)
			mq.SetPrefix(q.PrefixLength)
			if fb.Boost > 0 {
				mq.SetBoost(fb.Boost)
			}
			disjuncts = append(disjuncts, mq)
		}
		fields = append(fields, bleve.NewDisjunctionQuery(disjuncts...))
	}
	return bestFieldsQuery{fields: fields}
}

func phraseQuery(phrase string, fields []domain.FieldBoost) query.Query {
	perField := make([]query.Query, 0, len(fields))
	for _, fb := range fields {
		pq := bleve.NewMatchPhraseQuery(phrase)
		pq.SetField(fb.Field)
		if fb.Boost > 0 {
			pq.SetBoost(fb.Boost)
		}
		perField = append(perField, pq)
	}
	return bestFieldsQuery{fields: perField}
}

func excludeQuery(term string, fields []domain.FieldBoost) query.Query {
	var disjuncts []query.Query
	for _, fb := range fields {
		mq := bleve.NewMatchQuery(term)
		mq.SetField(fb.Field)
		disjuncts = append(disjuncts, mq)
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

func filterQuery(f domain.FilterClause) query.Query {
	switch f.Kind {
	case domain.FilterTerm:
		if len(f.Values) == 0 {
			return nil
		}
		return termQuery(f.Field, f.Values[0])
	case domain.FilterTerms:
		if len(f.Values) == 0 {
			return nil
		}
		terms := make([]query.Query, 0, len(f.Values))
		for _, v := range f.Values {
			terms = append(terms, termQuery(f.Field, v))
		}
		return bleve.NewDisjunctionQuery(terms...)
	case domain.FilterBool:
		bq := bleve.NewBoolFieldQuery(f.Bool)
		bq.SetField(f.Field)
		return bq
	case domain.FilterDateRange:
		if f.Range.IsZero() {
			return nil
		}
		inclusive := true
		dq := bleve.NewDateRangeInclusiveQuery(f.Range.From, f.Range.To, &inclusive, &inclusive)
		dq.SetField(f.Field)
		return dq
	default:
		return nil
	}
}

func termQuery(field, value string) query.Query {
	tq := bleve.NewTermQuery(value)
	tq.SetField(field)
	return tq
}

// sortOrder renders sort clauses in bleve's "-field" notation.
func sortOrder(clauses []domain.SortClause) []string {
	order := make([]string, 0, len(clauses))
	for _, c := range clauses {
		name := c.Field
		if c.Descending {
			name = "-" + name
		}
		order = append(order, name)
	}
	return order
}

// prefixTokens lowercases the prefix and clips each token to the longest
// indexed gram. Tokens shorter than the shortest gram cannot match and are
// dropped.
func prefixTokens(prefix string) []string {
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(prefix)) {
		if utf8.RuneCountInString(tok) < domain.AutocompleteMinGram {
			continue
		}
		if utf8.RuneCountInString(tok) > domain.AutocompleteMaxGram {
			tok = string([]rune(tok)[:domain.AutocompleteMaxGram])
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// completionQuery matches every prefix token against the autocomplete
// companion of field, restricted to visible documents.
func completionQuery(field string, tokens []string) query.Query {
	mq := bleve.NewMatchQuery(strings.Join(tokens, " "))
	mq.SetField(domain.AutocompleteField(field))
	mq.Analyzer = prefixAnalyzer
	mq.SetOperator(query.MatchQueryOperatorAnd)

	visible := bleve.NewBoolFieldQuery(true)
	visible.SetField(domain.FieldVisible)
	return bleve.NewConjunctionQuery(mq, visible)
}
