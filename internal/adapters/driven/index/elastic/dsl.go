package elastic

import (
	"fmt"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// Sub-field carrying the edge n-gram analysis of autocomplete fields.
const autocompleteSubField = "autocomplete"

// indexBody renders index settings and mappings for a definition.
func indexBody(def domain.IndexDefinition) map[string]any {
	props := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		prop := map[string]any{"type": esType(f.Kind)}
		if f.Autocomplete {
			prop["fields"] = map[string]any{
				autocompleteSubField: map[string]any{
					"type":            "text",
					"analyzer":        domain.AutocompleteAnalyzer,
					"search_analyzer": "standard",
				},
			}
		}
		props[f.Name] = prop
	}

	return map[string]any{
		"settings": map[string]any{
			"analysis": map[string]any{
				"filter": map[string]any{
					"autocomplete_filter": map[string]any{
						"type":     "edge_ngram",
						"min_gram": domain.AutocompleteMinGram,
						"max_gram": domain.AutocompleteMaxGram,
					},
				},
				"analyzer": map[string]any{
					domain.AutocompleteAnalyzer: map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase", "autocomplete_filter"},
					},
				},
			},
		},
		"mappings": map[string]any{
			"properties": props,
		},
	}
}

func esType(k domain.FieldKind) string {
	switch k {
	case domain.FieldKeyword:
		return "keyword"
	case domain.FieldInteger:
		return "integer"
	case domain.FieldBoolean:
		return "boolean"
	case domain.FieldDate:
		return "date"
	case domain.FieldGeoPoint:
		return "geo_point"
	default:
		return "text"
	}
}

// searchBody renders a structured query as a bool query with scoring
// clauses in must, filters in filter and exclusions in must_not.
func searchBody(q domain.StructuredQuery, page domain.Page) map[string]any {
	fields := boostedFields(q.Fields)

	var must []any
	if q.MatchAll {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	} else if q.Text != "" {
		mm := map[string]any{
			"query":  q.Text,
			"fields": fields,
			"type":   "best_fields",
		}
		if q.Fuzzy {
			mm["fuzziness"] = "AUTO"
			mm["prefix_length"] = q.PrefixLength
		}
		must = append(must, map[string]any{"multi_match": mm})
	}
	for _, p := range q.Phrases {
		must = append(must, map[string]any{"multi_match": map[string]any{
			"query":  p,
			"fields": fields,
			"type":   "phrase",
		}})
	}
	if len(must) == 0 {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}

	filter := make([]any, 0, len(q.Filters))
	for _, f := range q.Filters {
		if c := filterClause(f); c != nil {
			filter = append(filter, c)
		}
	}

	boolQ := map[string]any{"must": must, "filter": filter}
	if len(q.Excluded) > 0 {
		mustNot := make([]any, 0, len(q.Excluded))
		for _, term := range q.Excluded {
			mustNot = append(mustNot, map[string]any{"multi_match": map[string]any{
				"query":  term,
				"fields": fields,
			}})
		}
		boolQ["must_not"] = mustNot
	}

	body := map[string]any{
		"query":            map[string]any{"bool": boolQ},
		"from":             page.Offset,
		"size":             page.Limit,
		"track_total_hits": true,
	}

	if len(q.Sort) > 0 {
		sorts := make([]any, 0, len(q.Sort))
		for _, s := range q.Sort {
			order := "asc"
			if s.Descending {
				order = "desc"
			}
			sorts = append(sorts, map[string]any{s.Field: map[string]any{"order": order}})
		}
		body["sort"] = sorts
	}

	if len(q.Highlight.Fields) > 0 {
		hf := make(map[string]any, len(q.Highlight.Fields))
		for _, f := range q.Highlight.Fields {
			hf[f] = map[string]any{
				"fragment_size":       q.Highlight.FragmentSize,
				"number_of_fragments": q.Highlight.Fragments,
			}
		}
		body["highlight"] = map[string]any{
			"pre_tags":  []string{q.Highlight.PreTag},
			"post_tags": []string{q.Highlight.PostTag},
			"fields":    hf,
		}
	}

	if len(q.Aggregations) > 0 {
		aggs := make(map[string]any, len(q.Aggregations))
		for _, a := range q.Aggregations {
			aggs[a.Name] = map[string]any{"terms": map[string]any{"field": a.Field, "size": a.Size}}
		}
		body["aggs"] = aggs
	}
	return body
}

func boostedFields(fbs []domain.FieldBoost) []string {
	out := make([]string, 0, len(fbs))
	for _, fb := range fbs {
		if fb.Boost > 0 && fb.Boost != 1 {
			out = append(out, fmt.Sprintf("%s^%g", fb.Field, fb.Boost))
		} else {
			out = append(out, fb.Field)
		}
	}
	return out
}

func filterClause(f domain.FilterClause) map[string]any {
	switch f.Kind {
	case domain.FilterTerm:
		if len(f.Values) == 0 {
			return nil
		}
		return map[string]any{"term": map[string]any{f.Field: f.Values[0]}}
	case domain.FilterTerms:
		if len(f.Values) == 0 {
			return nil
		}
		return map[string]any{"terms": map[string]any{f.Field: f.Values}}
	case domain.FilterBool:
		return map[string]any{"term": map[string]any{f.Field: f.Bool}}
	case domain.FilterDateRange:
		if f.Range.IsZero() {
			return nil
		}
		r := map[string]any{}
		if !f.Range.From.IsZero() {
			r["gte"] = f.Range.From.UTC().Format(time.RFC3339)
		}
		if !f.Range.To.IsZero() {
			r["lte"] = f.Range.To.UTC().Format(time.RFC3339)
		}
		return map[string]any{"range": map[string]any{f.Field: r}}
	default:
		return nil
	}
}

// completionBody matches the prefix against the autocomplete sub-field of
// each suggest field. Every prefix token must match.
func completionBody(suggestFields []string, prefix string, limit int) map[string]any {
	should := make([]any, 0, len(suggestFields))
	for _, f := range suggestFields {
		should = append(should, map[string]any{"match": map[string]any{
			f + "." + autocompleteSubField: map[string]any{
				"query":    prefix,
				"operator": "and",
			},
		}})
	}
	return map[string]any{
		"size":    limit,
		"_source": suggestFields,
		"query": map[string]any{"bool": map[string]any{
			"should":               should,
			"minimum_should_match": 1,
			"filter":               []any{map[string]any{"term": map[string]any{domain.FieldVisible: true}}},
		}},
	}
}
