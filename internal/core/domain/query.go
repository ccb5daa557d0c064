package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// SortMode selects the ordering of search results.
type SortMode string

// Sort modes.
const (
	SortRelevance SortMode = "relevance"
	SortNewest    SortMode = "newest"
	SortOldest    SortMode = "oldest"
	SortPopular   SortMode = "popular"
)

// ParseSortMode returns the sort mode named by s. Unknown names select relevance.
func ParseSortMode(s string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case SortNewest:
		return SortNewest
	case SortOldest:
		return SortOldest
	case SortPopular:
		return SortPopular
	default:
		return SortRelevance
	}
}

// DateRange bounds created_at. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether both bounds are open.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// SearchFilters are the caller-supplied result filters.
type SearchFilters struct {
	// Tags matches documents carrying any of the tags.
	Tags []string

	// Author matches the exact username.
	Author string

	// DateRange bounds the creation time.
	DateRange DateRange

	// Category matches the exact category.
	Category string
}

// IsZero reports whether no filter is set.
func (f SearchFilters) IsZero() bool {
	return len(f.Tags) == 0 && f.Author == "" && f.DateRange.IsZero() && f.Category == ""
}

// FilterKind is the shape of a filter clause.
type FilterKind uint8

// Filter kinds.
const (
	// FilterTerm matches one exact value.
	FilterTerm FilterKind = iota + 1

	// FilterTerms matches any of several exact values.
	FilterTerms

	// FilterBool matches a boolean value.
	FilterBool

	// FilterDateRange matches dates within an inclusive range.
	FilterDateRange
)

// FilterClause is a non-scoring filter.
type FilterClause struct {
	Kind   FilterKind
	Field  string
	Values []string
	Bool   bool
	Range  DateRange
}

// TermFilter matches field == value.
func TermFilter(field, value string) FilterClause {
	return FilterClause{Kind: FilterTerm, Field: field, Values: []string{value}}
}

// TermsFilter matches any of values.
func TermsFilter(field string, values ...string) FilterClause {
	return FilterClause{Kind: FilterTerms, Field: field, Values: values}
}

// BoolFilter matches field == value.
func BoolFilter(field string, value bool) FilterClause {
	return FilterClause{Kind: FilterBool, Field: field, Bool: value}
}

// DateRangeFilter matches field within r.
func DateRangeFilter(field string, r DateRange) FilterClause {
	return FilterClause{Kind: FilterDateRange, Field: field, Range: r}
}

// FieldBoost weights a field in a multi-field match.
type FieldBoost struct {
	Field string
	Boost float64
}

// SortFieldScore sorts by relevance score.
const SortFieldScore = "_score"

// SortClause orders results by one field.
type SortClause struct {
	Field      string
	Descending bool
}

// HighlightSpec requests marked-up fragments.
type HighlightSpec struct {
	Fields       []string
	PreTag       string
	PostTag      string
	FragmentSize int
	Fragments    int
}

// AggregationSpec requests a term-bucket aggregation.
type AggregationSpec struct {
	Name  string
	Field string
	Size  int
}

// Aggregation names.
const (
	AggregationTypes = "types"
	AggregationTags  = "tags"
	AggregationByDay = "by_day"
)

// StructuredQuery is a backend-neutral search request produced by the query builder.
// Each index gateway translates it to its own query language.
type StructuredQuery struct {
	// MatchAll selects every document (browse mode). Text is ignored.
	MatchAll bool

	// Text is matched best-fields style across Fields.
	Text string

	// Fields lists the boosted fields Text and Phrases are matched against.
	Fields []FieldBoost

	// Fuzzy enables AUTO edit distance per term.
	Fuzzy bool

	// PrefixLength is the number of leading runes that must match exactly.
	PrefixLength int

	// Phrases must each match as an exact phrase.
	Phrases []string

	// Excluded terms must not match any field.
	Excluded []string

	// Filters are applied without scoring.
	Filters []FilterClause

	// Sort orders the results.
	Sort []SortClause

	// Highlight requests fragments.
	Highlight HighlightSpec

	// Aggregations requests term buckets.
	Aggregations []AggregationSpec
}

// AutoFuzziness returns the edit distance for term: 0 up to 2 runes,
// 1 up to 5 runes and 2 beyond.
func AutoFuzziness(term string) int {
	n := utf8.RuneCountInString(term)
	switch {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

// Page selects a window of results.
type Page struct {
	Offset int
	Limit  int
}

// Bucket is one term bucket of an aggregation.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Hit is one matching document.
type Hit struct {
	Entity     EntityType
	ID         string
	Score      float64
	Fields     map[string]any
	Highlights map[string][]string
}

// SearchHits is the raw gateway result.
type SearchHits struct {
	Total        int
	Hits         []Hit
	Aggregations map[string][]Bucket
}
