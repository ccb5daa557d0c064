package services

import (
	"strings"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// Highlight and aggregation settings applied to every search.
const (
	highlightPreTag       = "<mark>"
	highlightPostTag      = "</mark>"
	highlightFragmentSize = 150
	highlightFragments    = 3
	tagBucketSize         = 20
	dayBucketSize         = 31
	fuzzyPrefixLength     = 2
)

// DefaultSearchFields are the boosted fields free text is matched against.
var DefaultSearchFields = []domain.FieldBoost{
	{Field: domain.FieldCaption, Boost: 3},
	{Field: domain.FieldContent, Boost: 2},
	{Field: domain.FieldUsername, Boost: 2},
	{Field: domain.FieldTags, Boost: 2},
	{Field: domain.FieldBio, Boost: 1},
	{Field: domain.FieldFirstName, Boost: 1},
	{Field: domain.FieldLastName, Boost: 1},
}

// QueryBuilder turns user input into a backend-neutral StructuredQuery.
type QueryBuilder struct {
	fields []domain.FieldBoost
}

// NewQueryBuilder creates a query builder over DefaultSearchFields.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{fields: DefaultSearchFields}
}

// Build creates a query for free text. Blank text browses every visible document.
func (b *QueryBuilder) Build(text string, filters domain.SearchFilters, sort domain.SortMode) domain.StructuredQuery {
	return b.BuildParsed(ParsedQuery{Text: strings.TrimSpace(text)}, filters, sort)
}

// BuildParsed creates a query from parsed input. Field filters extracted by the
// parser must already be merged into filters.
func (b *QueryBuilder) BuildParsed(pq ParsedQuery, filters domain.SearchFilters, sort domain.SortMode) domain.StructuredQuery {
	q := domain.StructuredQuery{
		Fields:       b.fields,
		Fuzzy:        true,
		PrefixLength: fuzzyPrefixLength,
		Excluded:     pq.Excluded,
		Filters:      buildFilters(filters),
		Sort:         buildSort(sort),
		Highlight: domain.HighlightSpec{
			Fields:       []string{domain.FieldCaption, domain.FieldContent, domain.FieldBio},
			PreTag:       highlightPreTag,
			PostTag:      highlightPostTag,
			FragmentSize: highlightFragmentSize,
			Fragments:    highlightFragments,
		},
		Aggregations: []domain.AggregationSpec{
			{Name: domain.AggregationTypes, Field: domain.FieldEntityType, Size: len(domain.AllEntityTypes())},
			{Name: domain.AggregationTags, Field: domain.FieldTags, Size: tagBucketSize},
			{Name: domain.AggregationByDay, Field: domain.FieldCreatedDay, Size: dayBucketSize},
		},
	}

	text := strings.TrimSpace(pq.Text)
	if text == "" && len(pq.Phrases) == 0 {
		q.MatchAll = true
		return q
	}
	q.Text = text
	q.Phrases = pq.Phrases
	return q
}

func buildFilters(f domain.SearchFilters) []domain.FilterClause {
	clauses := []domain.FilterClause{domain.BoolFilter(domain.FieldVisible, true)}
	if len(f.Tags) > 0 {
		clauses = append(clauses, domain.TermsFilter(domain.FieldTags, f.Tags...))
	}
	if f.Author != "" {
		clauses = append(clauses, domain.TermFilter(domain.FieldUsername, f.Author))
	}
	if !f.DateRange.IsZero() {
		clauses = append(clauses, domain.DateRangeFilter(domain.FieldCreatedAt, f.DateRange))
	}
	if f.Category != "" {
		clauses = append(clauses, domain.TermFilter(domain.FieldCategory, f.Category))
	}
	return clauses
}

func buildSort(mode domain.SortMode) []domain.SortClause {
	switch mode {
	case domain.SortNewest:
		return []domain.SortClause{{Field: domain.FieldCreatedAt, Descending: true}}
	case domain.SortOldest:
		return []domain.SortClause{{Field: domain.FieldCreatedAt}}
	case domain.SortPopular:
		return []domain.SortClause{
			{Field: domain.FieldLikes, Descending: true},
			{Field: domain.FieldViews, Descending: true},
			{Field: domain.FieldCreatedAt, Descending: true},
		}
	default:
		return []domain.SortClause{
			{Field: domain.SortFieldScore, Descending: true},
			{Field: domain.FieldCreatedAt, Descending: true},
		}
	}
}

// ReferencedFields returns every field name q reads, for validation against
// index definitions.
func ReferencedFields(q domain.StructuredQuery) []string {
	var names []string
	for _, f := range q.Fields {
		names = append(names, f.Field)
	}
	for _, f := range q.Filters {
		names = append(names, f.Field)
	}
	for _, s := range q.Sort {
		if s.Field != domain.SortFieldScore {
			names = append(names, s.Field)
		}
	}
	names = append(names, q.Highlight.Fields...)
	for _, a := range q.Aggregations {
		names = append(names, a.Field)
	}
	return names
}
