package services

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

var (
	phrasePattern = regexp.MustCompile(`"([^"]+)"`)
	fieldPattern  = regexp.MustCompile(`^(\w+):(\S+)$`)
)

// ParsedQuery is user input split into its operators.
type ParsedQuery struct {
	// Text is the remaining free text.
	Text string

	// Phrases are "quoted" exact phrases.
	Phrases []string

	// Excluded are terms following NOT.
	Excluded []string

	// Tags, Author and Category come from tag:, author: and category: operators.
	Tags     []string
	Author   string
	Category string

	// Entities comes from type:, nil when absent.
	Entities []domain.EntityType
}

// ParseQuery extracts "exact phrases", field:value filters and NOT terms from
// raw. AND and OR are dropped. Unknown fields and unknown type values are kept
// as free text.
func ParseQuery(raw string) ParsedQuery {
	var pq ParsedQuery

	for _, m := range phrasePattern.FindAllStringSubmatch(raw, -1) {
		if p := strings.TrimSpace(m[1]); p != "" {
			pq.Phrases = append(pq.Phrases, p)
		}
	}
	raw = phrasePattern.ReplaceAllString(raw, " ")
	raw = strings.ReplaceAll(raw, `"`, " ")

	var terms []string
	tokens := strings.Fields(raw)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch strings.ToUpper(tok) {
		case "AND", "OR":
			continue
		case "NOT":
			if i+1 < len(tokens) {
				i++
				pq.Excluded = append(pq.Excluded, tokens[i])
			}
			continue
		}

		if m := fieldPattern.FindStringSubmatch(tok); m != nil && pq.applyField(m[1], m[2]) {
			continue
		}
		terms = append(terms, tok)
	}

	pq.Text = strings.Join(terms, " ")
	return pq
}

func (pq *ParsedQuery) applyField(field, value string) bool {
	switch strings.ToLower(field) {
	case "tag", "tags":
		for _, t := range strings.Split(value, ",") {
			if t != "" {
				pq.Tags = append(pq.Tags, t)
			}
		}
		return true
	case "author", "user", "username":
		pq.Author = strings.TrimPrefix(value, "@")
		return true
	case "category":
		pq.Category = value
		return true
	case "type":
		entities, err := domain.ParseEntityFilter(value)
		if err != nil {
			return false
		}
		pq.Entities = entities
		return true
	default:
		return false
	}
}

// MergeFilters combines operator filters with caller filters.
// Caller values win for single-valued filters; tags are unioned.
func (pq ParsedQuery) MergeFilters(f domain.SearchFilters) domain.SearchFilters {
	if len(pq.Tags) > 0 {
		seen := make(map[string]bool, len(f.Tags))
		tags := append([]string(nil), f.Tags...)
		for _, t := range tags {
			seen[t] = true
		}
		for _, t := range pq.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
		f.Tags = tags
	}
	if f.Author == "" {
		f.Author = pq.Author
	}
	if f.Category == "" {
		f.Category = pq.Category
	}
	return f
}

// MergeEntities narrows the caller's entity selection by the type: operator.
// The result is empty when the two selections do not overlap.
func (pq ParsedQuery) MergeEntities(entities []domain.EntityType) []domain.EntityType {
	if len(entities) == 0 {
		entities = domain.AllEntityTypes()
	}
	if pq.Entities == nil {
		return entities
	}
	want := make(map[domain.EntityType]bool, len(pq.Entities))
	for _, e := range pq.Entities {
		want[e] = true
	}
	out := []domain.EntityType{}
	for _, e := range entities {
		if want[e] {
			out = append(out, e)
		}
	}
	return out
}
