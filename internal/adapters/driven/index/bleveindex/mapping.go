package bleveindex

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	htmlformat "github.com/blevesearch/bleve/v2/search/highlight/format/html"
	simplefrag "github.com/blevesearch/bleve/v2/search/highlight/fragmenter/simple"
	simplehl "github.com/blevesearch/bleve/v2/search/highlight/highlighter/simple"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

const (
	edgeNgramFilter  = "autocomplete_edge"
	prefixAnalyzer   = "autocomplete_prefix"
	markFragmenter   = "mark_fragments"
	markFormatter    = "mark_html"
	markHighlighter  = "mark"
	markPreTag       = "<mark>"
	markPostTag      = "</mark>"
	markFragmentSize = 150
)

// buildMapping derives the bleve mapping from an index definition.
// Text fields get term vectors for highlighting; autocomplete fields get an
// edge n-gram companion field named by domain.AutocompleteField.
func buildMapping(def domain.IndexDefinition) (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = standard.Name
	m.IndexDynamic = false
	m.StoreDynamic = false
	m.DocValuesDynamic = false

	if err := m.AddCustomTokenFilter(edgeNgramFilter, map[string]interface{}{
		"type": edgengram.Name,
		"min":  float64(domain.AutocompleteMinGram),
		"max":  float64(domain.AutocompleteMaxGram),
	}); err != nil {
		return nil, fmt.Errorf("edge ngram filter: %w", err)
	}
	if err := m.AddCustomAnalyzer(domain.AutocompleteAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name, edgeNgramFilter},
	}); err != nil {
		return nil, fmt.Errorf("autocomplete analyzer: %w", err)
	}
	if err := m.AddCustomAnalyzer(prefixAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("prefix analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false
	for _, f := range def.Fields {
		fm, err := fieldMapping(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", def.Entity.IndexSuffix(), err)
		}
		fms := []*mapping.FieldMapping{fm}
		if f.Autocomplete {
			ac := bleve.NewTextFieldMapping()
			ac.Name = domain.AutocompleteField(f.Name)
			ac.Analyzer = domain.AutocompleteAnalyzer
			ac.Store = false
			ac.IncludeInAll = false
			ac.IncludeTermVectors = false
			fms = append(fms, ac)
		}
		doc.AddFieldMappingsAt(f.Name, fms...)
	}
	m.DefaultMapping = doc

	return m, nil
}

func fieldMapping(f domain.FieldDef) (*mapping.FieldMapping, error) {
	var fm *mapping.FieldMapping
	switch f.Kind {
	case domain.FieldText:
		fm = bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.IncludeTermVectors = true
	case domain.FieldKeyword:
		fm = bleve.NewKeywordFieldMapping()
		fm.Analyzer = keyword.Name
	case domain.FieldInteger:
		fm = bleve.NewNumericFieldMapping()
	case domain.FieldBoolean:
		fm = bleve.NewBooleanFieldMapping()
	case domain.FieldDate:
		fm = bleve.NewDateTimeFieldMapping()
	case domain.FieldGeoPoint:
		fm = bleve.NewGeoPointFieldMapping()
	default:
		return nil, fmt.Errorf("%w: field %s has unknown kind %q", domain.ErrInvalidIndexDefinition, f.Name, f.Kind)
	}
	fm.Store = true
	return fm, nil
}

var (
	highlighterOnce sync.Once
	highlighterErr  error
)

// registerHighlighter defines the <mark> highlighter in bleve's global
// registry, where search requests resolve highlight styles.
func registerHighlighter() error {
	highlighterOnce.Do(func() {
		cache := bleve.Config.Cache
		if _, err := cache.DefineFragmenter(markFragmenter, map[string]interface{}{
			"type": simplefrag.Name,
			"size": float64(markFragmentSize),
		}); err != nil {
			highlighterErr = fmt.Errorf("fragmenter: %w", err)
			return
		}
		if _, err := cache.DefineFragmentFormatter(markFormatter, map[string]interface{}{
			"type":   htmlformat.Name,
			"before": markPreTag,
			"after":  markPostTag,
		}); err != nil {
			highlighterErr = fmt.Errorf("fragment formatter: %w", err)
			return
		}
		if _, err := cache.DefineHighlighter(markHighlighter, map[string]interface{}{
			"type":       simplehl.Name,
			"fragmenter": markFragmenter,
			"formatter":  markFormatter,
		}); err != nil {
			highlighterErr = fmt.Errorf("highlighter: %w", err)
		}
	})
	return highlighterErr
}
