package bleveindex

import (
	"strings"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// decodeFields normalises stored field values by kind. Bleve returns a
// single stored value as a scalar and numbers as float64.
func decodeFields(def domain.IndexDefinition, stored map[string]interface{}) map[string]any {
	out := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		v, ok := stored[f.Name]
		if !ok {
			if f.Multi {
				out[f.Name] = []string{}
			}
			continue
		}
		switch {
		case f.Multi:
			out[f.Name] = toStrings(v)
		case f.Kind == domain.FieldInteger:
			if n, ok := v.(float64); ok {
				out[f.Name] = int(n)
			} else {
				out[f.Name] = v
			}
		case f.Kind == domain.FieldGeoPoint:
			out[f.Name] = toGeo(v)
		default:
			out[f.Name] = v
		}
	}
	return out
}

func toStrings(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case []string:
		return t
	default:
		return []string{}
	}
}

// toGeo converts bleve's [lon, lat] pair to a lat/lon map.
func toGeo(v interface{}) any {
	var pair []float64
	switch t := v.(type) {
	case []float64:
		pair = t
	case []interface{}:
		for _, x := range t {
			if f, ok := x.(float64); ok {
				pair = append(pair, f)
			}
		}
	default:
		return v
	}
	if len(pair) != 2 {
		return v
	}
	return map[string]any{"lat": pair[1], "lon": pair[0]}
}

// fragments trims highlight fragments to the requested count and applies the
// requested tags.
func fragments(frags map[string][]string, spec domain.HighlightSpec) map[string][]string {
	if len(frags) == 0 {
		return nil
	}
	var replacer *strings.Replacer
	if (spec.PreTag != "" && spec.PreTag != markPreTag) || (spec.PostTag != "" && spec.PostTag != markPostTag) {
		replacer = strings.NewReplacer(markPreTag, spec.PreTag, markPostTag, spec.PostTag)
	}

	out := make(map[string][]string, len(frags))
	for field, fs := range frags {
		if spec.Fragments > 0 && len(fs) > spec.Fragments {
			fs = fs[:spec.Fragments]
		}
		cp := make([]string, len(fs))
		for i, f := range fs {
			if replacer != nil {
				f = replacer.Replace(f)
			}
			cp[i] = f
		}
		out[field] = cp
	}
	return out
}
