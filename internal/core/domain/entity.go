package domain

import (
	"fmt"
	"strings"
)

// EntityType is the closed set of record kinds projected into the search index.
// Each variant carries its index name and IndexDefinition as static data.
type EntityType uint8

// Entity types.
const (
	EntityPost EntityType = iota + 1
	EntityUser
	EntityComment
)

// DefaultIndexPrefix is prepended to every physical index name.
const DefaultIndexPrefix = "college_media"

// AllEntityTypes returns every entity type in a stable order.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityPost, EntityUser, EntityComment}
}

// String returns the singular name used in filters and results.
func (e EntityType) String() string {
	switch e {
	case EntityPost:
		return "post"
	case EntityUser:
		return "user"
	case EntityComment:
		return "comment"
	default:
		return "unknown"
	}
}

// IndexSuffix returns the plural collection name used in index names.
func (e EntityType) IndexSuffix() string {
	switch e {
	case EntityPost:
		return "posts"
	case EntityUser:
		return "users"
	case EntityComment:
		return "comments"
	default:
		return ""
	}
}

// Valid reports whether e is one of the declared entity types.
func (e EntityType) Valid() bool {
	return e >= EntityPost && e <= EntityComment
}

// IndexName returns the physical index name for e under prefix.
func (e EntityType) IndexName(prefix string) string {
	if prefix == "" {
		return e.IndexSuffix()
	}
	return prefix + "_" + e.IndexSuffix()
}

// MarshalText implements encoding.TextMarshaler.
func (e EntityType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EntityType) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityType(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEntityType accepts singular or plural names, case-insensitively.
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "post", "posts":
		return EntityPost, nil
	case "user", "users":
		return EntityUser, nil
	case "comment", "comments":
		return EntityComment, nil
	default:
		return 0, fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, s)
	}
}

// ParseEntityFilter parses a comma-separated entity filter.
// An empty filter or "all" selects every entity type.
func ParseEntityFilter(s string) ([]EntityType, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllEntityTypes(), nil
	}

	seen := make(map[EntityType]bool)
	var types []EntityType
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		e, err := ParseEntityType(part)
		if err != nil {
			return nil, err
		}
		if !seen[e] {
			seen[e] = true
			types = append(types, e)
		}
	}
	if len(types) == 0 {
		return AllEntityTypes(), nil
	}
	return types, nil
}

// EntityTypeFromIndex maps a physical index name back to its entity type.
func EntityTypeFromIndex(prefix, indexName string) (EntityType, bool) {
	for _, e := range AllEntityTypes() {
		if e.IndexName(prefix) == indexName {
			return e, true
		}
	}
	return 0, false
}

// EntityNames returns the string names of types, or "all" when every type is selected.
func EntityNames(types []EntityType) string {
	if len(types) == 0 || len(types) == len(AllEntityTypes()) {
		return "all"
	}
	names := make([]string, len(types))
	for i, e := range types {
		names[i] = e.String()
	}
	return strings.Join(names, ",")
}
