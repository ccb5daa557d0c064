package domain

import (
	"fmt"
	"strings"
)

// FieldKind describes how a field is analysed and stored by the index.
type FieldKind string

// Field kinds.
const (
	// FieldKeyword is matched exactly and used for filters and facets.
	FieldKeyword FieldKind = "keyword"

	// FieldText is tokenised and scored.
	FieldText FieldKind = "text"

	// FieldInteger is a numeric counter.
	FieldInteger FieldKind = "integer"

	// FieldBoolean is a true/false flag.
	FieldBoolean FieldKind = "boolean"

	// FieldDate is a timestamp. An absent timestamp is indexed as nil.
	FieldDate FieldKind = "date"

	// FieldGeoPoint is a latitude/longitude pair. An absent location is indexed as nil.
	FieldGeoPoint FieldKind = "geo_point"
)

// Nullable reports whether nil is the unset value of the kind. Every other
// kind has a concrete default: "" for keyword and text, an empty slice for
// multi-valued fields, 0 for integers and false for booleans unless the
// mapper documents otherwise.
func (k FieldKind) Nullable() bool {
	return k == FieldDate || k == FieldGeoPoint
}

// Autocomplete analyser settings shared by every index.
const (
	AutocompleteAnalyzer = "autocomplete"
	AutocompleteMinGram  = 2
	AutocompleteMaxGram  = 10
)

// Field names shared by the mapper, the query builder and the gateways.
const (
	FieldEntityType = "entity_type"
	FieldUserID     = "user_id"
	FieldUsername   = "username"
	FieldCaption    = "caption"
	FieldContent    = "content"
	FieldTags       = "tags"
	FieldCategory   = "category"
	FieldLikes      = "likes"
	FieldComments   = "comments"
	FieldShares     = "shares"
	FieldViews      = "views"
	FieldLocation   = "location"
	FieldCreatedAt  = "created_at"
	FieldUpdatedAt  = "updated_at"
	FieldCreatedDay = "created_day"
	FieldIsPublic   = "is_public"
	FieldVisible    = "visible"
	FieldFirstName  = "first_name"
	FieldLastName   = "last_name"
	FieldBio        = "bio"
	FieldEmail      = "email"
	FieldCollege    = "college"
	FieldDepartment = "department"
	FieldFollowers  = "followers"
	FieldFollowing  = "following"
	FieldPosts      = "posts"
	FieldVerified   = "verified"
	FieldPostID     = "post_id"
)

// DayLayout formats the created_day bucket field.
const DayLayout = "2006-01-02"

// FieldDef declares a single index field.
type FieldDef struct {
	// Name is the field name in the indexed document.
	Name string

	// Kind selects analysis and storage.
	Kind FieldKind

	// Multi marks multi-valued fields such as tags.
	Multi bool

	// Autocomplete adds an edge-n-gram companion field named by AutocompleteField.
	Autocomplete bool
}

// AutocompleteField returns the companion field name for prefix matching on name.
func AutocompleteField(name string) string {
	return name + "_" + AutocompleteAnalyzer
}

// IndexDefinition is the schema of one entity type's index.
type IndexDefinition struct {
	// Entity is the owning entity type.
	Entity EntityType

	// Fields lists every field the mapper emits, in declaration order.
	Fields []FieldDef

	// SuggestField is the text field used for completion suggestions. Empty disables completion.
	SuggestField string
}

// Field returns the definition of name.
// Autocomplete companion names resolve to a text field.
func (d IndexDefinition) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
		if f.Autocomplete && AutocompleteField(f.Name) == name {
			return FieldDef{Name: name, Kind: FieldText}, true
		}
	}
	return FieldDef{}, false
}

// FieldNames returns the declared field names.
func (d IndexDefinition) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Has reports whether name is declared.
func (d IndexDefinition) Has(name string) bool {
	_, ok := d.Field(name)
	return ok
}

// Validate checks that every name is declared.
func (d IndexDefinition) Validate(names ...string) error {
	var missing []string
	for _, n := range names {
		if !d.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s index has no field %s",
			ErrInvalidIndexDefinition, d.Entity.IndexSuffix(), strings.Join(missing, ", "))
	}
	return nil
}

// Definition returns the static index definition for e.
func (e EntityType) Definition() IndexDefinition {
	switch e {
	case EntityPost:
		return postDefinition
	case EntityUser:
		return userDefinition
	case EntityComment:
		return commentDefinition
	default:
		return IndexDefinition{}
	}
}

// DefinedInAny reports whether name is declared by at least one of types.
func DefinedInAny(types []EntityType, name string) bool {
	for _, e := range types {
		if e.Definition().Has(name) {
			return true
		}
	}
	return false
}

var postDefinition = IndexDefinition{
	Entity: EntityPost,
	Fields: []FieldDef{
		{Name: FieldEntityType, Kind: FieldKeyword},
		{Name: FieldUserID, Kind: FieldKeyword},
		{Name: FieldUsername, Kind: FieldKeyword},
		{Name: FieldCaption, Kind: FieldText, Autocomplete: true},
		{Name: FieldContent, Kind: FieldText},
		{Name: FieldTags, Kind: FieldKeyword, Multi: true},
		{Name: FieldCategory, Kind: FieldKeyword},
		{Name: FieldLikes, Kind: FieldInteger},
		{Name: FieldComments, Kind: FieldInteger},
		{Name: FieldShares, Kind: FieldInteger},
		{Name: FieldViews, Kind: FieldInteger},
		{Name: FieldLocation, Kind: FieldGeoPoint},
		{Name: FieldCreatedAt, Kind: FieldDate},
		{Name: FieldUpdatedAt, Kind: FieldDate},
		{Name: FieldCreatedDay, Kind: FieldKeyword},
		{Name: FieldIsPublic, Kind: FieldBoolean},
		{Name: FieldVisible, Kind: FieldBoolean},
	},
	SuggestField: FieldCaption,
}

var userDefinition = IndexDefinition{
	Entity: EntityUser,
	Fields: []FieldDef{
		{Name: FieldEntityType, Kind: FieldKeyword},
		{Name: FieldUsername, Kind: FieldKeyword, Autocomplete: true},
		{Name: FieldFirstName, Kind: FieldText},
		{Name: FieldLastName, Kind: FieldText},
		{Name: FieldBio, Kind: FieldText},
		{Name: FieldEmail, Kind: FieldKeyword},
		{Name: FieldCollege, Kind: FieldKeyword},
		{Name: FieldDepartment, Kind: FieldKeyword},
		{Name: FieldFollowers, Kind: FieldInteger},
		{Name: FieldFollowing, Kind: FieldInteger},
		{Name: FieldPosts, Kind: FieldInteger},
		{Name: FieldVerified, Kind: FieldBoolean},
		{Name: FieldCreatedAt, Kind: FieldDate},
		{Name: FieldUpdatedAt, Kind: FieldDate},
		{Name: FieldCreatedDay, Kind: FieldKeyword},
		{Name: FieldVisible, Kind: FieldBoolean},
	},
	SuggestField: FieldUsername,
}

var commentDefinition = IndexDefinition{
	Entity: EntityComment,
	Fields: []FieldDef{
		{Name: FieldEntityType, Kind: FieldKeyword},
		{Name: FieldPostID, Kind: FieldKeyword},
		{Name: FieldUserID, Kind: FieldKeyword},
		{Name: FieldUsername, Kind: FieldKeyword},
		{Name: FieldContent, Kind: FieldText},
		{Name: FieldLikes, Kind: FieldInteger},
		{Name: FieldCreatedAt, Kind: FieldDate},
		{Name: FieldUpdatedAt, Kind: FieldDate},
		{Name: FieldCreatedDay, Kind: FieldKeyword},
		{Name: FieldVisible, Kind: FieldBoolean},
	},
}
