package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

// DefaultCategory is assigned to posts without a category.
const DefaultCategory = "general"

// Project maps a primary-store record to its index document.
// The document carries every field of the entity's definition.
func Project(record domain.Record) (domain.IndexedDocument, error) {
	if record == nil {
		return domain.IndexedDocument{}, fmt.Errorf("%w: nil record", domain.ErrProjection)
	}
	return ProjectAs(record.Entity(), record)
}

// ProjectAs maps record as the given entity type.
// A record of another type is a projection error.
func ProjectAs(entity domain.EntityType, record domain.Record) (domain.IndexedDocument, error) {
	if record == nil {
		return domain.IndexedDocument{}, fmt.Errorf("%w: nil record", domain.ErrProjection)
	}
	if record.RecordID() == "" {
		return domain.IndexedDocument{}, fmt.Errorf("%w: %s without id", domain.ErrProjection, entity)
	}

	var (
		fields map[string]any
		err    error
	)
	switch r := record.(type) {
	case *domain.PostRecord:
		if entity != domain.EntityPost {
			break
		}
		fields, err = projectPost(r)
	case *domain.UserRecord:
		if entity != domain.EntityUser {
			break
		}
		fields = projectUser(r)
	case *domain.CommentRecord:
		if entity != domain.EntityComment {
			break
		}
		fields, err = projectComment(r)
	}
	if err != nil {
		return domain.IndexedDocument{}, err
	}
	if fields == nil {
		return domain.IndexedDocument{}, fmt.Errorf("%w: %T is not a %s record",
			domain.ErrProjection, record, entity)
	}

	return domain.IndexedDocument{
		Entity: entity,
		ID:     record.RecordID(),
		Fields: fields,
	}, nil
}

func projectPost(p *domain.PostRecord) (map[string]any, error) {
	if p.Author == nil {
		return nil, fmt.Errorf("%w: post %s has no author", domain.ErrProjection, p.ID)
	}

	category := str(p.Category)
	if category == "" {
		category = DefaultCategory
	}
	isPublic := p.IsPublic == nil || *p.IsPublic

	fields := map[string]any{
		domain.FieldEntityType: domain.EntityPost.String(),
		domain.FieldUserID:     p.Author.ID,
		domain.FieldUsername:   p.Author.Username,
		domain.FieldCaption:    str(p.Caption),
		domain.FieldContent:    str(p.Content),
		domain.FieldTags:       tags(p.Tags),
		domain.FieldCategory:   category,
		domain.FieldLikes:      num(p.Likes),
		domain.FieldComments:   num(p.Comments),
		domain.FieldShares:     num(p.Shares),
		domain.FieldViews:      num(p.Views),
		domain.FieldLocation:   geo(p.Location),
		domain.FieldIsPublic:   isPublic,
		domain.FieldVisible:    isPublic && !p.Deleted,
	}
	setDates(fields, p.CreatedAt, p.UpdatedAt)
	return fields, nil
}

func projectUser(u *domain.UserRecord) map[string]any {
	fields := map[string]any{
		domain.FieldEntityType: domain.EntityUser.String(),
		domain.FieldUsername:   str(u.Username),
		domain.FieldFirstName:  str(u.FirstName),
		domain.FieldLastName:   str(u.LastName),
		domain.FieldBio:        str(u.Bio),
		domain.FieldEmail:      str(u.Email),
		domain.FieldCollege:    str(u.College),
		domain.FieldDepartment: str(u.Department),
		domain.FieldFollowers:  num(u.Followers),
		domain.FieldFollowing:  num(u.Following),
		domain.FieldPosts:      num(u.Posts),
		domain.FieldVerified:   u.Verified != nil && *u.Verified,
		domain.FieldVisible:    !u.Deactivated,
	}
	setDates(fields, u.CreatedAt, u.UpdatedAt)
	return fields
}

func projectComment(c *domain.CommentRecord) (map[string]any, error) {
	if c.Author == nil {
		return nil, fmt.Errorf("%w: comment %s has no author", domain.ErrProjection, c.ID)
	}

	fields := map[string]any{
		domain.FieldEntityType: domain.EntityComment.String(),
		domain.FieldPostID:     c.PostID,
		domain.FieldUserID:     c.Author.ID,
		domain.FieldUsername:   c.Author.Username,
		domain.FieldContent:    str(c.Content),
		domain.FieldLikes:      num(c.Likes),
		domain.FieldVisible:    !c.Deleted,
	}
	setDates(fields, c.CreatedAt, c.UpdatedAt)
	return fields, nil
}

// setDates writes created_at, updated_at and the created_day bucket.
// Absent dates are stored as nil, the unset value of nullable kinds.
func setDates(fields map[string]any, created, updated *time.Time) {
	fields[domain.FieldCreatedAt] = date(created)
	fields[domain.FieldUpdatedAt] = date(updated)
	if created != nil {
		fields[domain.FieldCreatedDay] = created.UTC().Format(domain.DayLayout)
	} else {
		fields[domain.FieldCreatedDay] = ""
	}
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func date(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func tags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// geo returns nil for an absent location.
func geo(p *domain.GeoPoint) any {
	if p == nil {
		return nil
	}
	return map[string]any{"lat": p.Lat, "lon": p.Lon}
}
