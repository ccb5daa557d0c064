package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// recordTable describes how one entity is read from the primary tables.
type recordTable struct {
	selectFrom string
	alias      string
	scan       func(rowScanner) (domain.Record, error)
}

var recordTables = map[domain.EntityType]recordTable{
	domain.EntityPost: {
		selectFrom: `SELECT p.id, p.author_id, u.username, p.caption, p.content, p.tags, p.category,
			p.likes_count, p.comments_count, p.shares_count, p.views_count, p.lat, p.lon,
			p.is_public, p.is_deleted, p.created_at, p.updated_at
			FROM posts p LEFT JOIN users u ON u.id = p.author_id`,
		alias: "p",
		scan:  scanPost,
	},
	domain.EntityUser: {
		selectFrom: `SELECT u.id, u.username, u.first_name, u.last_name, u.bio, u.email, u.college,
			u.department, u.followers_count, u.following_count, u.posts_count, u.is_verified,
			u.is_deactivated, u.created_at, u.updated_at
			FROM users u`,
		alias: "u",
		scan:  scanUser,
	},
	domain.EntityComment: {
		selectFrom: `SELECT c.id, c.post_id, c.author_id, u.username, c.content, c.likes_count,
			c.is_deleted, c.created_at, c.updated_at
			FROM comments c LEFT JOIN users u ON u.id = c.author_id`,
		alias: "c",
		scan:  scanComment,
	},
}

// recordSource implements driven.RecordSource.
type recordSource struct {
	store *Store
}

var _ driven.RecordSource = (*recordSource)(nil)

func tableFor(entity domain.EntityType) (recordTable, error) {
	t, ok := recordTables[entity]
	if !ok {
		return recordTable{}, fmt.Errorf("%w: unknown entity type %d", domain.ErrInvalidInput, entity)
	}
	return t, nil
}

// FindByID returns one record.
func (s *recordSource) FindByID(ctx context.Context, entity domain.EntityType, id string) (domain.Record, error) {
	t, err := tableFor(entity)
	if err != nil {
		return nil, err
	}

	row := s.store.db.QueryRowContext(ctx, t.selectFrom+" WHERE "+t.alias+".id = ?", id)
	rec, err := t.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s %s: %w", domain.ErrPrimaryStoreRead, entity, id, err)
	}
	return rec, nil
}

// FindModifiedSince pages records inside the window by keyset on
// (modification time, id), so rows modified mid-pass never shift a page.
func (s *recordSource) FindModifiedSince(
	ctx context.Context, entity domain.EntityType, window domain.ModifiedWindow, limit int,
) ([]domain.Record, error) {
	t, err := tableFor(entity)
	if err != nil {
		return nil, err
	}

	modified := fmt.Sprintf("COALESCE(%[1]s.updated_at, %[1]s.created_at)", t.alias)
	query := fmt.Sprintf(`%[1]s WHERE %[2]s >= ? AND %[2]s <= ?
		AND (%[2]s > ? OR (%[2]s = ? AND %[3]s.id > ?))
		ORDER BY %[2]s, %[3]s.id LIMIT ?`,
		t.selectFrom, modified, t.alias)

	afterTime, afterID := window.Cursor()
	after := afterTime.UnixMilli()
	return s.list(ctx, entity, t, query,
		window.Since.UnixMilli(), window.Until.UnixMilli(), after, after, afterID, limit)
}

// FindPage returns records in id order.
func (s *recordSource) FindPage(ctx context.Context, entity domain.EntityType, offset, limit int) ([]domain.Record, error) {
	t, err := tableFor(entity)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("%s ORDER BY %s.id LIMIT ? OFFSET ?", t.selectFrom, t.alias)
	return s.list(ctx, entity, t, query, limit, offset)
}

func (s *recordSource) list(
	ctx context.Context, entity domain.EntityType, t recordTable, query string, args ...any,
) ([]domain.Record, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %w", domain.ErrPrimaryStoreRead, entity, err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		rec, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning %s: %w", domain.ErrPrimaryStoreRead, entity, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating %s: %w", domain.ErrPrimaryStoreRead, entity, err)
	}
	return records, nil
}

// ==================== Scanners ====================

func scanPost(row rowScanner) (domain.Record, error) {
	var p domain.PostRecord
	var authorID, username, caption, content, tags, category sql.NullString
	var likes, comments, shares, views sql.NullInt64
	var lat, lon sql.NullFloat64
	var public sql.NullBool
	var deleted bool
	var createdAt, updatedAt sql.NullInt64

	if err := row.Scan(&p.ID, &authorID, &username, &caption, &content, &tags, &category,
		&likes, &comments, &shares, &views, &lat, &lon,
		&public, &deleted, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	p.Author = authorRef(authorID, username)
	p.Caption = strPtr(caption)
	p.Content = strPtr(content)
	p.Category = strPtr(category)
	p.Likes = intPtr(likes)
	p.Comments = intPtr(comments)
	p.Shares = intPtr(shares)
	p.Views = intPtr(views)
	if lat.Valid && lon.Valid {
		p.Location = &domain.GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
	}
	p.IsPublic = boolPtr(public)
	p.Deleted = deleted
	p.CreatedAt = timePtr(createdAt)
	p.UpdatedAt = timePtr(updatedAt)

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags of post %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func scanUser(row rowScanner) (domain.Record, error) {
	var u domain.UserRecord
	var username, firstName, lastName, bio, email, college, department sql.NullString
	var followers, following, posts sql.NullInt64
	var verified sql.NullBool
	var deactivated bool
	var createdAt, updatedAt sql.NullInt64

	if err := row.Scan(&u.ID, &username, &firstName, &lastName, &bio, &email, &college,
		&department, &followers, &following, &posts, &verified,
		&deactivated, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	u.Username = strPtr(username)
	u.FirstName = strPtr(firstName)
	u.LastName = strPtr(lastName)
	u.Bio = strPtr(bio)
	u.Email = strPtr(email)
	u.College = strPtr(college)
	u.Department = strPtr(department)
	u.Followers = intPtr(followers)
	u.Following = intPtr(following)
	u.Posts = intPtr(posts)
	u.Verified = boolPtr(verified)
	u.Deactivated = deactivated
	u.CreatedAt = timePtr(createdAt)
	u.UpdatedAt = timePtr(updatedAt)
	return &u, nil
}

func scanComment(row rowScanner) (domain.Record, error) {
	var c domain.CommentRecord
	var authorID, username, content sql.NullString
	var likes sql.NullInt64
	var deleted bool
	var createdAt, updatedAt sql.NullInt64

	if err := row.Scan(&c.ID, &c.PostID, &authorID, &username, &content, &likes,
		&deleted, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	c.Author = authorRef(authorID, username)
	c.Content = strPtr(content)
	c.Likes = intPtr(likes)
	c.Deleted = deleted
	c.CreatedAt = timePtr(createdAt)
	c.UpdatedAt = timePtr(updatedAt)
	return &c, nil
}

func authorRef(id, username sql.NullString) *domain.AuthorRef {
	if !id.Valid || id.String == "" {
		return nil
	}
	return &domain.AuthorRef{ID: id.String, Username: username.String}
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	return &v.Bool
}
