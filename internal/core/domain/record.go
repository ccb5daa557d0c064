package domain

import "time"

// Record is a primary-store record as read by the sync engine.
type Record interface {
	// RecordID returns the primary key in string form.
	RecordID() string

	// Entity returns the record's entity type.
	Entity() EntityType

	// ModifiedAt returns the last modification time, falling back to creation time.
	ModifiedAt() time.Time
}

// AuthorRef is the author relationship of a post or comment.
type AuthorRef struct {
	ID       string
	Username string
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// PostRecord is a post as stored in the primary store.
// Pointer fields are nil when the source value is absent.
type PostRecord struct {
	ID        string
	Author    *AuthorRef
	Caption   *string
	Content   *string
	Tags      []string
	Category  *string
	Likes     *int
	Comments  *int
	Shares    *int
	Views     *int
	Location  *GeoPoint
	IsPublic  *bool
	Deleted   bool
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// RecordID implements Record.
func (p *PostRecord) RecordID() string { return p.ID }

// Entity implements Record.
func (p *PostRecord) Entity() EntityType { return EntityPost }

// ModifiedAt implements Record.
func (p *PostRecord) ModifiedAt() time.Time { return modifiedAt(p.CreatedAt, p.UpdatedAt) }

// UserRecord is a user profile as stored in the primary store.
type UserRecord struct {
	ID          string
	Username    *string
	FirstName   *string
	LastName    *string
	Bio         *string
	Email       *string
	College     *string
	Department  *string
	Followers   *int
	Following   *int
	Posts       *int
	Verified    *bool
	Deactivated bool
	CreatedAt   *time.Time
	UpdatedAt   *time.Time
}

// RecordID implements Record.
func (u *UserRecord) RecordID() string { return u.ID }

// Entity implements Record.
func (u *UserRecord) Entity() EntityType { return EntityUser }

// ModifiedAt implements Record.
func (u *UserRecord) ModifiedAt() time.Time { return modifiedAt(u.CreatedAt, u.UpdatedAt) }

// CommentRecord is a comment as stored in the primary store.
type CommentRecord struct {
	ID        string
	PostID    string
	Author    *AuthorRef
	Content   *string
	Likes     *int
	Deleted   bool
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// RecordID implements Record.
func (c *CommentRecord) RecordID() string { return c.ID }

// Entity implements Record.
func (c *CommentRecord) Entity() EntityType { return EntityComment }

// ModifiedAt implements Record.
func (c *CommentRecord) ModifiedAt() time.Time { return modifiedAt(c.CreatedAt, c.UpdatedAt) }

// ModifiedWindow selects records modified within [Since, Until] and pages
// them by keyset in (modification time, id) order. A page starts strictly
// after the (AfterTime, AfterID) cursor; the zero cursor starts at Since.
type ModifiedWindow struct {
	Since time.Time
	Until time.Time

	AfterTime time.Time
	AfterID   string
}

// Contains reports whether r falls inside the window and after the cursor.
func (w ModifiedWindow) Contains(r Record) bool {
	m := r.ModifiedAt()
	if m.Before(w.Since) || m.After(w.Until) {
		return false
	}
	if m.Equal(w.AfterTime) {
		return r.RecordID() > w.AfterID
	}
	return m.After(w.AfterTime)
}

// Next returns the window positioned after r, the last record of a page.
func (w ModifiedWindow) Next(r Record) ModifiedWindow {
	w.AfterTime = r.ModifiedAt()
	w.AfterID = r.RecordID()
	return w
}

// Cursor returns the effective keyset position, never earlier than Since.
func (w ModifiedWindow) Cursor() (time.Time, string) {
	if w.AfterTime.Before(w.Since) {
		return w.Since, ""
	}
	return w.AfterTime, w.AfterID
}

// ModifiedOrder sorts records by modification time, then id.
func ModifiedOrder(a, b Record) bool {
	ma, mb := a.ModifiedAt(), b.ModifiedAt()
	if !ma.Equal(mb) {
		return ma.Before(mb)
	}
	return a.RecordID() < b.RecordID()
}

func modifiedAt(created, updated *time.Time) time.Time {
	if updated != nil {
		return *updated
	}
	if created != nil {
		return *created
	}
	return time.Time{}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
