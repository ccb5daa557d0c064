package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func post(id string, created, updated int) *domain.PostRecord {
	p := &domain.PostRecord{ID: id, CreatedAt: domain.Ptr(t0.Add(time.Duration(created) * time.Minute))}
	if updated > 0 {
		p.UpdatedAt = domain.Ptr(t0.Add(time.Duration(updated) * time.Minute))
	}
	return p
}

func recordIDs(recs []domain.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.RecordID()
	}
	return out
}

func TestRecordSource_FindByID(t *testing.T) {
	src := NewRecordSource(post("p1", 0, 0), &domain.UserRecord{ID: "u1"})
	ctx := context.Background()

	rec, err := src.FindByID(ctx, domain.EntityPost, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.RecordID())

	_, err = src.FindByID(ctx, domain.EntityPost, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	src.Remove(domain.EntityPost, "p1")
	_, err = src.FindByID(ctx, domain.EntityPost, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordSource_Pages(t *testing.T) {
	src := NewRecordSource(post("p3", 20, 0), post("p1", 10, 0), post("p2", 1, 50))
	ctx := context.Background()

	page, err := src.FindPage(ctx, domain.EntityPost, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, recordIDs(page))

	page, err = src.FindPage(ctx, domain.EntityPost, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, recordIDs(page))

	page, err = src.FindPage(ctx, domain.EntityPost, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, page)

	page, err = src.FindPage(ctx, domain.EntityComment, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestRecordSource_FindModifiedSince(t *testing.T) {
	src := NewRecordSource(post("p3", 20, 0), post("p1", 10, 0), post("p2", 1, 50), post("p4", 20, 0))
	ctx := context.Background()
	w := domain.ModifiedWindow{Since: t0.Add(10 * time.Minute), Until: t0.Add(time.Hour)}

	recs, err := src.FindModifiedSince(ctx, domain.EntityPost, w, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p3", "p4", "p2"}, recordIDs(recs))

	// Ties on modification time break by id.
	recs, err = src.FindModifiedSince(ctx, domain.EntityPost, w.Next(post("p3", 20, 0)), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p4", "p2"}, recordIDs(recs))

	w.Until = t0.Add(20 * time.Minute)
	recs, err = src.FindModifiedSince(ctx, domain.EntityPost, w, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p3", "p4"}, recordIDs(recs))
}

func TestRecordSource_FailWith(t *testing.T) {
	src := NewRecordSource(post("p1", 0, 0))
	ctx := context.Background()

	src.FailWith(errors.New("connection reset"))
	_, err := src.FindPage(ctx, domain.EntityPost, 0, 10)
	assert.ErrorIs(t, err, domain.ErrPrimaryStoreRead)
	_, err = src.FindByID(ctx, domain.EntityPost, "p1")
	assert.ErrorIs(t, err, domain.ErrPrimaryStoreRead)
	_, err = src.FindModifiedSince(ctx, domain.EntityPost, domain.ModifiedWindow{Until: t0}, 10)
	assert.ErrorIs(t, err, domain.ErrPrimaryStoreRead)

	src.FailWith(nil)
	_, err = src.FindByID(ctx, domain.EntityPost, "p1")
	assert.NoError(t, err)
}
