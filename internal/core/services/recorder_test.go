package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
)

type countingMetrics struct {
	driven.NopMetrics
	dropped chan string
}

func (m *countingMetrics) QueryLogDropped(kind string) { m.dropped <- kind }

func TestQueryLogRecorder_RecordAndDrain(t *testing.T) {
	store := newMockQueryLogStore()
	r := NewQueryLogRecorder(store, RecorderConfig{})

	id := r.Record(domain.SearchQueryRecord{UserID: "u1", Query: "chem lab"})
	require.NotEmpty(t, id)
	r.RecordClick(id, domain.ClickedResult{ResultID: "p1", ResultType: domain.EntityPost, Position: 1})

	require.NoError(t, r.Close(context.Background()))

	saved := store.saved()
	require.Len(t, saved, 1)
	assert.Equal(t, id, saved[0].ID)
	assert.False(t, saved[0].SearchedAt.IsZero())
	require.Len(t, store.clicks[id], 1)
	assert.False(t, store.clicks[id][0].ClickedAt.IsZero())
}

func TestQueryLogRecorder_KeepsGivenID(t *testing.T) {
	store := newMockQueryLogStore()
	r := NewQueryLogRecorder(store, RecorderConfig{})

	assert.Equal(t, "fixed", r.Record(domain.SearchQueryRecord{ID: "fixed"}))
	require.NoError(t, r.Close(context.Background()))
}

func TestQueryLogRecorder_FullQueueDropsWithoutBlocking(t *testing.T) {
	store := newMockQueryLogStore()
	store.saveDelay = 200 * time.Millisecond
	metrics := &countingMetrics{dropped: make(chan string, 16)}

	r := NewQueryLogRecorder(store, RecorderConfig{QueueSize: 1, WriteTimeout: time.Second})
	r.SetMetrics(metrics)

	start := time.Now()
	for i := 0; i < 5; i++ {
		r.Record(domain.SearchQueryRecord{Query: "q"})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	select {
	case kind := <-metrics.dropped:
		assert.Equal(t, "query", kind)
	case <-time.After(time.Second):
		t.Fatal("expected a dropped entry")
	}
	require.NoError(t, r.Close(context.Background()))
}

func TestQueryLogRecorder_StoreFailureSwallowed(t *testing.T) {
	store := newMockQueryLogStore()
	store.saveErr = errors.New("disk full")
	r := NewQueryLogRecorder(store, RecorderConfig{})

	id := r.Record(domain.SearchQueryRecord{Query: "q"})
	assert.NotEmpty(t, id)
	require.NoError(t, r.Close(context.Background()))
	assert.Empty(t, store.saved())
}

func TestQueryLogRecorder_WriteTimeout(t *testing.T) {
	store := newMockQueryLogStore()
	store.saveDelay = time.Second
	r := NewQueryLogRecorder(store, RecorderConfig{WriteTimeout: 10 * time.Millisecond})

	r.Record(domain.SearchQueryRecord{Query: "slow"})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Close(ctx))
	assert.Empty(t, store.saved())
}

func TestQueryLogRecorder_AfterClose(t *testing.T) {
	store := newMockQueryLogStore()
	r := NewQueryLogRecorder(store, RecorderConfig{})
	require.NoError(t, r.Close(context.Background()))
	require.NoError(t, r.Close(context.Background()))

	assert.NotEmpty(t, r.Record(domain.SearchQueryRecord{Query: "late"}))
	r.RecordClick("x", domain.ClickedResult{ResultID: "p"})
	assert.Empty(t, store.saved())
}

func TestQueryLogRecorder_NilStore(t *testing.T) {
	r := NewQueryLogRecorder(nil, RecorderConfig{})
	r.Record(domain.SearchQueryRecord{Query: "q"})
	require.NoError(t, r.Close(context.Background()))
}
