package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
)

// Ensure RecordSource implements the interface.
var _ driven.RecordSource = (*RecordSource)(nil)

// RecordSource is an in-memory primary store. Records are held by reference.
type RecordSource struct {
	mu      sync.RWMutex
	records map[domain.EntityType]map[string]domain.Record

	// err, when set, fails every read.
	err error
}

// NewRecordSource creates a record source holding the given records.
func NewRecordSource(records ...domain.Record) *RecordSource {
	s := &RecordSource{records: make(map[domain.EntityType]map[string]domain.Record)}
	s.Put(records...)
	return s
}

// Put inserts or replaces records.
func (s *RecordSource) Put(records ...domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		byID, ok := s.records[r.Entity()]
		if !ok {
			byID = make(map[string]domain.Record)
			s.records[r.Entity()] = byID
		}
		byID[r.RecordID()] = r
	}
}

// Remove deletes a record.
func (s *RecordSource) Remove(entity domain.EntityType, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[entity], id)
}

// FailWith makes every subsequent read fail with err. Nil restores reads.
func (s *RecordSource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// FindByID returns one record.
func (s *RecordSource) FindByID(_ context.Context, entity domain.EntityType, id string) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrimaryStoreRead, s.err)
	}
	r, ok := s.records[entity][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return r, nil
}

// FindModifiedSince returns records inside the window after its cursor,
// in (modification time, id) order.
func (s *RecordSource) FindModifiedSince(
	_ context.Context, entity domain.EntityType, w domain.ModifiedWindow, limit int,
) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrimaryStoreRead, s.err)
	}

	var matched []domain.Record
	for _, r := range s.records[entity] {
		if w.Contains(r) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return domain.ModifiedOrder(matched[i], matched[j]) })
	return window(matched, 0, limit), nil
}

// FindPage returns records in id order.
func (s *RecordSource) FindPage(_ context.Context, entity domain.EntityType, offset, limit int) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrimaryStoreRead, s.err)
	}

	all := make([]domain.Record, 0, len(s.records[entity]))
	for _, r := range s.records[entity] {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RecordID() < all[j].RecordID() })
	return window(all, offset, limit), nil
}

func window(records []domain.Record, offset, limit int) []domain.Record {
	if offset >= len(records) {
		return []domain.Record{}
	}
	end := len(records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return records[offset:end]
}
