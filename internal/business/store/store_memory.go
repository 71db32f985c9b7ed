package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"bizreg/internal/business/models"
	"bizreg/internal/business/query"
	"bizreg/pkg/platform/sentinel"
)

type memoryEntry struct {
	record *models.BusinessRecord
	seq    int64
}

// InMemoryStore keeps business records in process memory. The unique index
// on control number is enforced under the write lock.
type InMemoryStore struct {
	mu        sync.RWMutex
	records   map[models.BusinessID]*memoryEntry
	byControl map[string]models.BusinessID
	nextSeq   int64
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records:   make(map[models.BusinessID]*memoryEntry),
		byControl: make(map[string]models.BusinessID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, rec *models.BusinessRecord) error {
	if rec == nil {
		return fmt.Errorf("business record is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID.IsNil() {
		rec.ID = models.NewBusinessID()
	}
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("business %s: %w", rec.ID, sentinel.ErrConflict)
	}
	if _, ok := s.byControl[rec.ControlNumber]; ok {
		return fmt.Errorf("control number %s: %w", rec.ControlNumber, sentinel.ErrConflict)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	s.nextSeq++
	s.records[rec.ID] = &memoryEntry{record: rec.Clone(), seq: s.nextSeq}
	s.byControl[rec.ControlNumber] = rec.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id models.BusinessID) (*models.BusinessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.records[id]; ok {
		return e.record.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByControlNumber(_ context.Context, controlNumber string) (*models.BusinessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byControl[controlNumber]; ok {
		return s.records[id].record.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// Update replaces the mutable fields of an existing record. The control
// number and creation time are kept from the stored copy.
func (s *InMemoryStore) Update(_ context.Context, rec *models.BusinessRecord) error {
	if rec == nil {
		return fmt.Errorf("business record is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[rec.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	updated := rec.Clone()
	updated.ControlNumber = e.record.ControlNumber
	updated.CreatedAt = e.record.CreatedAt
	e.record = updated
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id models.BusinessID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byControl, e.record.ControlNumber)
	delete(s.records, id)
	return nil
}

// Find returns matching records ordered by sort, then insertion order.
// A limit of 0 returns every record after offset.
func (s *InMemoryStore) Find(_ context.Context, f query.Filter, sort query.Sort, offset, limit int) ([]*models.BusinessRecord, error) {
	s.mu.RLock()
	matches := make([]*memoryEntry, 0, len(s.records))
	for _, e := range s.records {
		if f.Matches(e.record) {
			matches = append(matches, e)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matches, func(a, b *memoryEntry) int {
		if c := sort.Compare(a.record, b.record); c != 0 {
			return c
		}
		return int(a.seq - b.seq)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matches) {
		return []*models.BusinessRecord{}, nil
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	out := make([]*models.BusinessRecord, len(matches))
	for i, e := range matches {
		out[i] = e.record.Clone()
	}
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context, f query.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.records {
		if f.Matches(e.record) {
			n++
		}
	}
	return n, nil
}

// CountBy groups matching records by a derived key. Records whose key
// cannot be derived are left out.
func (s *InMemoryStore) CountBy(_ context.Context, f query.Filter, key query.GroupKey) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, e := range s.records {
		if !f.Matches(e.record) {
			continue
		}
		if v := key.GroupValue(e.record); v != "" {
			counts[v]++
		}
	}
	return counts, nil
}
