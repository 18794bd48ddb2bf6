package storage

import (
	"context"
	"sort"
	"sync"

	"mercator-hq/relay/pkg/audit"
)

// MemoryStorage keeps audit records in a map. Records are lost on exit.
type MemoryStorage struct {
	records map[string]*audit.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*audit.Record),
	}
}

// Store persists a copy of rec.
func (s *MemoryStorage) Store(ctx context.Context, rec *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *rec
	s.records[rec.ID] = &c
	return nil
}

// Query returns copies of the matching records, newest first.
func (s *MemoryStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Record, error) {
	s.mu.RLock()
	results := make([]*audit.Record, 0)
	for _, rec := range s.records {
		if q.Matches(rec) {
			c := *rec
			results = append(results, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].RecordedAt.Equal(results[j].RecordedAt) {
			return results[i].ID > results[j].ID
		}
		return results[i].RecordedAt.After(results[j].RecordedAt)
	})

	if q == nil {
		return results, nil
	}
	if q.Offset >= len(results) {
		return []*audit.Record{}, nil
	}
	results = results[q.Offset:]
	if q.Limit > 0 && q.Limit < len(results) {
		results = results[:q.Limit]
	}
	return results, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, rec := range s.records {
		if q.Matches(rec) {
			n++
		}
	}
	return n, nil
}

// Delete removes the matching records.
func (s *MemoryStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, rec := range s.records {
		if q.Matches(rec) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close releases the records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*audit.Record)
	return nil
}
