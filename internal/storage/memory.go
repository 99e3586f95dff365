package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/global-data-controller/countryseed/internal/models"
)

// MemoryStore keeps documents in process memory. It backs dry runs and tests.
type MemoryStore struct {
	mu   sync.Mutex
	docs []models.Country
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Backend implements Store
func (s *MemoryStore) Backend() string { return BackendMemory }

// Clear implements Store
func (s *MemoryStore) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.docs))
	s.docs = nil
	return n, nil
}

// InsertMany implements Store. A duplicate iso2 rejects the whole batch.
func (s *MemoryStore) InsertMany(ctx context.Context, records []models.Country) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.docs)+len(records))
	for _, doc := range s.docs {
		seen[doc.ISO2] = struct{}{}
	}
	for _, record := range records {
		if _, ok := seen[record.ISO2]; ok {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateKey, record.ISO2)
		}
		seen[record.ISO2] = struct{}{}
	}

	for _, record := range records {
		s.docs = append(s.docs, cloneCountry(record))
	}
	return len(records), nil
}

// SampleMiddleEastern implements Store
func (s *MemoryStore) SampleMiddleEastern(ctx context.Context, limit int) ([]models.Country, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Country{}
	for _, doc := range s.docs {
		if len(out) >= limit {
			break
		}
		if doc.MiddleEastern {
			out = append(out, cloneCountry(doc))
		}
	}
	return out, nil
}

// Count implements Store
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.docs)), nil
}

// Close implements Store
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func cloneCountry(c models.Country) models.Country {
	states := make([]models.State, len(c.States))
	copy(states, c.States)
	c.States = states
	return c
}
