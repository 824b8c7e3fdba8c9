package memory

import (
	"context"
	"sort"
	"sync"

	"portfolio-lab/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu   sync.RWMutex
	data map[string]*storage.StoredResult // keyed by run_id
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		data: make(map[string]*storage.StoredResult),
	}
}

// Insert adds a result. Returns ErrDuplicateKey if run_id exists.
func (s *ResultStore) Insert(_ context.Context, r *storage.StoredResult) error {
	if r == nil || r.RunID == "" || r.Response == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	resultCopy := *r
	s.data[r.RunID] = &resultCopy
	return nil
}

// GetByRunID retrieves a result by run id.
func (s *ResultStore) GetByRunID(_ context.Context, runID string) (*storage.StoredResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	resultCopy := *r
	return &resultCopy, nil
}

// ListRecent returns up to limit results, newest first.
func (s *ResultStore) ListRecent(_ context.Context, limit int) ([]*storage.StoredResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.StoredResult, 0, len(s.data))
	for _, r := range s.data {
		resultCopy := *r
		result = append(result, &resultCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.ResultStore = (*ResultStore)(nil)
