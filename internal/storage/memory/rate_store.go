package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/storage"
)

// RateStore is an in-memory implementation of storage.RateStore.
type RateStore struct {
	mu   sync.RWMutex
	data map[time.Time]domain.RatePoint // keyed by UTC day
}

// NewRateStore creates a new in-memory rate store.
func NewRateStore() *RateStore {
	return &RateStore{
		data: make(map[time.Time]domain.RatePoint),
	}
}

// Upsert adds points, replacing existing dates.
func (s *RateStore) Upsert(_ context.Context, points []domain.RatePoint) error {
	for _, p := range points {
		if p.Date.IsZero() || math.IsNaN(p.Rate) {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		p.Date = storage.Day(p.Date)
		s.data[p.Date] = p
	}
	return nil
}

// GetRange retrieves points within [start, end] (inclusive), ordered by date ASC.
func (s *RateStore) GetRange(_ context.Context, start, end time.Time) ([]domain.RatePoint, error) {
	start, end = storage.Day(start), storage.Day(end)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.RatePoint
	for d, p := range s.data {
		if !d.Before(start) && !d.After(end) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// Latest returns the most recent point.
func (s *RateStore) Latest(_ context.Context) (*domain.RatePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.RatePoint
	for _, p := range s.data {
		if latest == nil || p.Date.After(latest.Date) {
			pointCopy := p
			latest = &pointCopy
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

var _ storage.RateStore = (*RateStore)(nil)
