package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/storage"
)

// PriceBarStore is an in-memory implementation of storage.PriceBarStore.
type PriceBarStore struct {
	mu   sync.RWMutex
	data map[string]domain.PriceBar // keyed by (ticker, date)
}

// NewPriceBarStore creates a new in-memory price bar store.
func NewPriceBarStore() *PriceBarStore {
	return &PriceBarStore{
		data: make(map[string]domain.PriceBar),
	}
}

// barKey generates a unique key for a bar.
func barKey(ticker string, date time.Time) string {
	return fmt.Sprintf("%s|%s", ticker, date.Format(domain.DateLayout))
}

// Upsert adds bars, replacing existing (ticker, date) entries.
// Validates the whole batch before writing.
func (s *PriceBarStore) Upsert(_ context.Context, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	for _, b := range bars {
		if err := storage.ValidateBar(b); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range bars {
		b.Ticker = strings.ToUpper(strings.TrimSpace(b.Ticker))
		b.Date = storage.Day(b.Date)
		s.data[barKey(b.Ticker, b.Date)] = b
	}
	return nil
}

// GetRange retrieves bars for tickers within [start, end] (inclusive).
func (s *PriceBarStore) GetRange(_ context.Context, tickers []string, start, end time.Time) ([]domain.PriceBar, error) {
	want := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		want[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
	}
	start, end = storage.Day(start), storage.Day(end)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PriceBar
	for _, b := range s.data {
		if _, ok := want[b.Ticker]; !ok {
			continue
		}
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		result = append(result, b)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Ticker < result[j].Ticker
	})
	return result, nil
}

// Tickers lists every stored ticker, sorted.
func (s *PriceBarStore) Tickers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, b := range s.data {
		seen[b.Ticker] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

var _ storage.PriceBarStore = (*PriceBarStore)(nil)
