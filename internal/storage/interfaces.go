package storage

import (
	"context"
	"time"

	"portfolio-lab/internal/domain"
)

// JobStore tracks background comparison jobs.
type JobStore interface {
	// Create sweeps terminal jobs older than the store TTL, then inserts a
	// queued job with a fresh id and progress 0.
	Create(ctx context.Context) (*domain.Job, error)

	// Get retrieves a job by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// Update applies a progress report. Updates for unknown ids are ignored.
	Update(ctx context.Context, id string, u domain.JobUpdate) error
}

// StoredResult is a finished comparison keyed by its deterministic run id.
type StoredResult struct {
	RunID     string
	Request   domain.CompareRequest
	Response  *domain.CompareResponse
	CreatedAt time.Time
}

// ResultStore persists finished comparisons. Append-only.
type ResultStore interface {
	// Insert adds a result. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *StoredResult) error

	// GetByRunID retrieves a result. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*StoredResult, error)

	// ListRecent returns up to limit results, newest first.
	ListRecent(ctx context.Context, limit int) ([]*StoredResult, error)
}

// PriceBarStore provides access to daily price bars.
type PriceBarStore interface {
	// Upsert adds bars. A bar for an existing (ticker, date) replaces it.
	Upsert(ctx context.Context, bars []domain.PriceBar) error

	// GetRange retrieves bars for tickers within [start, end] (inclusive),
	// ordered by date ASC then ticker ASC.
	GetRange(ctx context.Context, tickers []string, start, end time.Time) ([]domain.PriceBar, error)

	// Tickers lists every ticker with at least one bar, sorted.
	Tickers(ctx context.Context) ([]string, error)
}

// RateStore provides access to the annualized risk-free rate history.
type RateStore interface {
	// Upsert adds points. A point for an existing date replaces it.
	Upsert(ctx context.Context, points []domain.RatePoint) error

	// GetRange retrieves points within [start, end] (inclusive), ordered by date ASC.
	GetRange(ctx context.Context, start, end time.Time) ([]domain.RatePoint, error)

	// Latest returns the most recent point. Returns ErrNotFound if the store is empty.
	Latest(ctx context.Context) (*domain.RatePoint, error)
}
