package clickhouse

import (
	"context"
	"fmt"
	"math"
	"time"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/storage"
)

// RateStore implements storage.RateStore using ClickHouse.
type RateStore struct {
	conn *Conn
}

// NewRateStore creates a new RateStore.
func NewRateStore(conn *Conn) *RateStore {
	return &RateStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RateStore = (*RateStore)(nil)

// Upsert adds points in one batch.
func (s *RateStore) Upsert(ctx context.Context, points []domain.RatePoint) (err error) {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p.Date.IsZero() || math.IsNaN(p.Rate) {
			return storage.ErrInvalidInput
		}
	}
	started := time.Now()
	defer func() { observe("rates_upsert", started, err) }()

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO risk_free_rates (date, rate, source)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, p := range points {
		if err := batch.Append(storage.Day(p.Date), p.Rate, p.Source); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRange retrieves points within [start, end] (inclusive), ordered by date ASC.
func (s *RateStore) GetRange(ctx context.Context, start, end time.Time) (points []domain.RatePoint, err error) {
	started := time.Now()
	defer func() { observe("rates_range", started, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT date, rate, source
		FROM risk_free_rates FINAL
		WHERE date >= toDate(?) AND date <= toDate(?)
		ORDER BY date ASC
	`, start.UTC().Format(domain.DateLayout), end.UTC().Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query rates by range: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.RatePoint
		if err := rows.Scan(&p.Date, &p.Rate, &p.Source); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		p.Date = storage.Day(p.Date)
		points = append(points, p)
	}
	return points, rows.Err()
}

// Latest returns the most recent point.
func (s *RateStore) Latest(ctx context.Context) (point *domain.RatePoint, err error) {
	started := time.Now()
	defer func() { observe("rates_latest", started, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT date, rate, source
		FROM risk_free_rates FINAL
		ORDER BY date DESC
		LIMIT 1
	`)
	if err != nil {
		return nil, fmt.Errorf("query latest rate: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, storage.ErrNotFound
	}
	var p domain.RatePoint
	if err := rows.Scan(&p.Date, &p.Rate, &p.Source); err != nil {
		return nil, fmt.Errorf("scan rate: %w", err)
	}
	p.Date = storage.Day(p.Date)
	return &p, nil
}
