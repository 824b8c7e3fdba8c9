package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/storage"
)

// PriceBarStore implements storage.PriceBarStore using ClickHouse.
// price_bars is a ReplacingMergeTree keyed by (ticker, date); reads use
// FINAL so a re-ingested bar replaces the older one.
type PriceBarStore struct {
	conn *Conn
}

// NewPriceBarStore creates a new PriceBarStore.
func NewPriceBarStore(conn *Conn) *PriceBarStore {
	return &PriceBarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceBarStore = (*PriceBarStore)(nil)

// Upsert adds bars in one batch. Validates the whole batch before sending.
func (s *PriceBarStore) Upsert(ctx context.Context, bars []domain.PriceBar) (err error) {
	if len(bars) == 0 {
		return nil
	}
	for _, b := range bars {
		if err := storage.ValidateBar(b); err != nil {
			return err
		}
	}
	started := time.Now()
	defer func() { observe("bars_upsert", started, err) }()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_bars (ticker, date, open, close, volume, source)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		openPx := b.Open
		if !(openPx > 0) {
			openPx = b.Close
		}
		err = batch.Append(
			strings.ToUpper(strings.TrimSpace(b.Ticker)), storage.Day(b.Date),
			openPx, b.Close, b.Volume, b.Source,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRange retrieves bars for tickers within [start, end] (inclusive).
func (s *PriceBarStore) GetRange(ctx context.Context, tickers []string, start, end time.Time) (bars []domain.PriceBar, err error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	norm := make([]string, len(tickers))
	for i, t := range tickers {
		norm[i] = strings.ToUpper(strings.TrimSpace(t))
	}
	started := time.Now()
	defer func() { observe("bars_range", started, err) }()

	query := `
		SELECT ticker, date, open, close, volume, source
		FROM price_bars FINAL
		WHERE has(?, ticker) AND date >= toDate(?) AND date <= toDate(?)
		ORDER BY date ASC, ticker ASC
	`

	rows, err := s.conn.Query(ctx, query, norm,
		start.UTC().Format(domain.DateLayout), end.UTC().Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query bars by range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Tickers lists every stored ticker, sorted.
func (s *PriceBarStore) Tickers(ctx context.Context) (tickers []string, err error) {
	started := time.Now()
	defer func() { observe("bars_tickers", started, err) }()

	rows, err := s.conn.Query(ctx, `SELECT DISTINCT ticker FROM price_bars ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("query tickers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

func scanBars(rows driver.Rows) ([]domain.PriceBar, error) {
	var result []domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		if err := rows.Scan(&b.Ticker, &b.Date, &b.Open, &b.Close, &b.Volume, &b.Source); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = storage.Day(b.Date)
		result = append(result, b)
	}
	return result, rows.Err()
}
