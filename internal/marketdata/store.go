package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/observability"
	"portfolio-lab/internal/storage"
)

// StoreSource serves bars from a storage.PriceBarStore.
type StoreSource struct {
	store storage.PriceBarStore
}

// NewStoreSource creates a source backed by store.
func NewStoreSource(store storage.PriceBarStore) *StoreSource {
	return &StoreSource{store: store}
}

// FetchBars returns stored bars for ticker within [start, end].
func (s *StoreSource) FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	bars, err := s.store.GetRange(ctx, []string{ticker}, start, end)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	return bars, nil
}

var _ BarSource = (*StoreSource)(nil)

// Ingestor copies bars from a source into a bar store, one ticker at a time.
type Ingestor struct {
	source BarSource
	store  storage.PriceBarStore
	label  string
	log    zerolog.Logger
}

// NewIngestor creates an ingestor. label tags ingest metrics.
func NewIngestor(source BarSource, store storage.PriceBarStore, label string, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		source: source,
		store:  store,
		label:  label,
		log:    observability.Component(log, "ingest"),
	}
}

// IngestResult summarizes an ingest run.
type IngestResult struct {
	Bars    map[string]int // ticker -> bars written
	Missing []string       // tickers with no data
}

// Run ingests every ticker. A ticker without data is recorded as missing;
// any other error aborts the run.
func (i *Ingestor) Run(ctx context.Context, tickers []string, start, end time.Time) (*IngestResult, error) {
	res := &IngestResult{Bars: make(map[string]int, len(tickers))}
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		bars, err := i.source.FetchBars(ctx, t, start, end)
		if err != nil {
			if isNoData(err) {
				i.log.Warn().Str("ticker", t).Msg("no data")
				res.Missing = append(res.Missing, t)
				continue
			}
			return res, fmt.Errorf("fetch %s: %w", t, err)
		}
		if err := i.store.Upsert(ctx, bars); err != nil {
			return res, fmt.Errorf("store %s: %w", t, err)
		}
		res.Bars[t] = len(bars)
		observability.RecordBarsIngested(i.label, len(bars))
		i.log.Info().Str("ticker", t).Int("bars", len(bars)).Msg("ingested")
	}
	return res, nil
}
