package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/normalization"
	"portfolio-lab/internal/observability"
)

// Provider turns a BarSource into conditioned close/open panels.
type Provider struct {
	source BarSource
	name   string
	log    zerolog.Logger
}

// NewProvider creates a provider. name labels latency metrics.
func NewProvider(source BarSource, name string, log zerolog.Logger) *Provider {
	return &Provider{
		source: source,
		name:   name,
		log:    observability.Component(log, "marketdata").With().Str("source", name).Logger(),
	}
}

// FetchBars fetches one ticker from the underlying source.
func (p *Provider) FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	started := time.Now()
	bars, err := p.source.FetchBars(ctx, strings.ToUpper(strings.TrimSpace(ticker)), start, end)
	observability.RecordProviderLatency(p.name, time.Since(started).Seconds())
	return bars, err
}

// FetchPanels fetches every ticker sequentially and conditions the result:
// history is trimmed to the latest first date, forward filled and checked
// for domain.MinDataPoints rows. Any ticker without data fails the request
// with domain.ErrInput listing the missing tickers.
func (p *Provider) FetchPanels(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceData, error) {
	norm := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			norm = append(norm, t)
		}
	}
	p.log.Info().Strs("tickers", norm).
		Str("start", start.Format(domain.DateLayout)).
		Str("end", end.Format(domain.DateLayout)).
		Msg("fetching price history")

	var all []domain.PriceBar
	var missing []string
	for _, t := range norm {
		bars, err := p.FetchBars(ctx, t, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, ErrNoData) {
				p.log.Warn().Err(err).Str("ticker", t).Msg("fetch failed")
			}
			missing = append(missing, t)
			continue
		}
		if len(bars) == 0 {
			missing = append(missing, t)
			continue
		}
		all = append(all, bars...)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no data found for tickers: %s", domain.ErrInput, strings.Join(missing, ", "))
	}

	data, err := normalization.Prepare(all, norm, end)
	if err != nil {
		return nil, err
	}
	p.log.Info().Int("days", data.Close.Len()).Str("limiting_ticker", data.LimitingTicker).Msg("price history ready")
	return data, nil
}
