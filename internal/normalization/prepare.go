package normalization

import (
	"fmt"
	"strings"
	"time"

	"portfolio-lab/internal/domain"
)

// StartDates returns each ticker's first valid date as YYYY-MM-DD ("N/A" when
// the ticker never has a price) and the ticker whose history starts latest.
func StartDates(p domain.PricePanel) (map[string]string, string) {
	starts := make(map[string]string, len(p.Tickers))
	var limiting string
	var latest time.Time
	for j, t := range p.Tickers {
		starts[t] = "N/A"
		for i, row := range p.Values {
			if valid(row[j]) {
				d := p.Dates[i]
				starts[t] = d.Format(domain.DateLayout)
				if limiting == "" || d.After(latest) {
					latest = d
					limiting = t
				}
				break
			}
		}
	}
	return starts, limiting
}

// Prepare conditions raw bars into engine-ready panels.
// Steps:
//  1. Pivot bars into close/open panels over the union of dates
//  2. Record first valid date per ticker and the limiting ticker
//  3. Trim to dates on or after the latest start, and on or before end (if set)
//  4. Forward-fill, drop incomplete rows, intersect close/open dates
//  5. Require at least domain.MinDataPoints rows
func Prepare(bars []domain.PriceBar, tickers []string, end time.Time) (*domain.PriceData, error) {
	closePanel, openPanel := BuildPanels(bars, tickers)

	starts, limiting := StartDates(closePanel)
	var missing []string
	for _, t := range closePanel.Tickers {
		if starts[t] == "N/A" {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no data found for tickers: %s", domain.ErrInput, strings.Join(missing, ", "))
	}

	from := 0
	if limiting != "" {
		latest, _ := time.Parse(domain.DateLayout, starts[limiting])
		for from < closePanel.Len() && closePanel.Dates[from].Before(latest) {
			from++
		}
	}
	to := closePanel.Len()
	if !end.IsZero() {
		for to > from && closePanel.Dates[to-1].After(end) {
			to--
		}
	}

	c, o, err := Align(closePanel.Slice(from, to), openPanel.Slice(from, to))
	if err != nil {
		return nil, err
	}
	if c.Len() < domain.MinDataPoints {
		return nil, fmt.Errorf("%w: insufficient data: only %d days available (limiting ticker: %s)",
			domain.ErrInput, c.Len(), limiting)
	}

	return &domain.PriceData{
		Close:            c,
		Open:             o,
		TickerStartDates: starts,
		LimitingTicker:   limiting,
	}, nil
}
