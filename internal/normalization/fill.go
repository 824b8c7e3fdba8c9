package normalization

import (
	"errors"
	"math"
	"time"

	"portfolio-lab/internal/domain"
)

// ErrPanelMismatch is returned when close and open panels cannot be aligned.
var ErrPanelMismatch = errors.New("close and open panels have different tickers")

// ForwardFill returns a copy of p with each missing or non-positive cell
// replaced by the last valid value above it. Leading gaps stay NaN.
func ForwardFill(p domain.PricePanel) domain.PricePanel {
	out := domain.PricePanel{
		Dates:   append([]time.Time(nil), p.Dates...),
		Tickers: p.Tickers,
		Values:  make([][]float64, len(p.Values)),
	}
	last := nanRow(len(p.Tickers))
	for i, row := range p.Values {
		filled := make([]float64, len(row))
		for j, v := range row {
			if valid(v) {
				last[j] = v
			}
			filled[j] = last[j]
		}
		out.Values[i] = filled
	}
	return out
}

// DropIncomplete removes rows holding any NaN.
func DropIncomplete(p domain.PricePanel) domain.PricePanel {
	out := domain.PricePanel{Tickers: p.Tickers}
	for i, row := range p.Values {
		if complete(row) {
			out.Dates = append(out.Dates, p.Dates[i])
			out.Values = append(out.Values, row)
		}
	}
	return out
}

// Align forward-fills both panels, drops incomplete rows and keeps only the
// dates present in both. The results share Dates and Tickers order.
func Align(closePanel, openPanel domain.PricePanel) (domain.PricePanel, domain.PricePanel, error) {
	if len(closePanel.Tickers) != len(openPanel.Tickers) {
		return domain.PricePanel{}, domain.PricePanel{}, ErrPanelMismatch
	}
	for j := range closePanel.Tickers {
		if closePanel.Tickers[j] != openPanel.Tickers[j] {
			return domain.PricePanel{}, domain.PricePanel{}, ErrPanelMismatch
		}
	}

	c := DropIncomplete(ForwardFill(closePanel))
	o := DropIncomplete(ForwardFill(openPanel))

	// Keyed by instant so equal days in different locations still match.
	openRows := make(map[int64][]float64, len(o.Dates))
	for i, d := range o.Dates {
		openRows[d.UTC().Unix()] = o.Values[i]
	}

	alignedClose := domain.PricePanel{Tickers: c.Tickers}
	alignedOpen := domain.PricePanel{Tickers: c.Tickers}
	for i, d := range c.Dates {
		orow, ok := openRows[d.UTC().Unix()]
		if !ok {
			continue
		}
		alignedClose.Dates = append(alignedClose.Dates, d)
		alignedClose.Values = append(alignedClose.Values, c.Values[i])
		alignedOpen.Dates = append(alignedOpen.Dates, d)
		alignedOpen.Values = append(alignedOpen.Values, orow)
	}
	return alignedClose, alignedOpen, nil
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func complete(row []float64) bool {
	for _, v := range row {
		if !valid(v) {
			return false
		}
	}
	return true
}
