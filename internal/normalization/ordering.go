package normalization

import (
	"cmp"
	"slices"

	"portfolio-lab/internal/domain"
)

// SortBars orders bars by day, then ticker. The sort is stable: when a
// source repeats a (ticker, day), the later bar stays later and wins in
// BuildPanels.
func SortBars(bars []domain.PriceBar) {
	slices.SortStableFunc(bars, func(a, b domain.PriceBar) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Ticker, b.Ticker)
	})
}
