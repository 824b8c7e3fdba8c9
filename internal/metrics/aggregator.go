package metrics

import (
	"errors"
	"sort"

	"portfolio-lab/internal/domain"
)

// ErrNoResults is returned when no method produced a result.
var ErrNoResults = errors.New("no method results available for ranking")

// RankMethods orders method results by Sortino ratio, best first.
// Ties keep the order in which methods were submitted.
func RankMethods(results []domain.MethodResult) ([]domain.MethodResult, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	position := make(map[domain.Method]int, len(domain.AllMethods))
	for i, m := range domain.AllMethods {
		position[m] = i
	}

	ranked := make([]domain.MethodResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := ranked[i].PerformanceMetrics.SortinoRatio, ranked[j].PerformanceMetrics.SortinoRatio
		if si != sj {
			return si > sj
		}
		return position[ranked[i].Method] < position[ranked[j].Method]
	})
	return ranked, nil
}

// AnnualizedTurnover spreads total turnover over the years a curve spans.
func AnnualizedTurnover(totalTurnover float64, curveLen, tradingDays int) float64 {
	if tradingDays <= 0 {
		tradingDays = domain.TradingDaysPerYear
	}
	years := float64(curveLen) / float64(tradingDays)
	if years < minYears {
		years = minYears
	}
	return totalTurnover / years
}
