package normalization

import (
	"time"

	"portfolio-lab/internal/domain"
)

// continuousGapDays is the mean spacing below which a calendar trades every day.
const continuousGapDays = 1.4

// InferTradingDays returns the annualization factor for a date index:
// 365 when observations average less than 1.4 days apart (weekend trading),
// otherwise 252. Fewer than 3 dates default to 252.
func InferTradingDays(dates []time.Time) int {
	if len(dates) < 3 {
		return domain.TradingDaysPerYear
	}
	span := dates[len(dates)-1].Sub(dates[0]).Hours() / 24
	meanGap := span / float64(len(dates)-1)
	if meanGap < continuousGapDays {
		return domain.TradingDaysContinuous
	}
	return domain.TradingDaysPerYear
}
