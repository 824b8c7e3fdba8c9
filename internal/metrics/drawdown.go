package metrics

import "portfolio-lab/internal/domain"

// DrawdownCurve returns the distance of each point from its running peak,
// in percent rounded to 2 decimals. Values are zero or negative.
func DrawdownCurve(curve []domain.EquityPoint) []domain.DrawdownPoint {
	if len(curve) == 0 {
		return []domain.DrawdownPoint{}
	}
	out := make([]domain.DrawdownPoint, len(curve))
	peak := curve[0].Value
	for i, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		dd := 0.0
		if peak > 0 {
			dd = (p.Value - peak) / peak
		}
		out[i] = domain.DrawdownPoint{Date: p.Date, Value: Round(dd*100, 2)}
	}
	return out
}
