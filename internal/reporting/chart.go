package reporting

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vicanso/go-charts/v2"

	"portfolio-lab/internal/domain"
)

// maxChartPoints bounds the x axis; longer curves are sampled evenly.
const maxChartPoints = 400

// RenderEquityChart draws every method's equity curve and the benchmark as
// one PNG line chart.
func RenderEquityChart(resp *domain.CompareResponse) ([]byte, error) {
	names, curves := equitySeries(resp)
	if len(curves) == 0 {
		return nil, errors.New("no equity curves to plot")
	}
	dates, byDate := alignCurves(curves)
	if len(dates) < 2 {
		return nil, errors.New("not enough points to plot")
	}

	idx := sampleIndexes(len(dates), maxChartPoints)
	xLabels := make([]string, len(idx))
	for i, k := range idx {
		xLabels[i] = time.UnixMilli(dates[k]).UTC().Format("Jan '06")
	}

	values := make([][]float64, len(curves))
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for j := range curves {
		full := filledSeries(dates, byDate[j])
		series := make([]float64, len(idx))
		for i, k := range idx {
			series[i] = full[k]
			yMin = math.Min(yMin, full[k])
			yMax = math.Max(yMax, full[k])
		}
		values[j] = series
	}
	padding := (yMax - yMin) * 0.05
	if padding == 0 {
		padding = math.Abs(yMax) * 0.05
	}
	yMin -= padding
	yMax += padding

	splitNum := 6
	if len(xLabels) <= 30 {
		splitNum = max(len(xLabels)/3, 3)
	}

	title := "Walk-forward Equity"
	subtitle := fmt.Sprintf("%s to %s", resp.DataStartDate, resp.DataEndDate)

	p, err := charts.LineRender(
		values,
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: names,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf, nil
}

// filledSeries maps a curve onto dates, carrying the last value across gaps
// and back-filling leading gaps with the first value.
func filledSeries(dates []int64, byDate map[int64]float64) []float64 {
	out := make([]float64, len(dates))
	first := math.NaN()
	for _, d := range dates {
		if v, ok := byDate[d]; ok {
			first = v
			break
		}
	}
	last := first
	for i, d := range dates {
		if v, ok := byDate[d]; ok {
			last = v
		}
		out[i] = last
	}
	return out
}

// sampleIndexes returns at most limit evenly spaced indexes of [0, n),
// always including the last.
func sampleIndexes(n, limit int) []int {
	if n <= limit {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	idx := make([]int, 0, limit)
	step := float64(n-1) / float64(limit-1)
	for i := 0; i < limit; i++ {
		idx = append(idx, int(math.Round(float64(i)*step)))
	}
	return idx
}
