package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/storage"
)

// CSVSource serves bars loaded from CSV files held in memory.
//
// Two layouts are accepted, detected from the header:
//   - long: date,ticker,open,close[,volume] (adj_close/adj_open preferred per row)
//   - wide: date,<TICKER>,<TICKER>,... with closes only
type CSVSource struct {
	bars map[string][]domain.PriceBar // ticker -> bars sorted by date
}

// LoadCSVFiles parses every file and merges the bars. A later file wins on
// duplicate (ticker, date).
func LoadCSVFiles(paths ...string) (*CSVSource, error) {
	var all []domain.PriceBar
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		bars, err := ParseBarsCSV(f, "csv")
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		all = append(all, bars...)
	}
	return NewCSVSource(all), nil
}

// NewCSVSource indexes bars by ticker.
func NewCSVSource(bars []domain.PriceBar) *CSVSource {
	byKey := make(map[string]map[time.Time]domain.PriceBar)
	for _, b := range bars {
		m, ok := byKey[b.Ticker]
		if !ok {
			m = make(map[time.Time]domain.PriceBar)
			byKey[b.Ticker] = m
		}
		m[b.Date] = b
	}
	s := &CSVSource{bars: make(map[string][]domain.PriceBar, len(byKey))}
	for t, m := range byKey {
		list := make([]domain.PriceBar, 0, len(m))
		for _, b := range m {
			list = append(list, b)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
		s.bars[t] = list
	}
	return s
}

// FetchBars returns bars for ticker within [start, end].
func (s *CSVSource) FetchBars(_ context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	list := s.bars[ticker]
	var out []domain.PriceBar
	for _, b := range list {
		if (start.IsZero() || !b.Date.Before(storage.Day(start))) && (end.IsZero() || !b.Date.After(storage.Day(end))) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	return out, nil
}

// Tickers lists the loaded tickers, sorted.
func (s *CSVSource) Tickers() []string {
	out := make([]string, 0, len(s.bars))
	for t := range s.bars {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// All returns every loaded bar, grouped by ticker in sorted order.
func (s *CSVSource) All() []domain.PriceBar {
	var out []domain.PriceBar
	for _, t := range s.Tickers() {
		out = append(out, s.bars[t]...)
	}
	return out
}

// ParseBarsCSV reads bars in the long or wide layout. Empty and
// non-positive cells are skipped.
func ParseBarsCSV(r io.Reader, source string) ([]domain.PriceBar, error) {
	rd := csv.NewReader(r)
	rd.TrimLeadingSpace = true
	rd.FieldsPerRecord = -1

	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, ok := cols["date"]
	if !ok {
		return nil, fmt.Errorf("missing date column")
	}

	if _, long := cols["ticker"]; long {
		return parseLong(rd, cols, dateCol, source)
	}
	return parseWide(rd, header, dateCol, source)
}

func parseLong(rd *csv.Reader, cols map[string]int, dateCol int, source string) ([]domain.PriceBar, error) {
	tickerCol := cols["ticker"]
	adjCloseCol := firstCol(cols, "adj_close", "adjclose")
	closeCol := firstCol(cols, "close")
	adjOpenCol := firstCol(cols, "adj_open", "adjopen")
	openCol := firstCol(cols, "open")
	volCol := firstCol(cols, "volume")
	if adjCloseCol < 0 && closeCol < 0 {
		return nil, fmt.Errorf("missing close column")
	}

	var bars []domain.PriceBar
	for line := 2; ; line++ {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		date, err := parseDate(cell(rec, dateCol))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		closePx := firstPositive(rec, adjCloseCol, closeCol)
		if closePx == 0 {
			continue
		}
		openPx := firstPositive(rec, adjOpenCol, openCol)
		if openPx == 0 {
			openPx = closePx
		}
		bars = append(bars, domain.PriceBar{
			Ticker: strings.ToUpper(strings.TrimSpace(cell(rec, tickerCol))),
			Date:   date,
			Open:   openPx,
			Close:  closePx,
			Volume: parseFloat(cell(rec, volCol)),
			Source: source,
		})
	}
	return bars, nil
}

func parseWide(rd *csv.Reader, header []string, dateCol int, source string) ([]domain.PriceBar, error) {
	var bars []domain.PriceBar
	for line := 2; ; line++ {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		date, err := parseDate(cell(rec, dateCol))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for j, h := range header {
			if j == dateCol {
				continue
			}
			px := parseFloat(cell(rec, j))
			if !(px > 0) {
				continue
			}
			bars = append(bars, domain.PriceBar{
				Ticker: strings.ToUpper(strings.TrimSpace(h)),
				Date:   date,
				Open:   px,
				Close:  px,
				Source: source,
			})
		}
	}
	return bars, nil
}

// ParseRatesCSV reads date,rate rows. Rates above 1 are treated as percent.
func ParseRatesCSV(r io.Reader, source string) ([]domain.RatePoint, error) {
	rd := csv.NewReader(r)
	rd.TrimLeadingSpace = true

	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol := firstCol(cols, "date")
	rateCol := firstCol(cols, "rate", "value", "yield")
	if dateCol < 0 || rateCol < 0 {
		return nil, fmt.Errorf("rates csv needs date and rate columns")
	}

	var points []domain.RatePoint
	for line := 2; ; line++ {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		date, err := parseDate(cell(rec, dateCol))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cell(rec, rateCol)), 64)
		if err != nil {
			continue
		}
		if v > 1 {
			v /= 100
		}
		points = append(points, domain.RatePoint{Date: date, Rate: v, Source: source})
	}
	return points, nil
}

func firstCol(cols map[string]int, names ...string) int {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i
		}
	}
	return -1
}

// firstPositive returns the first positive value among the given columns, or 0.
func firstPositive(rec []string, cols ...int) float64 {
	for _, c := range cols {
		if v := parseFloat(cell(rec, c)); v > 0 {
			return v
		}
	}
	return 0
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(domain.DateLayout) {
		s = s[:len(domain.DateLayout)]
	}
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

var _ BarSource = (*CSVSource)(nil)
