package domain

import "time"

// PriceBar is one daily observation of a ticker as stored and fetched.
// Close is the split/dividend adjusted close; Open is the adjusted open.
type PriceBar struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"` // UTC midnight
	Open   float64   `json:"open"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Source string    `json:"source"`
}

// RatePoint is one observation of the annualized risk-free rate.
type RatePoint struct {
	Date   time.Time `json:"date"`
	Rate   float64   `json:"rate"`
	Source string    `json:"source"`
}

// PriceData is the conditioned market data handed to the engine.
type PriceData struct {
	Close            PricePanel
	Open             PricePanel
	TickerStartDates map[string]string // ticker -> YYYY-MM-DD of first valid price, or "N/A"
	LimitingTicker   string            // ticker whose history starts latest
}

// DateLayout is the calendar date format used in records and requests.
const DateLayout = "2006-01-02"
