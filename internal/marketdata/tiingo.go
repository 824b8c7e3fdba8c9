package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"portfolio-lab/internal/domain"
)

// Default Tiingo client configuration.
const (
	DefaultTiingoURL   = "https://api.tiingo.com"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
	DefaultRateLimit   = 200 * time.Millisecond
)

// TiingoClient fetches daily bars from the Tiingo REST API.
type TiingoClient struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	rateLimit   time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// TiingoOption configures TiingoClient.
type TiingoOption func(*TiingoClient)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) TiingoOption {
	return func(c *TiingoClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) TiingoOption {
	return func(c *TiingoClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) TiingoOption {
	return func(c *TiingoClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) TiingoOption {
	return func(c *TiingoClient) {
		c.retryDelay = d
	}
}

// WithRateLimit sets the minimum spacing between requests.
func WithRateLimit(d time.Duration) TiingoOption {
	return func(c *TiingoClient) {
		c.rateLimit = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) TiingoOption {
	return func(c *TiingoClient) {
		c.client = client
	}
}

// NewTiingoClient creates a Tiingo client authenticated with apiKey.
func NewTiingoClient(apiKey string, opts ...TiingoOption) *TiingoClient {
	c := &TiingoClient{
		baseURL:     DefaultTiingoURL,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		rateLimit:   DefaultRateLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tiingoBar is one element of the daily prices response.
type tiingoBar struct {
	Date      string   `json:"date"`
	Open      *float64 `json:"open"`
	Close     *float64 `json:"close"`
	AdjOpen   *float64 `json:"adjOpen"`
	AdjClose  *float64 `json:"adjClose"`
	AdjVolume *float64 `json:"adjVolume"`
	Volume    *float64 `json:"volume"`
}

// statusError is a non-200 response.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tiingo status %d: %s", e.Code, e.Body)
}

// retryable reports whether the status may succeed on a later attempt.
func (e *statusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// FetchBars returns adjusted daily bars for ticker. adjClose is preferred,
// falling back to close; adjOpen likewise. An empty or unknown ticker
// returns ErrNoData.
func (c *TiingoClient) FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	q := url.Values{}
	q.Set("startDate", start.Format(domain.DateLayout))
	q.Set("endDate", end.Format(domain.DateLayout))
	q.Set("resampleFreq", "daily")
	endpoint := fmt.Sprintf("%s/tiingo/daily/%s/prices?%s", c.baseURL, url.PathEscape(strings.ToLower(ticker)), q.Encode())

	var raw []tiingoBar
	if err := c.get(ctx, endpoint, &raw); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
		}
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}

	bars := make([]domain.PriceBar, 0, len(raw))
	for _, r := range raw {
		closePx := pick(r.AdjClose, r.Close)
		if !(closePx > 0) {
			continue
		}
		date, err := parseTiingoDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("parse %s date %q: %w", ticker, r.Date, err)
		}
		openPx := pick(r.AdjOpen, r.Open)
		if !(openPx > 0) {
			openPx = closePx
		}
		bars = append(bars, domain.PriceBar{
			Ticker: ticker,
			Date:   date,
			Open:   openPx,
			Close:  closePx,
			Volume: pick(r.AdjVolume, r.Volume),
			Source: "tiingo",
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	return bars, nil
}

// get performs a GET with retries and exponential backoff. 4xx responses
// other than 429 are not retried.
func (c *TiingoClient) get(ctx context.Context, endpoint string, out any) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}
		if err := c.throttle(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Token "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			se := &statusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
			if !se.retryable() {
				return se
			}
			lastErr = se
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// throttle spaces requests at least rateLimit apart.
func (c *TiingoClient) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.rateLimit - time.Since(c.lastCall)
	if wait < 0 {
		wait = 0
	}
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func parseTiingoDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(domain.DateLayout, s)
}

func pick(preferred, fallback *float64) float64 {
	if preferred != nil {
		return *preferred
	}
	if fallback != nil {
		return *fallback
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ BarSource = (*TiingoClient)(nil)
