// Package pricecache memoizes conditioned price panels per (tickers, range).
//
// Lookups go to an in-memory map first, then an optional SQLite blob table,
// then the wrapped provider. Concurrent misses for the same key share one
// upstream fetch.
package pricecache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/idhash"
	"portfolio-lab/internal/observability"
)

// DefaultTTL is how long a cached panel stays fresh.
const DefaultTTL = 24 * time.Hour

// Cache results as reported to metrics.
const (
	ResultHit     = "hit"
	ResultDiskHit = "disk_hit"
	ResultMiss    = "miss"
)

// Fetcher returns conditioned panels for a ticker set.
type Fetcher interface {
	FetchPanels(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceData, error)
}

// BlobStore persists encoded panels by key.
type BlobStore interface {
	Get(ctx context.Context, key string) (payload []byte, storedAt time.Time, err error)
	Put(ctx context.Context, key string, payload []byte, storedAt time.Time) error
}

// Options configures a Cache.
type Options struct {
	TTL    time.Duration // <= 0 uses DefaultTTL
	Store  BlobStore     // optional second level
	Logger zerolog.Logger
	Now    func() time.Time
}

type entry struct {
	data     *domain.PriceData
	storedAt time.Time
}

// Cache wraps a Fetcher. Returned PriceData is shared between callers and
// must be treated as read-only.
type Cache struct {
	next  Fetcher
	ttl   time.Duration
	store BlobStore
	log   zerolog.Logger
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// New creates a cache in front of next.
func New(next Fetcher, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		next:    next,
		ttl:     opts.TTL,
		store:   opts.Store,
		log:     observability.Component(opts.Logger, "pricecache"),
		now:     opts.Now,
		entries: make(map[string]entry),
	}
}

// Key returns the cache key for a request.
func Key(tickers []string, start, end time.Time) string {
	return idhash.ComputePriceKey(tickers, formatDate(start), formatDate(end))
}

// FetchPanels returns cached panels when fresh, otherwise fetches and caches.
func (c *Cache) FetchPanels(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceData, error) {
	key := Key(tickers, start, end)

	if data, ok := c.lookup(key); ok {
		observability.RecordPriceCache(ResultHit)
		return data, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if data, ok := c.lookup(key); ok {
			return data, nil
		}
		if data, storedAt, ok := c.loadStored(ctx, key); ok {
			observability.RecordPriceCache(ResultDiskHit)
			c.remember(key, data, storedAt)
			return data, nil
		}

		observability.RecordPriceCache(ResultMiss)
		data, err := c.next.FetchPanels(ctx, tickers, start, end)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return nil, errNilData
		}
		now := c.now()
		c.remember(key, data, now)
		c.persist(ctx, key, data, now)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PriceData), nil
}

// Invalidate drops every in-memory entry. Stored blobs expire by TTL.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of in-memory entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (*domain.PriceData, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.expired(e.storedAt) {
		return nil, false
	}
	return e.data, true
}

func (c *Cache) remember(key string, data *domain.PriceData, at time.Time) {
	c.mu.Lock()
	c.entries[key] = entry{data: data, storedAt: at}
	c.mu.Unlock()
}

func (c *Cache) expired(storedAt time.Time) bool {
	return c.now().Sub(storedAt) >= c.ttl
}

func (c *Cache) loadStored(ctx context.Context, key string) (*domain.PriceData, time.Time, bool) {
	if c.store == nil {
		return nil, time.Time{}, false
	}
	payload, storedAt, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, time.Time{}, false
	}
	if c.expired(storedAt) {
		return nil, time.Time{}, false
	}
	var data domain.PriceData
	if err := json.Unmarshal(payload, &data); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt")
		return nil, time.Time{}, false
	}
	return &data, storedAt, true
}

func (c *Cache) persist(ctx context.Context, key string, data *domain.PriceData, at time.Time) {
	if c.store == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("encode cache entry")
		return
	}
	if err := c.store.Put(ctx, key, payload, at); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(domain.DateLayout)
}

var errNilData = errors.New("provider returned nil price data")
