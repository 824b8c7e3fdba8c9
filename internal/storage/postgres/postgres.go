// Package postgres stores comparison jobs and finished results in PostgreSQL.
// Request and response documents are kept as JSONB.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"portfolio-lab/internal/observability"
)

const applicationName = "portfolio-lab"

// Pool is the connection pool shared by JobStore and ResultStore.
type Pool struct {
	*pgxpool.Pool
}

// PoolOption adjusts the pool configuration before connecting.
type PoolOption func(*pgxpool.Config)

// WithMaxConns caps open connections. Comparison jobs write progress from
// several goroutines, so the pgx default of max(4, NumCPU) is usually enough.
func WithMaxConns(n int32) PoolOption {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// WithHealthCheckPeriod sets how often idle connections are checked.
func WithHealthCheckPeriod(d time.Duration) PoolOption {
	return func(c *pgxpool.Config) {
		if d > 0 {
			c.HealthCheckPeriod = d
		}
	}
}

// NewPool parses dsn, connects and pings the server.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Close closes every connection in the pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

const pgErrUniqueViolation = "23505"

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// encodeDocument marshals v for a JSONB column.
func encodeDocument(what string, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", what, err)
	}
	return b, nil
}

// decodeDocument unmarshals a JSONB column into v. Empty input leaves v untouched.
func decodeDocument(what string, data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}

// observe records query latency. A missing row is not an error.
func observe(operation string, started time.Time, err error) {
	if isNotFoundError(err) {
		err = nil
	}
	observability.RecordDBQuery("postgres", operation, time.Since(started).Seconds(), err)
}
