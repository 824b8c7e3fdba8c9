package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"portfolio-lab/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// Insert adds a result. Returns ErrDuplicateKey if run_id exists.
func (s *ResultStore) Insert(ctx context.Context, r *storage.StoredResult) (err error) {
	if r == nil || r.RunID == "" || r.Response == nil {
		return storage.ErrInvalidInput
	}
	started := time.Now()
	defer func() { observe("result_insert", started, err) }()

	request, err := encodeDocument("request", r.Request)
	if err != nil {
		return err
	}
	response, err := encodeDocument("response", r.Response)
	if err != nil {
		return err
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO comparison_results (run_id, request, response, tickers, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.RunID, request, response, r.Request.NormalizedTickers(), createdAt.UTC())
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetByRunID retrieves a result by run id.
func (s *ResultStore) GetByRunID(ctx context.Context, runID string) (result *storage.StoredResult, err error) {
	started := time.Now()
	defer func() { observe("result_get", started, err) }()

	row := s.pool.QueryRow(ctx, `
		SELECT run_id, request, response, created_at
		FROM comparison_results
		WHERE run_id = $1
	`, runID)

	result, err = scanResult(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

// ListRecent returns up to limit results, newest first.
func (s *ResultStore) ListRecent(ctx context.Context, limit int) (results []*storage.StoredResult, err error) {
	started := time.Now()
	defer func() { observe("result_list", started, err) }()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, request, response, created_at
		FROM comparison_results
		ORDER BY created_at DESC, run_id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanResult(row pgx.Row) (*storage.StoredResult, error) {
	var (
		r        storage.StoredResult
		request  []byte
		response []byte
	)
	if err := row.Scan(&r.RunID, &request, &response, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeDocument("request", request, &r.Request); err != nil {
		return nil, err
	}
	if err := decodeDocument("response", response, &r.Response); err != nil {
		return nil, err
	}
	return &r, nil
}
