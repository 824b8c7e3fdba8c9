package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/storage"
)

// JobStore implements storage.JobStore using PostgreSQL.
// The result payload is stored as JSONB.
type JobStore struct {
	pool *Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewJobStore creates a new JobStore. ttl <= 0 uses domain.DefaultJobTTL.
func NewJobStore(pool *Pool, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = domain.DefaultJobTTL
	}
	return &JobStore{pool: pool, ttl: ttl, now: time.Now}
}

// Compile-time interface check.
var _ storage.JobStore = (*JobStore)(nil)

// Create sweeps expired terminal jobs and inserts a queued job in one transaction.
func (s *JobStore) Create(ctx context.Context) (job *domain.Job, err error) {
	started := time.Now()
	defer func() { observe("job_create", started, err) }()

	now := s.now().UTC()
	job = &domain.Job{
		ID:        uuid.NewString(),
		Status:    domain.JobQueued,
		Progress:  0,
		Message:   "Initializing...",
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM comparison_jobs
		WHERE status IN ($1, $2) AND created_at < $3
	`, string(domain.JobCompleted), string(domain.JobFailed), now.Add(-s.ttl))
	if err != nil {
		return nil, fmt.Errorf("sweep expired jobs: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO comparison_jobs (id, status, progress, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, job.ID, string(job.Status), job.Progress, job.Message, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, storage.ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return job, nil
}

// Get retrieves a job by id. Malformed ids are reported as not found.
func (s *JobStore) Get(ctx context.Context, id string) (job *domain.Job, err error) {
	if _, perr := uuid.Parse(id); perr != nil {
		return nil, storage.ErrNotFound
	}
	started := time.Now()
	defer func() { observe("job_get", started, err) }()

	row := s.pool.QueryRow(ctx, `
		SELECT id::text, status, progress, message, result, error, created_at, updated_at
		FROM comparison_jobs
		WHERE id = $1
	`, id)

	var (
		j      domain.Job
		status string
		result []byte
	)
	err = row.Scan(&j.ID, &status, &j.Progress, &j.Message, &result, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	j.Status = domain.JobStatus(status)

	if len(result) > 0 {
		var resp domain.CompareResponse
		if err := decodeDocument("job result", result, &resp); err != nil {
			return nil, err
		}
		j.Result = &resp
	}
	return &j, nil
}

// Update applies u. Unknown or malformed ids are ignored.
// Empty status, nil result and empty error keep the stored values.
func (s *JobStore) Update(ctx context.Context, id string, u domain.JobUpdate) (err error) {
	if _, perr := uuid.Parse(id); perr != nil {
		return nil
	}
	started := time.Now()
	defer func() { observe("job_update", started, err) }()

	var result any
	if u.Result != nil {
		payload, err := encodeDocument("job result", u.Result)
		if err != nil {
			return err
		}
		result = payload
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE comparison_jobs SET
			progress   = $2,
			message    = $3,
			status     = COALESCE(NULLIF($4, ''), status),
			result     = COALESCE($5::jsonb, result),
			error      = COALESCE(NULLIF($6, ''), error),
			updated_at = $7
		WHERE id = $1
	`, id, u.Progress, u.Message, string(u.Status), result, u.Error, s.now().UTC())
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}
