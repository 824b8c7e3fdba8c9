package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/observability"
	"portfolio-lab/internal/storage"
)

// Runner executes one comparison for a job.
type Runner interface {
	Run(ctx context.Context, jobID string, req domain.CompareRequest) (*domain.CompareResponse, error)
}

// ServiceOptions for creating a Service.
type ServiceOptions struct {
	Runner  Runner
	Jobs    storage.JobStore
	Results storage.ResultStore // nil disables persistence
	Timeout time.Duration       // per job, 0 means none
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Service starts comparisons in the background and persists finished results.
type Service struct {
	runner  Runner
	jobs    storage.JobStore
	results storage.ResultStore
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

// NewService creates a Service.
func NewService(opts ServiceOptions) *Service {
	s := &Service{
		runner:  opts.Runner,
		jobs:    opts.Jobs,
		results: opts.Results,
		timeout: opts.Timeout,
		log:     observability.Component(opts.Logger, "jobs"),
		now:     opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start validates req, registers a queued job and runs it in the background.
// The job outlives ctx; only validation and job creation use it.
func (s *Service) Start(ctx context.Context, req domain.CompareRequest) (*domain.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job, err := s.jobs.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(job.ID, req)
	}()

	s.log.Info().Str("job_id", job.ID).Strs("tickers", req.NormalizedTickers()).Msg("job started")
	return job, nil
}

// Job returns the current state of a job.
func (s *Service) Job(ctx context.Context, id string) (*domain.Job, error) {
	return s.jobs.Get(ctx, id)
}

// Result returns a persisted comparison by run id.
func (s *Service) Result(ctx context.Context, runID string) (*storage.StoredResult, error) {
	if s.results == nil {
		return nil, storage.ErrNotFound
	}
	return s.results.GetByRunID(ctx, runID)
}

// Wait blocks until every started job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) execute(jobID string, req domain.CompareRequest) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.runner.Run(ctx, jobID, req)
	if err != nil {
		return
	}
	s.persist(ctx, req, resp)
}

func (s *Service) persist(ctx context.Context, req domain.CompareRequest, resp *domain.CompareResponse) {
	if s.results == nil {
		return
	}
	runID := resp.RunID
	if runID == "" {
		s.log.Warn().Msg("result has no run id, not stored")
		return
	}
	err := s.results.Insert(ctx, &storage.StoredResult{
		RunID:     runID,
		Request:   req,
		Response:  resp,
		CreatedAt: s.now().UTC(),
	})
	switch {
	case err == nil:
		s.log.Info().Str("run_id", runID).Msg("result stored")
	case errors.Is(err, storage.ErrDuplicateKey):
		s.log.Debug().Str("run_id", runID).Msg("result already stored")
	default:
		s.log.Warn().Err(err).Str("run_id", runID).Msg("store result failed")
	}
}
