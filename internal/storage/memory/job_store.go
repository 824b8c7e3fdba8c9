package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/storage"
)

// JobStore is an in-memory implementation of storage.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Job
	ttl  time.Duration
	now  func() time.Time
}

// NewJobStore creates a new in-memory job store. Terminal jobs older than
// ttl are removed on the next Create; ttl <= 0 uses domain.DefaultJobTTL.
func NewJobStore(ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = domain.DefaultJobTTL
	}
	return &JobStore{
		data: make(map[string]*domain.Job),
		ttl:  ttl,
		now:  time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *JobStore) WithClock(now func() time.Time) *JobStore {
	s.now = now
	return s
}

// Create sweeps expired jobs and inserts a queued job.
func (s *JobStore) Create(_ context.Context) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, j := range s.data {
		if j.Status.Terminal() && now.Sub(j.CreatedAt) > s.ttl {
			delete(s.data, id)
		}
	}

	job := &domain.Job{
		ID:        uuid.NewString(),
		Status:    domain.JobQueued,
		Progress:  0,
		Message:   "Initializing...",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.data[job.ID] = job

	jobCopy := *job
	return &jobCopy, nil
}

// Get retrieves a job by id.
func (s *JobStore) Get(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	jobCopy := *j
	return &jobCopy, nil
}

// Update applies u to the job. Unknown ids are ignored.
func (s *JobStore) Update(_ context.Context, id string, u domain.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.data[id]
	if !ok {
		return nil
	}
	u.Apply(j, s.now())
	return nil
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.JobStore = (*JobStore)(nil)
