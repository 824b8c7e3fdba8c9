package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/storage"
)

func TestJobStore_CreateAndGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	ctx := context.Background()

	job, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("Expected non-empty job id")
	}
	if job.Status != domain.JobQueued || job.Progress != 0 || job.Message != "Initializing..." {
		t.Errorf("Unexpected initial job: %+v", job)
	}

	got, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != job.ID {
		t.Errorf("Expected id %s, got %s", job.ID, got.ID)
	}
}

func TestJobStore_GetNotFound(t *testing.T) {
	store := NewJobStore(time.Hour)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestJobStore_Update(t *testing.T) {
	store := NewJobStore(time.Hour)
	ctx := context.Background()
	job, _ := store.Create(ctx)

	err := store.Update(ctx, job.ID, domain.JobUpdate{Progress: 15, Message: "Preparing", Status: domain.JobProcessing})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	// Status left empty keeps the previous status.
	if err := store.Update(ctx, job.ID, domain.JobUpdate{Progress: 38, Message: "Completed HRP"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := store.Get(ctx, job.ID)
	if got.Status != domain.JobProcessing {
		t.Errorf("Expected processing, got %s", got.Status)
	}
	if got.Progress != 38 || got.Message != "Completed HRP" {
		t.Errorf("Unexpected progress: %d %q", got.Progress, got.Message)
	}

	resp := &domain.CompareResponse{BenchmarkName: "Equal Weight"}
	_ = store.Update(ctx, job.ID, domain.JobUpdate{Progress: 100, Status: domain.JobCompleted, Result: resp})
	got, _ = store.Get(ctx, job.ID)
	if got.Result == nil || got.Result.BenchmarkName != "Equal Weight" {
		t.Errorf("Expected result to be stored, got %+v", got.Result)
	}
}

func TestJobStore_UpdateUnknownIgnored(t *testing.T) {
	store := NewJobStore(time.Hour)

	err := store.Update(context.Background(), "missing", domain.JobUpdate{Progress: 50})
	if err != nil {
		t.Errorf("Expected nil for unknown id, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Expected no jobs, got %d", store.Len())
	}
}

func TestJobStore_CreateSweepsExpiredTerminalJobs(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewJobStore(time.Hour).WithClock(func() time.Time { return now })
	ctx := context.Background()

	done, _ := store.Create(ctx)
	failed, _ := store.Create(ctx)
	running, _ := store.Create(ctx)
	_ = store.Update(ctx, done.ID, domain.JobUpdate{Progress: 100, Status: domain.JobCompleted})
	_ = store.Update(ctx, failed.ID, domain.JobUpdate{Status: domain.JobFailed, Error: "boom"})
	_ = store.Update(ctx, running.ID, domain.JobUpdate{Progress: 40, Status: domain.JobProcessing})

	now = now.Add(2 * time.Hour)
	fresh, _ := store.Create(ctx)

	for _, id := range []string{done.ID, failed.ID} {
		if _, err := store.Get(ctx, id); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected expired job %s to be swept, got %v", id, err)
		}
	}
	for _, id := range []string{running.ID, fresh.ID} {
		if _, err := store.Get(ctx, id); err != nil {
			t.Errorf("Expected job %s to survive, got %v", id, err)
		}
	}
}

func TestJobStore_GetReturnsCopy(t *testing.T) {
	store := NewJobStore(time.Hour)
	ctx := context.Background()
	job, _ := store.Create(ctx)

	got, _ := store.Get(ctx, job.ID)
	got.Progress = 99

	again, _ := store.Get(ctx, job.ID)
	if again.Progress != 0 {
		t.Errorf("Expected stored job to be unchanged, got progress %d", again.Progress)
	}
}
