package job

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/algotrade/internal/core"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(100, time.Hour)

	job, _ := store.Create("backtest")
	if job.ID == "" {
		t.Error("expected job ID")
	}
	if job.Status != StatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}

	retrieved, err := store.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.ID != job.ID {
		t.Error("IDs don't match")
	}
}

func TestStore_Update(t *testing.T) {
	store := NewStore(100, time.Hour)
	job, _ := store.Create("backtest")

	err := store.Update(job.ID, func(j *Job) {
		j.Status = StatusRunning
		j.Progress = 50
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	retrieved, _ := store.Get(job.ID)
	if retrieved.Status != StatusRunning {
		t.Errorf("expected running, got %s", retrieved.Status)
	}
	if retrieved.Progress != 50 {
		t.Errorf("expected 50, got %d", retrieved.Progress)
	}

	if err := store.Update("missing", func(*Job) {}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestStore_MaxSize(t *testing.T) {
	store := NewStore(2, time.Hour)

	job1, _ := store.Create("backtest")
	job2, _ := store.Create("backtest")

	// Both jobs are still pending.
	if _, err := store.Create("backtest"); !errors.Is(err, core.ErrTooManyJobs) {
		t.Fatalf("expected TOO_MANY_JOBS, got %v", err)
	}

	store.Update(job2.ID, func(j *Job) { j.Status = StatusComplete })
	if _, err := store.Create("backtest"); err != nil {
		t.Fatalf("Create after a job finished: %v", err)
	}

	if _, err := store.Get(job2.ID); err == nil {
		t.Error("expected the finished job to be evicted")
	}
	if _, err := store.Get(job1.ID); err != nil {
		t.Errorf("pending job must not be evicted: %v", err)
	}
	if n := len(store.List()); n != 2 {
		t.Errorf("expected 2 jobs, got %d", n)
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(100, time.Hour)

	_, err := store.Get("nonexistent")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestStore_List(t *testing.T) {
	store := NewStore(100, time.Hour)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	first, _ := store.Create("backtest")
	now = now.Add(time.Second)
	second, _ := store.Create("backtest")

	jobs := store.List()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != second.ID || jobs[1].ID != first.ID {
		t.Error("expected newest job first")
	}
}

func TestStore_TTL(t *testing.T) {
	store := NewStore(100, time.Hour)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	done, _ := store.Create("backtest")
	store.Update(done.ID, func(j *Job) { j.Status = StatusComplete })
	running, _ := store.Create("backtest")
	store.Update(running.ID, func(j *Job) { j.Status = StatusRunning })

	now = now.Add(2 * time.Hour)

	if _, err := store.Get(done.ID); err == nil {
		t.Error("expected finished job to expire")
	}
	if _, err := store.Get(running.ID); err != nil {
		t.Errorf("running job should not expire: %v", err)
	}

	store.Create("backtest")
	if _, ok := store.jobs[done.ID]; ok {
		t.Error("expected expired job to be purged on create")
	}
}

func TestStore_Active(t *testing.T) {
	store := NewStore(100, time.Hour)

	a, _ := store.Create("backtest")
	store.Create("backtest")
	store.Update(a.ID, func(j *Job) { j.Status = StatusFailed })

	if n := store.Active("backtest"); n != 1 {
		t.Errorf("expected 1 active job, got %d", n)
	}
	if n := store.Active("other"); n != 0 {
		t.Errorf("expected 0 active jobs, got %d", n)
	}
}
