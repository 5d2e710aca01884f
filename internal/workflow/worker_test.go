package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/queue"
	"inkwell/internal/ratelimit"
	"inkwell/internal/services/llm"
	"inkwell/internal/stage"
	"inkwell/internal/testsupport"
	"inkwell/internal/workflow"
)

type fakeHandler struct {
	mu    sync.Mutex
	calls []string
	run   func(ctx context.Context, job *queue.Job, call int) error
}

func (f *fakeHandler) Execute(ctx context.Context, job *queue.Job) error {
	f.mu.Lock()
	f.calls = append(f.calls, job.ID)
	call := len(f.calls)
	f.mu.Unlock()
	if f.run != nil {
		return f.run(ctx, job, call)
	}
	return nil
}

func (f *fakeHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("fake")
}

func (f *fakeHandler) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func startWorker(t *testing.T, cfg *config.Config, store *queue.Store, handlers stage.Registry, opts ...workflow.Option) *workflow.Worker {
	t.Helper()
	w := workflow.NewWorker(cfg, store, logging.NewNop(), opts...)
	w.ConfigureHandlers(handlers)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop(context.Background()) })
	return w
}

func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s did not reach %s (last %+v)", id, want, job)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorkerCompletesJobAndClearsCheckpoints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job, err := store.Create(context.Background(), queue.JobTypeGenerate, "chapter-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	handler := &fakeHandler{run: func(ctx context.Context, job *queue.Job, _ int) error {
		return store.SaveCheckpoint(ctx, job.ID, "draft_generated", "the draft")
	}}
	startWorker(t, cfg, store, stage.Registry{queue.JobTypeGenerate: handler})

	done := waitForStatus(t, store, job.ID, queue.StatusCompleted)
	if done.Attempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", done.Attempts)
	}
	if done.Checkpoint != "the draft" {
		t.Fatalf("expected checkpoint mirror to survive, got %q", done.Checkpoint)
	}
	entries, err := store.Checkpoints(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Checkpoints: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected ledger cleared, got %d entries", len(entries))
	}
}

func TestWorkerRetriesUntilAttemptsExhausted(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(3))
	store := testsupport.MustOpenStore(t, cfg)
	job, err := store.Create(context.Background(), queue.JobTypeReview, "chapter-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	handler := &fakeHandler{run: func(context.Context, *queue.Job, int) error {
		return errors.New("model returned nonsense")
	}}
	startWorker(t, cfg, store, stage.Registry{queue.JobTypeReview: handler})

	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if failed.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", failed.Attempts)
	}
	if !strings.Contains(failed.Error, "model returned nonsense") {
		t.Fatalf("expected error preserved, got %q", failed.Error)
	}
	if calls := handler.Calls(); len(calls) != 3 {
		t.Fatalf("expected 3 executions, got %d", len(calls))
	}
}

func TestWorkerUnknownJobTypeCountsAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(1))
	store := testsupport.MustOpenStore(t, cfg)
	job, err := store.Create(context.Background(), queue.JobTypeSummary, "chapter-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	startWorker(t, cfg, store, stage.Registry{queue.JobTypeGenerate: &fakeHandler{}})

	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if failed.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", failed.Attempts)
	}
	if !strings.Contains(failed.Error, "no handler registered") {
		t.Fatalf("unexpected error %q", failed.Error)
	}
}

func TestWorkerRateLimitPausesAndHoldsQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(1))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	first, err := store.Create(ctx, queue.JobTypeGenerate, "chapter-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := store.Create(ctx, queue.JobTypeGenerate, "chapter-2")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	handler := &fakeHandler{run: func(_ context.Context, _ *queue.Job, call int) error {
		if call == 1 {
			return &llm.StatusError{StatusCode: 429, Body: "slow down", RetryAfter: 150 * time.Millisecond}
		}
		return nil
	}}
	limiter := ratelimit.NewHandler(store, nil, ratelimit.Settings{DefaultCooldown: time.Second}, nil)
	startWorker(t, cfg, store, stage.Registry{queue.JobTypeGenerate: handler}, workflow.WithRateLimiter(limiter))

	resumed := waitForStatus(t, store, first.ID, queue.StatusCompleted)
	waitForStatus(t, store, second.ID, queue.StatusCompleted)

	if resumed.Attempts != 0 {
		t.Fatalf("rate limit must not count an attempt, got %d", resumed.Attempts)
	}
	calls := handler.Calls()
	want := []string{first.ID, first.ID, second.ID}
	if len(calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, calls)
		}
	}
}

func TestWorkerStartResetsStuckRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job, err := store.Create(ctx, queue.JobTypeGenerate, "chapter-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	startWorker(t, cfg, store, stage.Registry{queue.JobTypeGenerate: &fakeHandler{}})
	waitForStatus(t, store, job.ID, queue.StatusCompleted)
}

func TestWorkerStartTwiceFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	w := startWorker(t, cfg, store, stage.Registry{})
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestWorkerStopWaitsForInflightJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job, err := store.Create(context.Background(), queue.JobTypeGenerate, "chapter-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	handler := &fakeHandler{run: func(context.Context, *queue.Job, int) error {
		close(started)
		<-release
		return nil
	}}
	w := startWorker(t, cfg, store, stage.Registry{queue.JobTypeGenerate: handler}, workflow.WithStopTimeout(5*time.Second))
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the job was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	if err := <-stopped; err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitForStatus(t, store, job.ID, queue.StatusCompleted)
}

func TestWorkerStopCancelsJobAfterTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job, err := store.Create(context.Background(), queue.JobTypeGenerate, "chapter-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	started := make(chan struct{})
	handler := &fakeHandler{run: func(ctx context.Context, _ *queue.Job, _ int) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
	w := startWorker(t, cfg, store, stage.Registry{queue.JobTypeGenerate: handler}, workflow.WithStopTimeout(50*time.Millisecond))
	<-started

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	released := waitForStatus(t, store, job.ID, queue.StatusPending)
	if released.Attempts != 0 {
		t.Fatalf("interrupted job must not count an attempt, got %d", released.Attempts)
	}
}

func TestWorkerJobTimeoutIsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(1))
	cfg.Workflow.JobTimeoutSeconds = 1
	store := testsupport.MustOpenStore(t, cfg)
	job, err := store.Create(context.Background(), queue.JobTypeGenerate, "chapter-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	handler := &fakeHandler{run: func(ctx context.Context, _ *queue.Job, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	startWorker(t, cfg, store, stage.Registry{queue.JobTypeGenerate: handler})

	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if !strings.Contains(failed.Error, "timeout") {
		t.Fatalf("expected timeout error, got %q", failed.Error)
	}
}

func TestWorkerStatusReportsQueueAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job, err := store.Create(context.Background(), queue.JobTypeGenerate, "chapter-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w := startWorker(t, cfg, store, stage.Registry{queue.JobTypeGenerate: &fakeHandler{}})
	waitForStatus(t, store, job.ID, queue.StatusCompleted)

	var status workflow.StatusSummary
	deadline := time.Now().Add(5 * time.Second)
	for {
		status = w.Status(context.Background())
		if status.LastJob != nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !status.Running {
		t.Fatal("expected worker running")
	}
	if status.QueueStats.Completed != 1 {
		t.Fatalf("expected 1 completed job, got %+v", status.QueueStats)
	}
	health, ok := status.StageHealth[string(queue.JobTypeGenerate)]
	if !ok || !health.Ready {
		t.Fatalf("expected generate handler healthy, got %+v", status.StageHealth)
	}
	if status.LastJob == nil || status.LastJob.ID != job.ID {
		t.Fatalf("expected last job %s, got %+v", job.ID, status.LastJob)
	}
}
