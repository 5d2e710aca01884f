package workflow

import (
	"context"
	"sort"
	"time"

	"inkwell/internal/queue"
	"inkwell/internal/stage"
)

// StatusSummary captures the worker's observable state.
type StatusSummary struct {
	Running      bool                    `json:"running"`
	Current      *queue.Job              `json:"current,omitempty"`
	LastJob      *queue.Job              `json:"last_job,omitempty"`
	LastError    string                  `json:"last_error,omitempty"`
	BlockedUntil *time.Time              `json:"blocked_until,omitempty"`
	QueueStats   queue.Stats             `json:"queue_stats"`
	StageHealth  map[string]stage.Health `json:"stage_health,omitempty"`
}

// Status returns a snapshot of the worker, the queue, and handler health.
func (w *Worker) Status(ctx context.Context) StatusSummary {
	w.mu.Lock()
	summary := StatusSummary{Running: w.running}
	if w.current != nil {
		current := *w.current
		summary.Current = &current
	}
	if w.lastJob != nil {
		last := *w.lastJob
		summary.LastJob = &last
	}
	if w.lastErr != nil {
		summary.LastError = w.lastErr.Error()
	}
	handlers := make(map[queue.JobType]stage.Handler, len(w.handlers))
	for k, v := range w.handlers {
		handlers[k] = v
	}
	w.mu.Unlock()

	if until := w.limiter.BlockedUntil(); !until.IsZero() {
		summary.BlockedUntil = &until
	}
	if stats, err := w.store.Stats(ctx); err == nil {
		summary.QueueStats = stats
	}

	if len(handlers) > 0 {
		types := make([]string, 0, len(handlers))
		for jobType := range handlers {
			types = append(types, string(jobType))
		}
		sort.Strings(types)
		summary.StageHealth = make(map[string]stage.Health, len(types))
		for _, name := range types {
			summary.StageHealth[name] = handlers[queue.JobType(name)].HealthCheck(ctx)
		}
	}
	return summary
}

func (w *Worker) setCurrent(job *queue.Job, cancel context.CancelFunc) {
	w.mu.Lock()
	w.current = job
	w.jobCancel = cancel
	w.mu.Unlock()
}

func (w *Worker) clearCurrent() {
	w.mu.Lock()
	w.current = nil
	w.jobCancel = nil
	w.mu.Unlock()
}

func (w *Worker) isStopping() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopping
}

func (w *Worker) setLastError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

// setLastJob records the job's post-outcome state.
func (w *Worker) setLastJob(ctx context.Context, id string) {
	job, err := w.store.Get(ctx, id)
	if err != nil || job == nil {
		return
	}
	w.mu.Lock()
	w.lastJob = job
	w.mu.Unlock()
}
