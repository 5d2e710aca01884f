package workflow

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/logging"
	"inkwell/internal/queue"
)

// Start launches the worker loop. Jobs left running by a previous process are
// returned to pending first, and any cool-down persisted by paused jobs is
// restored.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already running")
	}
	if w.done != nil {
		select {
		case <-w.done:
		default:
			w.mu.Unlock()
			return errors.New("worker still draining a previous run")
		}
	}
	w.mu.Unlock()

	reset, err := w.store.ResetStuckRunning(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		w.logger.Info("reset jobs left running by a previous process",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "running_reset"),
		)
	}
	if err := w.limiter.Restore(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	w.mu.Lock()
	w.running = true
	w.stopping = false
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go w.run(runCtx, done)

	w.logger.Info("worker started",
		logging.Duration("poll_interval", w.pollInterval),
		logging.Int("max_attempts", w.maxAttempts),
		logging.String(logging.FieldEventType, "worker_start"),
	)
	return nil
}

// Stop disables the loop and waits for an in-flight job to finish. When the
// job outlives the stop timeout its context is cancelled. Stop returns
// immediately when the worker is idle.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.stopping = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	timer := time.NewTimer(w.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		w.logger.Info("worker stopped", logging.String(logging.FieldEventType, "worker_stop"))
		return nil
	case <-ctx.Done():
		w.cancelCurrent()
		return ctx.Err()
	case <-timer.C:
	}

	job := w.cancelCurrent()
	attrs := []logging.Attr{
		logging.Duration("stop_timeout", w.stopTimeout),
		logging.String(logging.FieldImpact, "the in-flight job was cancelled and returned to pending"),
		logging.String(logging.FieldErrorHint, "raise workflow.stop_timeout_seconds to let long completions finish"),
	}
	if job != nil {
		attrs = append(attrs, logging.String(logging.FieldJobID, job.ID), logging.String(logging.FieldJobType, string(job.Type)))
	}
	logging.WarnWithContext(w.logger, "stop timeout elapsed; cancelling job", "worker_stop_timeout", attrs...)

	grace := time.NewTimer(stopGrace)
	defer grace.Stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-grace.C:
		return errors.New("worker did not stop after cancelling the in-flight job")
	}
}

func (w *Worker) cancelCurrent() *queue.Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.jobCancel != nil {
		w.jobCancel()
	}
	return w.current
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}

		if err := w.heartbeat.ReclaimStale(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("reclaim stale jobs failed", logging.Error(err))
		}
		if _, err := w.limiter.ResumeDue(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("resume paused jobs failed", logging.Error(err))
		}

		if until := w.limiter.Active(ctx); !until.IsZero() {
			if !w.wait(ctx, min(time.Until(until), w.pollInterval)) {
				return
			}
			continue
		}

		job, err := w.store.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.setLastError(err)
			w.logger.Warn("claim next job failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
				logging.String(logging.FieldErrorHint, "check database connectivity"),
			)
			if !w.wait(ctx, w.pollInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !w.wait(ctx, w.pollInterval) {
				return
			}
			continue
		}

		w.execute(ctx, job)
	}
}

// wait sleeps for d and reports whether the loop should keep going.
func (w *Worker) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
