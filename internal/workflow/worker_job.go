package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/logging"
	"inkwell/internal/queue"
	"inkwell/internal/ratelimit"
	"inkwell/internal/services"
	"inkwell/internal/stage"
)

// execute runs one claimed job and applies its outcome. The job context is
// detached from the loop so Stop can let it finish; bookkeeping always runs
// on a context that survives cancellation.
func (w *Worker) execute(loopCtx context.Context, job *queue.Job) {
	label := stage.Label(job.Type)
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(loopCtx))
	defer cancel()
	if w.jobTimeout > 0 {
		var cancelTimeout context.CancelFunc
		jobCtx, cancelTimeout = context.WithTimeout(jobCtx, w.jobTimeout)
		defer cancelTimeout()
	}
	jobCtx = services.WithJobID(jobCtx, job.ID)
	jobCtx = services.WithTargetID(jobCtx, job.TargetID)
	jobCtx = services.WithStage(jobCtx, label)
	jobCtx = services.WithRequestID(jobCtx, uuid.NewString())

	w.setCurrent(job, cancel)
	defer w.clearCurrent()

	logger := logging.WithContext(jobCtx, w.logger).With(logging.String(logging.FieldJobType, string(job.Type)))
	logger.Info("job started",
		logging.Int("attempts", job.Attempts),
		logging.String(logging.FieldEventType, "job_start"),
	)

	started := time.Now()
	var execErr error
	handler, ok := w.handlerFor(job.Type)
	if !ok {
		execErr = services.Wrap(services.ErrValidation, label, "dispatch", fmt.Sprintf("no handler registered for job type %q", job.Type), nil)
	} else {
		execErr = w.executeWithHeartbeat(jobCtx, handler, job)
	}

	bookCtx := context.WithoutCancel(jobCtx)
	w.applyOutcome(bookCtx, logger, job, classifyCancellation(jobCtx, execErr, w.isStopping()), time.Since(started))
}

func (w *Worker) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go w.heartbeat.StartLoop(hbCtx, &wg, job.ID)

	err := handler.Execute(ctx, job)

	hbCancel()
	wg.Wait()
	return err
}

// errInterrupted marks a job cancelled by Stop.
var errInterrupted = errors.New("job interrupted by shutdown")

// classifyCancellation distinguishes a shutdown cancellation from the job
// timeout, both of which surface as context errors from the handler.
func classifyCancellation(ctx context.Context, err error, stopping bool) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "", "execute", "job exceeded its timeout", err)
	case errors.Is(ctx.Err(), context.Canceled) && stopping:
		return fmt.Errorf("%w: %w", errInterrupted, err)
	default:
		return err
	}
}

func (w *Worker) applyOutcome(ctx context.Context, logger *slog.Logger, job *queue.Job, execErr error, elapsed time.Duration) {
	switch {
	case execErr == nil:
		w.handleSuccess(ctx, logger, job, elapsed)
	case errors.Is(execErr, errInterrupted):
		if err := w.store.Release(ctx, job.ID); err != nil {
			logger.Warn("release interrupted job failed", logging.Error(err))
		}
		logger.Info("job interrupted by shutdown; returned to pending",
			logging.String(logging.FieldEventType, "job_interrupted"),
		)
		w.setLastJob(ctx, job.ID)
	case ratelimit.IsRateLimitError(execErr):
		if _, err := w.limiter.HandleRateLimit(ctx, job, execErr); err != nil {
			w.setLastError(err)
			logging.ErrorWithContext(logger, "pause throttled job failed", "rate_limit_pause_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database connectivity"),
			)
		}
		w.setLastJob(ctx, job.ID)
	default:
		w.handleFailure(ctx, logger, job, execErr)
	}
}

func (w *Worker) handleSuccess(ctx context.Context, logger *slog.Logger, job *queue.Job, elapsed time.Duration) {
	if err := w.store.Complete(ctx, job.ID); err != nil {
		w.setLastError(err)
		logging.ErrorWithContext(logger, "mark job completed failed", "job_complete_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database connectivity"),
		)
		return
	}
	if err := w.ledger.Clear(ctx, job.ID); err != nil {
		logger.Warn("clear checkpoints failed", logging.Error(err))
	}
	logger.Info("job completed",
		logging.Duration("duration", elapsed),
		logging.String(logging.FieldEventType, "job_complete"),
	)
	w.setLastJob(ctx, job.ID)
}

func (w *Worker) handleFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, execErr error) {
	w.setLastError(execErr)
	status, attempts, err := w.store.RecordFailure(ctx, job.ID, execErr.Error(), w.maxAttempts)
	if err != nil {
		logging.ErrorWithContext(logger, "record job failure failed", "job_failure_record_failed",
			logging.Error(err),
			logging.String("job_error", execErr.Error()),
			logging.String(logging.FieldErrorHint, "check database connectivity"),
		)
		return
	}
	attrs := []logging.Attr{
		logging.Error(execErr),
		logging.Int("attempts", attempts),
		logging.Int("max_attempts", w.maxAttempts),
		logging.String(logging.FieldErrorHint, services.ErrorHint(execErr)),
	}
	if status == queue.StatusFailed {
		attrs = append(attrs, logging.String(logging.FieldImpact, "the job will not run again until retried"))
		logging.ErrorWithContext(logger, "job failed", "job_failed", attrs...)
	} else {
		attrs = append(attrs, logging.String(logging.FieldImpact, "the job was requeued"))
		logging.WarnWithContext(logger, "job attempt failed", "job_retry", attrs...)
	}
	w.setLastJob(ctx, job.ID)
}
