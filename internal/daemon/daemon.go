package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/gofrs/flock"

	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/preflight"
	"inkwell/internal/queue"
	"inkwell/internal/workflow"
)

// CheckFunc runs the startup readiness checks.
type CheckFunc func(context.Context, *config.Config) []preflight.Result

// Daemon coordinates the worker and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	worker *workflow.Worker
	checks CheckFunc

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                   `json:"running"`
	Worker       workflow.StatusSummary `json:"worker"`
	DatabasePath string                 `json:"database_path"`
	LockFilePath string                 `json:"lock_file_path"`
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithChecks replaces the startup readiness checks.
func WithChecks(checks CheckFunc) Option {
	return func(d *Daemon) {
		d.checks = checks
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, worker *workflow.Worker, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || worker == nil {
		return nil, errors.New("daemon requires config, store, and worker")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		worker:   worker,
		checks:   preflight.RunAll,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock, runs preflight, and launches the worker.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another inkwell daemon instance is already running")
	}

	d.runChecks(ctx)
	d.reportStageHealth(ctx)

	if err := d.worker.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("inkwell daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop stops the worker, waiting up to the configured stop timeout for an
// in-flight job, and releases the daemon lock.
func (d *Daemon) Stop(ctx context.Context) error {
	if !d.running.Load() {
		return nil
	}

	stopErr := d.worker.Stop(ctx)
	if stopErr != nil {
		d.logger.Warn("worker stop incomplete",
			logging.Error(stopErr),
			logging.String(logging.FieldEventType, "daemon_stop_incomplete"),
			logging.String(logging.FieldImpact, "the interrupted job will be reset to pending on next start"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("inkwell daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
	return stopErr
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Worker:       d.worker.Status(ctx),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}

func (d *Daemon) runChecks(ctx context.Context) {
	if d.checks == nil {
		return
	}
	for _, result := range d.checks(ctx, d.cfg) {
		if result.Passed {
			d.logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run 'inkwell status' for details"),
			logging.String(logging.FieldImpact, "jobs may fail until the check passes"),
		)
	}
}

// reportStageHealth warns about registered handlers that cannot take jobs yet.
func (d *Daemon) reportStageHealth(ctx context.Context) {
	health := d.worker.Status(ctx).StageHealth
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if h := health[name]; !h.Ready {
			logging.WarnWithContext(d.logger, "stage handler not ready", "stage_unready",
				logging.String(logging.FieldStage, h.Stage),
				logging.String("detail", h.String()),
				logging.String(logging.FieldErrorHint, "check the llm section of the inkwell config"),
				logging.String(logging.FieldImpact, "jobs of this type will fail until the handler is ready"),
			)
		}
	}
}

// IsRunning reports whether another process holds the daemon lock.
func IsRunning(lockPath string) (bool, error) {
	probe := flock.New(lockPath)
	ok, err := probe.TryLock()
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return false, probe.Unlock()
}
