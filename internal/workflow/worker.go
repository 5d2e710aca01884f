package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/checkpoint"
	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/queue"
	"inkwell/internal/ratelimit"
	"inkwell/internal/stage"
)

// stopGrace bounds how long Stop waits for a cancelled job to unwind.
const stopGrace = 5 * time.Second

// Worker coordinates job execution through the registered stage handlers.
type Worker struct {
	store     *queue.Store
	ledger    *checkpoint.Ledger
	limiter   *ratelimit.Handler
	logger    *slog.Logger
	heartbeat *HeartbeatMonitor

	pollInterval time.Duration
	stopTimeout  time.Duration
	jobTimeout   time.Duration
	maxAttempts  int

	mu        sync.Mutex
	handlers  stage.Registry
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	current   *queue.Job
	jobCancel context.CancelFunc
	stopping  bool
	lastErr   error
	lastJob   *queue.Job
}

// Option customizes a Worker.
type Option func(*Worker)

// WithRateLimiter replaces the rate-limit handler built from config.
func WithRateLimiter(h *ratelimit.Handler) Option {
	return func(w *Worker) {
		if h != nil {
			w.limiter = h
		}
	}
}

// WithPollInterval overrides the idle poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithStopTimeout overrides how long Stop waits for an in-flight job.
func WithStopTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.stopTimeout = d
		}
	}
}

// NewWorker constructs a worker bound to store. Handlers are registered with
// ConfigureHandlers before Start.
func NewWorker(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...Option) *Worker {
	logger = logging.NewComponentLogger(logger, "workflow")
	w := &Worker{
		store:        store,
		ledger:       checkpoint.NewLedger(store),
		logger:       logger,
		heartbeat:    NewHeartbeatMonitor(store, logger, cfg.HeartbeatInterval(), cfg.HeartbeatTimeout()),
		pollInterval: cfg.PollInterval(),
		stopTimeout:  cfg.StopTimeout(),
		jobTimeout:   cfg.JobTimeout(),
		maxAttempts:  cfg.Workflow.MaxAttempts,
		handlers:     stage.Registry{},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.limiter == nil {
		w.limiter = ratelimit.NewHandler(store, nil, ratelimit.SettingsFromConfig(cfg), logger)
	}
	return w
}

// ConfigureHandlers replaces the handler registry.
func (w *Worker) ConfigureHandlers(handlers stage.Registry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = stage.Registry{}
	for jobType, handler := range handlers {
		if handler != nil {
			w.handlers[jobType] = handler
		}
	}
}

// RateLimiter exposes the handler that tracks the active cool-down.
func (w *Worker) RateLimiter() *ratelimit.Handler {
	return w.limiter
}

func (w *Worker) handlerFor(jobType queue.JobType) (stage.Handler, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	h, ok := w.handlers[jobType]
	return h, ok
}
