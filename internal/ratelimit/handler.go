package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/queue"
)

// UsageTracker exposes session quota state.
type UsageTracker interface {
	TimeUntilReset() time.Duration
	NoteRateLimited(retryAfter time.Duration)
}

// JobPauser is the subset of queue.Store the handler drives.
type JobPauser interface {
	Pause(ctx context.Context, id string, resumeAt time.Time, reason string) error
	ResumeDue(ctx context.Context, now time.Time) (int64, error)
	NextResumeAt(ctx context.Context) (time.Time, error)
}

// Settings bound the cool-down applied to a throttled job.
type Settings struct {
	DefaultCooldown time.Duration
	MinCooldown     time.Duration
	MaxCooldown     time.Duration
}

// SettingsFromConfig reads the [ratelimit] section.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		DefaultCooldown: time.Duration(cfg.RateLimit.DefaultCooldownSeconds) * time.Second,
		MinCooldown:     time.Duration(cfg.RateLimit.MinCooldownSeconds) * time.Second,
		MaxCooldown:     time.Duration(cfg.RateLimit.MaxCooldownSeconds) * time.Second,
	}
}

// Handler pauses throttled jobs and tracks the active cool-down.
type Handler struct {
	store    JobPauser
	tracker  UsageTracker
	settings Settings
	logger   *slog.Logger
	now      func() time.Time

	mu           sync.Mutex
	blockedUntil time.Time
}

// Option customizes a Handler.
type Option func(*Handler)

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler builds a handler. tracker may be nil.
func NewHandler(store JobPauser, tracker UsageTracker, settings Settings, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		store:    store,
		tracker:  tracker,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "ratelimit"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Restore re-arms the block from paused jobs persisted by a previous process.
func (h *Handler) Restore(ctx context.Context) error {
	next, err := h.store.NextResumeAt(ctx)
	if err != nil {
		return err
	}
	if next.After(h.now()) {
		h.block(next)
		h.logger.Info("cool-down restored from paused jobs", logging.Time("resume_at", next))
	}
	return nil
}

// Cooldown picks the pause length for err: the server hint, then the time
// until the usage session resets, then the configured default, clamped to
// the configured bounds.
func (h *Handler) Cooldown(err error) time.Duration {
	delay := RetryAfter(err)
	if delay <= 0 && h.tracker != nil {
		delay = h.tracker.TimeUntilReset()
	}
	if delay <= 0 {
		delay = h.settings.DefaultCooldown
	}
	if h.settings.MinCooldown > 0 && delay < h.settings.MinCooldown {
		delay = h.settings.MinCooldown
	}
	if h.settings.MaxCooldown > 0 && delay > h.settings.MaxCooldown {
		delay = h.settings.MaxCooldown
	}
	return delay
}

// HandleRateLimit parks job until the cool-down expires and returns the resume time.
func (h *Handler) HandleRateLimit(ctx context.Context, job *queue.Job, cause error) (time.Time, error) {
	if job == nil {
		return time.Time{}, errors.New("handle rate limit: nil job")
	}
	delay := h.Cooldown(cause)
	resumeAt := h.now().Add(delay).UTC()

	reason := "rate limited"
	if cause != nil {
		reason = strings.TrimSpace(cause.Error())
	}
	if err := h.store.Pause(ctx, job.ID, resumeAt, reason); err != nil {
		return time.Time{}, err
	}
	h.block(resumeAt)
	if h.tracker != nil {
		h.tracker.NoteRateLimited(RetryAfter(cause))
	}

	logging.WarnWithContext(logging.WithContext(ctx, h.logger), "job paused by rate limit", "rate_limited",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
		logging.Duration("cooldown", delay),
		logging.Time("resume_at", resumeAt),
		logging.String(logging.FieldErrorHint, "no action needed; the job resumes automatically"),
		logging.String(logging.FieldImpact, "queue processing is suspended until the cool-down ends"),
	)
	return resumeAt, nil
}

// ResumeDue returns paused jobs whose cool-down has ended to pending.
func (h *Handler) ResumeDue(ctx context.Context) (int64, error) {
	n, err := h.store.ResumeDue(ctx, h.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		h.logger.Info("paused jobs resumed", logging.Int64("count", n))
	}
	return n, nil
}

// BlockedUntil returns the end of the active cool-down, or the zero time.
func (h *Handler) BlockedUntil() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.blockedUntil.After(h.now()) {
		h.blockedUntil = time.Time{}
	}
	return h.blockedUntil
}

// Active returns the end of the active cool-down. A cool-down whose paused
// jobs have all been resumed by an operator is cleared.
func (h *Handler) Active(ctx context.Context) time.Time {
	until := h.BlockedUntil()
	if until.IsZero() {
		return until
	}
	next, err := h.store.NextResumeAt(ctx)
	if err == nil && next.IsZero() {
		h.Unblock()
		h.logger.Info("cool-down cleared; no paused jobs remain")
		return time.Time{}
	}
	return until
}

// Unblock clears the cool-down, for operator-forced resumes.
func (h *Handler) Unblock() {
	h.mu.Lock()
	h.blockedUntil = time.Time{}
	h.mu.Unlock()
}

func (h *Handler) block(until time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if until.After(h.blockedUntil) {
		h.blockedUntil = until
	}
}
