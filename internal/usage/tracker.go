// Package usage tracks completion requests inside a rolling provider session
// window so the rate-limit handler can estimate when quota resets.
package usage

import (
	"context"
	"sync"
	"time"
)

// Completer is the completion call shape shared with stage handlers.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// Snapshot is a point-in-time view of the current session.
type Snapshot struct {
	SessionStart time.Time `json:"session_start,omitzero"`
	ResetAt      time.Time `json:"reset_at,omitzero"`
	Requests     int       `json:"requests"`
	RateLimits   int       `json:"rate_limits"`
	Limit        int       `json:"limit,omitempty"`
}

// Tracker counts requests per session window. A session opens on the first
// request after the previous window expired.
type Tracker struct {
	mu         sync.Mutex
	window     time.Duration
	limit      int
	now        func() time.Time
	start      time.Time
	requests   int
	rateLimits int
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker builds a tracker. limit <= 0 means the request count alone never
// exhausts the session.
func NewTracker(window time.Duration, limit int, opts ...Option) *Tracker {
	t := &Tracker{window: window, limit: limit, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NoteRequest counts one completion request.
func (t *Tracker) NoteRequest() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked()
	t.requests++
}

// NoteRateLimited records that the provider throttled a request.
func (t *Tracker) NoteRateLimited(time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked()
	t.rateLimits++
}

// TimeUntilReset returns how long until the session window closes, but only
// when the session looks exhausted: the request limit was reached or the
// provider already throttled once in this window. Otherwise it returns zero.
func (t *Tracker) TimeUntilReset() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.window <= 0 || t.start.IsZero() {
		return 0
	}
	remaining := t.start.Add(t.window).Sub(t.now())
	if remaining <= 0 {
		return 0
	}
	exhausted := t.rateLimits > 0 || (t.limit > 0 && t.requests >= t.limit)
	if !exhausted {
		return 0
	}
	return remaining
}

// Snapshot reports the current session counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := Snapshot{Requests: t.requests, RateLimits: t.rateLimits, Limit: t.limit, SessionStart: t.start}
	if !t.start.IsZero() && t.window > 0 {
		snap.ResetAt = t.start.Add(t.window)
	}
	return snap
}

// Wrap returns a Completer that counts each call before delegating to next.
func (t *Tracker) Wrap(next Completer) Completer {
	return &countingCompleter{next: next, tracker: t}
}

func (t *Tracker) rollLocked() {
	now := t.now()
	if t.start.IsZero() || (t.window > 0 && !now.Before(t.start.Add(t.window))) {
		t.start = now
		t.requests = 0
		t.rateLimits = 0
	}
}

type countingCompleter struct {
	next    Completer
	tracker *Tracker
}

func (c *countingCompleter) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	c.tracker.NoteRequest()
	return c.next.Complete(ctx, system, user, maxTokens, temperature)
}
