package queue

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/database"
)

// ErrNotRunning is returned by transitions that require a running job when the
// job has already moved on (for example after a crash-recovery reset).
var ErrNotRunning = errors.New("job is not running")

// Store manages job persistence on a shared database handle.
type Store struct {
	db    *database.DB
	stamp *stamper
	now   func() time.Time
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore wraps an open database. The caller owns the database lifecycle.
func NewStore(db *database.DB, opts ...StoreOption) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.stamp = &stamper{now: s.now}
	return s
}

// DB exposes the underlying handle for sibling stores sharing the connection.
func (s *Store) DB() *database.DB {
	return s.db
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
