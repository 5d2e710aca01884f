package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/database"
)

// Complete marks a running job completed and clears its error.
func (s *Store) Complete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	res, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, error = NULL, last_heartbeat = NULL WHERE id = ? AND status = ?`,
		string(StatusCompleted), database.FormatTime(s.now()), id, string(StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return requireOneRow(res, id)
}

// RecordFailure applies the retry policy to a running job: attempts is
// incremented, and the job returns to pending while the new count is below
// maxAttempts, otherwise it becomes failed. The error message is kept either
// way. It returns the resulting status and attempt count.
func (s *Store) RecordFailure(ctx context.Context, id, message string, maxAttempts int) (Status, int, error) {
	ctx = ensureContext(ctx)
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	res, err := s.db.Exec(ctx, `
		UPDATE jobs SET
			attempts = attempts + 1,
			status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END,
			error = ?,
			last_heartbeat = NULL
		WHERE id = ? AND status = ?`,
		maxAttempts, string(StatusFailed), string(StatusPending),
		database.NullableString(strings.TrimSpace(message)),
		id, string(StatusRunning),
	)
	if err != nil {
		return "", 0, fmt.Errorf("record failure for %s: %w", id, err)
	}
	if err := requireOneRow(res, id); err != nil {
		return "", 0, err
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return "", 0, err
	}
	if job == nil {
		return "", 0, fmt.Errorf("record failure for %s: job vanished", id)
	}
	return job.Status, job.Attempts, nil
}

// Pause parks a running job until resumeAt without touching its attempt count.
func (s *Store) Pause(ctx context.Context, id string, resumeAt time.Time, reason string) error {
	ctx = ensureContext(ctx)
	res, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = ?, resume_at = ?, error = ?, last_heartbeat = NULL WHERE id = ? AND status = ?`,
		string(StatusPaused), database.FormatTime(resumeAt), database.NullableString(strings.TrimSpace(reason)),
		id, string(StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("pause job %s: %w", id, err)
	}
	return requireOneRow(res, id)
}

// Release returns a running job to pending without counting an attempt. The
// worker uses it when shutdown interrupts a job mid-flight.
func (s *Store) Release(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	res, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = ?, started_at = NULL, last_heartbeat = NULL WHERE id = ? AND status = ?`,
		string(StatusPending), id, string(StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("release job %s: %w", id, err)
	}
	return requireOneRow(res, id)
}

// ResumeDue returns paused jobs whose resume time has passed to pending. Their
// original created_at is kept, so they are claimed ahead of newer work.
func (s *Store) ResumeDue(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = ?, resume_at = NULL, started_at = NULL WHERE status = ? AND resume_at IS NOT NULL AND resume_at <= ?`,
		string(StatusPending), string(StatusPaused), database.FormatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("resume due jobs: %w", err)
	}
	return res.RowsAffected()
}

// Resume forces paused jobs back to pending. With no ids every paused job is resumed.
func (s *Store) Resume(ctx context.Context, ids ...string) (int64, error) {
	ctx = ensureContext(ctx)
	query := `UPDATE jobs SET status = ?, resume_at = NULL, started_at = NULL WHERE status = ?`
	args := []any{string(StatusPending), string(StatusPaused)}
	if len(ids) > 0 {
		query += ` AND id IN (` + database.Placeholders(len(ids)) + `)`
		args = append(args, stringArgs(ids)...)
	}
	res, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("resume paused jobs: %w", err)
	}
	return res.RowsAffected()
}

// NextResumeAt returns the earliest scheduled resume among paused jobs.
func (s *Store) NextResumeAt(ctx context.Context) (time.Time, error) {
	ctx = ensureContext(ctx)
	var raw sql.NullString
	if err := s.db.QueryRow(ctx,
		`SELECT MIN(resume_at) FROM jobs WHERE status = ?`, string(StatusPaused),
	).Scan(&raw); err != nil {
		return time.Time{}, fmt.Errorf("next resume time: %w", err)
	}
	return database.ParseTime(raw), nil
}

// ResetStuckRunning returns every running job to pending. It runs at worker
// start, when any running row must belong to a process that died mid-job.
// Attempts are not incremented and checkpoints are kept for diagnosis.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = ?, started_at = NULL, last_heartbeat = NULL WHERE status = ?`,
		string(StatusPending), string(StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStale returns running jobs whose heartbeat is older than cutoff to pending.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = ?, started_at = NULL, last_heartbeat = NULL WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		string(StatusPending), string(StatusRunning), database.FormatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat refreshes the liveness stamp of a running job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	res, err := s.db.Exec(ctx,
		`UPDATE jobs SET last_heartbeat = ? WHERE id = ? AND status = ?`,
		database.FormatTime(s.now()), id, string(StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("update heartbeat for %s: %w", id, err)
	}
	return requireOneRow(res, id)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireOneRow(res rowsAffecter, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job %s: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotRunning)
	}
	return nil
}
