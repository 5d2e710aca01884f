package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/database"
)

// NewJob describes a job to insert.
type NewJob struct {
	Type     JobType
	TargetID string
}

// Create inserts a single pending job stamped now.
func (s *Store) Create(ctx context.Context, jobType JobType, targetID string) (*Job, error) {
	jobs, err := s.CreateBatch(ctx, []NewJob{{Type: jobType, TargetID: targetID}})
	if err != nil {
		return nil, err
	}
	return jobs[0], nil
}

// CreateBatch inserts jobs in slice order inside one transaction: either every
// job is stored or none is. Each job receives a created_at strictly later than
// the previous one, so claim order matches slice order.
func (s *Store) CreateBatch(ctx context.Context, specs []NewJob) ([]*Job, error) {
	ctx = ensureContext(ctx)
	if len(specs) == 0 {
		return nil, errors.New("create jobs: empty batch")
	}
	for _, spec := range specs {
		if _, ok := ParseJobType(string(spec.Type)); !ok {
			return nil, fmt.Errorf("create jobs: unknown job type %q", spec.Type)
		}
		if strings.TrimSpace(spec.TargetID) == "" {
			return nil, fmt.Errorf("create jobs: %s job requires a target id", spec.Type)
		}
	}

	var jobs []*Job
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		jobs = make([]*Job, 0, len(specs))
		for _, spec := range specs {
			job := &Job{
				ID:        uuid.NewString(),
				Type:      spec.Type,
				TargetID:  strings.TrimSpace(spec.TargetID),
				Status:    StatusPending,
				CreatedAt: s.stamp.next(),
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO jobs (id, type, target_id, status, attempts, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
				job.ID, string(job.Type), job.TargetID, string(job.Status), database.FormatTime(job.CreatedAt),
			); err != nil {
				return fmt.Errorf("insert %s job: %w", job.Type, err)
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// InsertAfterCurrent enqueues a follow-up job for the same target as current.
// The new job is stamped now, which sorts it after everything already queued
// and before anything created later.
func (s *Store) InsertAfterCurrent(ctx context.Context, current *Job, jobType JobType) (*Job, error) {
	if current == nil {
		return nil, errors.New("insert after current: nil job")
	}
	return s.Create(ctx, jobType, current.TargetID)
}

// Requeue creates a fresh pending copy of a failed job. The failed job is kept
// as history and its attempt count is left untouched.
func (s *Store) Requeue(ctx context.Context, id string) (*Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("requeue %s: job not found", id)
	}
	if job.Status != StatusFailed {
		return nil, fmt.Errorf("requeue %s: job is %s, only failed jobs can be requeued", id, job.Status)
	}
	return s.Create(ctx, job.Type, job.TargetID)
}

// Get fetches a job by id. A missing job yields (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List returns jobs matching filter, in claim order unless NewestFirst is set.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+database.Placeholders(len(filter.Statuses))+")")
		args = append(args, statusArgs(filter.Statuses)...)
	}
	if len(filter.Types) > 0 {
		clauses = append(clauses, "type IN ("+database.Placeholders(len(filter.Types))+")")
		args = append(args, typeArgs(filter.Types)...)
	}
	if filter.TargetID != "" {
		clauses = append(clauses, "target_id = ?")
		args = append(args, filter.TargetID)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if filter.NewestFirst {
		query += " ORDER BY created_at DESC, id DESC"
	} else {
		query += " ORDER BY created_at ASC, id ASC"
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

// ListByTarget returns the full job history for a target, most recent first.
func (s *Store) ListByTarget(ctx context.Context, targetID string) ([]*Job, error) {
	return s.List(ctx, ListFilter{TargetID: targetID, NewestFirst: true})
}

// ListByTargets returns jobs for several targets, most recent first.
func (s *Store) ListByTargets(ctx context.Context, targetIDs []string) ([]*Job, error) {
	ctx = ensureContext(ctx)
	if len(targetIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE target_id IN (`+database.Placeholders(len(targetIDs))+`) ORDER BY created_at DESC, id DESC`,
		stringArgs(targetIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs by targets: %w", err)
	}
	return collectJobs(rows)
}

// LatestByTypeAndTarget returns the most recently created job of jobType for
// target, or nil when none exists. This backs the review-to-revision handoff.
func (s *Store) LatestByTypeAndTarget(ctx context.Context, jobType JobType, targetID string) (*Job, error) {
	jobs, err := s.List(ctx, ListFilter{TargetID: targetID, Types: []JobType{jobType}, Limit: 1, NewestFirst: true})
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

// HasActive reports whether target has pending, running, or paused jobs.
func (s *Store) HasActive(ctx context.Context, targetID string) (bool, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(1) FROM jobs WHERE target_id = ? AND status IN (?, ?, ?)`,
		targetID, string(StatusPending), string(StatusRunning), string(StatusPaused),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check active jobs: %w", err)
	}
	return count > 0, nil
}

// Remove deletes a job and its checkpoints. Running jobs cannot be removed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	if _, err := s.db.Exec(ctx, `DELETE FROM job_checkpoints WHERE job_id = ? AND EXISTS (SELECT 1 FROM jobs WHERE id = ? AND status <> ?)`, id, id, string(StatusRunning)); err != nil {
		return false, fmt.Errorf("remove job checkpoints: %w", err)
	}
	res, err := s.db.Exec(ctx, `DELETE FROM jobs WHERE id = ? AND status <> ?`, id, string(StatusRunning))
	if err != nil {
		return false, fmt.Errorf("remove job: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// ClearCompleted deletes completed jobs created before cutoff (all when cutoff is zero).
func (s *Store) ClearCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	query := `DELETE FROM jobs WHERE status = ?`
	args := []any{string(StatusCompleted)}
	if !cutoff.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, database.FormatTime(cutoff))
	}
	res, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear completed jobs: %w", err)
	}
	return res.RowsAffected()
}
