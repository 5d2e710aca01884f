package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/database"
)

// SaveCheckpoint records (or overwrites) one step for a job and mirrors the
// payload onto the job row so the latest marker is visible without a join.
func (s *Store) SaveCheckpoint(ctx context.Context, jobID, step, payload string) error {
	ctx = ensureContext(ctx)
	step = strings.TrimSpace(step)
	if step == "" {
		return errors.New("save checkpoint: step required")
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO job_checkpoints (job_id, step, payload, recorded_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (job_id, step) DO UPDATE SET payload = excluded.payload, recorded_at = excluded.recorded_at`,
		jobID, step, payload, database.FormatTime(s.now()),
	); err != nil {
		return fmt.Errorf("save checkpoint %s/%s: %w", jobID, step, err)
	}
	if _, err := s.db.Exec(ctx, `UPDATE jobs SET checkpoint = ? WHERE id = ?`, payload, jobID); err != nil {
		return fmt.Errorf("mirror checkpoint %s/%s: %w", jobID, step, err)
	}
	return nil
}

// LoadCheckpoint returns the payload recorded for step, if any.
func (s *Store) LoadCheckpoint(ctx context.Context, jobID, step string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var payload string
	err := s.db.QueryRow(ctx,
		`SELECT payload FROM job_checkpoints WHERE job_id = ? AND step = ?`, jobID, step,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load checkpoint %s/%s: %w", jobID, step, err)
	}
	return payload, true, nil
}

// Checkpoints lists every recorded step for a job in the order they were written.
func (s *Store) Checkpoints(ctx context.Context, jobID string) ([]Checkpoint, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.Query(ctx,
		`SELECT job_id, step, payload, recorded_at FROM job_checkpoints WHERE job_id = ? ORDER BY recorded_at ASC, step ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints for %s: %w", jobID, err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var (
			cp       Checkpoint
			recorded sql.NullString
		)
		if err := rows.Scan(&cp.JobID, &cp.Step, &cp.Payload, &recorded); err != nil {
			return nil, err
		}
		cp.RecordedAt = database.ParseTime(recorded)
		out = append(out, cp)
	}
	return out, rows.Err()
}

// ClearCheckpoints deletes every step recorded for a job. The mirrored payload
// on the job row is kept; downstream jobs read it as a handoff.
func (s *Store) ClearCheckpoints(ctx context.Context, jobID string) error {
	ctx = ensureContext(ctx)
	if _, err := s.db.Exec(ctx, `DELETE FROM job_checkpoints WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("clear checkpoints for %s: %w", jobID, err)
	}
	return nil
}
