package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inkwell/internal/database"
)

// ClaimNext moves the oldest claimable pending job to running and returns it.
//
// Candidates exclude jobs whose target is a locked chapter. The transition is a
// conditional update guarded on status = 'pending'; if another claimer won the
// race the update touches zero rows and ClaimNext returns (nil, nil), the same
// as an empty queue.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)

	var id string
	err := s.db.QueryRow(ctx, `
		SELECT id FROM jobs
		WHERE status = ?
		  AND target_id NOT IN (SELECT id FROM chapters WHERE locked = 1)
		ORDER BY created_at ASC, id ASC
		LIMIT 1`,
		string(StatusPending),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select next job: %w", err)
	}

	claimed, err := s.claim(ctx, id)
	if err != nil || !claimed {
		return nil, err
	}
	return s.Get(ctx, id)
}

// claim performs the compare-and-swap from pending to running.
func (s *Store) claim(ctx context.Context, id string) (bool, error) {
	now := database.FormatTime(s.now())
	res, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = ?, started_at = ?, last_heartbeat = ? WHERE id = ? AND status = ?`,
		string(StatusRunning), now, now, id, string(StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job %s: rows affected: %w", id, err)
	}
	return affected == 1, nil
}
