package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inkwell/internal/database"
)

// Stats returns job counts per status plus the total.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusRunning:
			stats.Running = count
		case StatusCompleted:
			stats.Completed = count
		case StatusPaused:
			stats.Paused = count
		case StatusFailed:
			stats.Failed = count
		}
		stats.Total += count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output. Running jobs whose
// heartbeat is older than staleAfter are counted as stale.
func (s *Store) Health(ctx context.Context, staleAfter time.Duration) (HealthSummary, error) {
	ctx = ensureContext(ctx)
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{Stats: stats, Dialect: string(s.db.Dialect())}
	now := s.now()

	var oldest sql.NullString
	if err := s.db.QueryRow(ctx,
		`SELECT MIN(created_at) FROM jobs WHERE status = ?`, string(StatusPending),
	).Scan(&oldest); err != nil {
		return health, fmt.Errorf("oldest pending job: %w", err)
	}
	if created := database.ParseTime(oldest); !created.IsZero() {
		health.OldestPendingAge = now.Sub(created)
	}

	if staleAfter > 0 {
		if err := s.db.QueryRow(ctx,
			`SELECT COUNT(1) FROM jobs WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
			string(StatusRunning), database.FormatTime(now.Add(-staleAfter)),
		).Scan(&health.StaleRunning); err != nil {
			return health, fmt.Errorf("stale running jobs: %w", err)
		}
	}

	if health.NextResumeAt, err = s.NextResumeAt(ctx); err != nil {
		return health, err
	}
	return health, nil
}
