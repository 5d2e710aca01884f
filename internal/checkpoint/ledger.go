// Package checkpoint records per-job progress markers so a stage interrupted
// by a crash can resume without repeating expensive completion calls.
//
// Entries belong to the job that wrote them. The one sanctioned cross-job
// read is Handoff, which lets a revision job pick up the structured feedback
// the most recent review job for the same chapter left behind.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"inkwell/internal/queue"
)

// Ledger reads and writes checkpoint entries through the job store.
type Ledger struct {
	store *queue.Store
}

// NewLedger builds a ledger over store.
func NewLedger(store *queue.Store) *Ledger {
	return &Ledger{store: store}
}

// Record stores payload under step for jobID. Strings are stored verbatim;
// anything else is JSON-encoded. Recording the same step twice overwrites it.
func (l *Ledger) Record(ctx context.Context, jobID, step string, payload any) error {
	encoded, err := encode(payload)
	if err != nil {
		return fmt.Errorf("checkpoint %s/%s: %w", jobID, step, err)
	}
	return l.store.SaveCheckpoint(ctx, jobID, step, encoded)
}

// Load decodes the payload recorded for step into dst. It reports false when
// the step was never recorded. A *string dst receives the raw payload.
func (l *Ledger) Load(ctx context.Context, jobID, step string, dst any) (bool, error) {
	raw, ok, err := l.store.LoadCheckpoint(ctx, jobID, step)
	if err != nil || !ok {
		return false, err
	}
	if err := decode(raw, dst); err != nil {
		return false, fmt.Errorf("checkpoint %s/%s: %w", jobID, step, err)
	}
	return true, nil
}

// Entries lists every step recorded for jobID.
func (l *Ledger) Entries(ctx context.Context, jobID string) ([]queue.Checkpoint, error) {
	return l.store.Checkpoints(ctx, jobID)
}

// Clear removes jobID's entries. The worker calls it after a job succeeds.
func (l *Ledger) Clear(ctx context.Context, jobID string) error {
	return l.store.ClearCheckpoints(ctx, jobID)
}

// Handoff decodes the latest checkpoint of the most recent jobType job for
// targetID into dst. It reports false when no such job exists or it never
// recorded anything.
func (l *Ledger) Handoff(ctx context.Context, jobType queue.JobType, targetID string, dst any) (bool, error) {
	job, err := l.store.LatestByTypeAndTarget(ctx, jobType, targetID)
	if err != nil {
		return false, err
	}
	if job == nil || strings.TrimSpace(job.Checkpoint) == "" {
		return false, nil
	}
	if err := decode(job.Checkpoint, dst); err != nil {
		return false, fmt.Errorf("handoff from %s job %s: %w", jobType, job.ID, err)
	}
	return true, nil
}

func encode(payload any) (string, error) {
	switch v := payload.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

func decode(raw string, dst any) error {
	switch v := dst.(type) {
	case nil:
		return nil
	case *string:
		*v = raw
		return nil
	case *json.RawMessage:
		*v = json.RawMessage(raw)
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
