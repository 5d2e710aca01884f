// Package pipeline turns chapters into queued stage jobs.
//
// The Orchestrator creates the fixed twelve-stage pipeline for a chapter in a
// single batch, so the strictly increasing created_at stamps encode stage
// order and the single FIFO worker preserves it. Before queueing, heuristic
// preflight checks flag thin inputs; once a chapter's pipeline has finished,
// post-hoc checks flag output that drifted from its outline or target length.
// Both kinds of warning are advisory unless pipeline.stop_on_high_severity is
// set.
package pipeline
