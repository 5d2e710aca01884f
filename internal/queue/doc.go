// Package queue persists pipeline jobs and exposes the atomic operations that
// drive their lifecycle.
//
// The Store creates jobs with strictly increasing creation stamps, claims the
// oldest pending job with a conditional update (compare-and-swap from pending
// to running), and applies the status transitions the worker and rate-limit
// handler need: complete, requeue-or-fail, pause, resume, and crash recovery.
// It also owns the checkpoint rows a job writes while it runs.
//
// Claim order is global FIFO by created_at. Per-chapter stage order falls out
// of that ordering plus a single draining worker; the store does not model
// stage dependencies explicitly.
//
// Treat this package as the single source of truth for job semantics; when you
// add a job type, extend AllJobTypes and the pipeline's stage list together.
package queue
