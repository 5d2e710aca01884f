// Package services defines shared utilities consumed by the queue worker, the
// stage handlers, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, target IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures carry a
//     consistent classification into the job's error field and the logs.
package services
