// Package logging assembles structured slog loggers and formatting helpers used
// across inkwell.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so worker and stage code can tag
// log lines with job IDs, job types, stages, and correlation IDs. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
