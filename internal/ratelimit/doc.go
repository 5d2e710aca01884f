// Package ratelimit classifies throttling errors from the completion service
// and turns them into timed pauses instead of failures.
//
// A throttled job is parked as paused with a persisted resume time, so its
// attempt count is untouched and the resume survives a restart. While the
// cool-down is active the handler reports the service as blocked; the worker
// stops claiming until then, which keeps every chapter's stages in order.
package ratelimit
