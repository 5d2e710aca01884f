// Package workflow runs the single queue worker.
//
// The Worker claims one job at a time in creation order, dispatches it to the
// stage handler registered for its type, and applies the outcome: completed
// jobs have their checkpoints cleared, throttled jobs are paused through the
// rate-limit handler (which suspends claiming until the cool-down ends), and
// every other error goes through the retry policy. A heartbeat goroutine keeps
// the running job's last_heartbeat fresh so a crashed process leaves work that
// the next start can reclaim.
//
// Stop is bounded: an in-flight job is given the configured stop timeout to
// finish, after which its context is cancelled and the job is returned to
// pending without counting an attempt.
package workflow
