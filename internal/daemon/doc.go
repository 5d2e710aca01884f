// Package daemon coordinates the long-running inkwell process.
//
// It wires configuration, the job store, and the queue worker into a single
// lifecycle with flock-based locking to prevent multiple instances, since the
// queue's ordering guarantees assume one worker. Startup runs the system
// preflight checks and logs failures without refusing to start.
//
// Keep orchestration logic here: stage behaviour lives in editorial and
// claiming and retries live in workflow, while the daemon focuses on startup,
// shutdown, and status.
package daemon
