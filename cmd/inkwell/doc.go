// Package main hosts the inkwell CLI entrypoint and command graph.
//
// The Cobra-based command tree maps terminal invocations onto the job queue,
// the manuscript store, and the pipeline orchestrator. Commands open the
// shared database directly; the daemon (`inkwell run`) is the only process
// that executes jobs, and it claims whatever the CLI has queued on its next
// poll.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through dedicated commands or flags here.
package main
