// Package logs reads the daemon's log files for the CLI.
//
// Tail returns the last N lines of a file together with the byte offset it
// stopped at; passing that offset back with Follow set blocks until new lines
// are appended or the wait elapses. `inkwell logs --follow` loops on it.
package logs
