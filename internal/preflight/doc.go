// Package preflight provides readiness checks for the filesystem paths and
// external services inkwell depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before starting the worker and logs every
//     failure; a failed check is reported, not fatal.
//   - The CLI "inkwell status" command renders the same results alongside
//     queue health.
package preflight
