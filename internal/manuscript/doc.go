// Package manuscript stores the books and chapters that pipeline jobs operate
// on. Jobs target chapters by id; stage handlers read outlines and write
// drafts, summaries, and editorial notes back through this package.
//
// The store shares the queue's database handle but never participates in a
// transaction with job state.
package manuscript
