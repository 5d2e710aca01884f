// Package textanalysis computes lightweight prose metrics for chapter text:
// word and sentence counts, Flesch reading ease, sentence-length variation,
// and rough passive-voice and adverb densities.
//
// The heuristics are English-only and intentionally approximate. Editorial
// handlers feed the report into prompts and the orchestrator uses word counts
// for post-hoc validation; neither treats the numbers as exact.
package textanalysis
