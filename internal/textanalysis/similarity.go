package textanalysis

import (
	"math"
	"regexp"
	"strings"
)

var termSplit = regexp.MustCompile(`[^a-z0-9]+`)

// Fingerprint is a term-frequency vector over a text's words of three or
// more characters.
type Fingerprint struct {
	terms map[string]float64
	norm  float64
}

// NewFingerprint returns nil when text has no usable terms.
func NewFingerprint(text string) *Fingerprint {
	terms := make(map[string]float64)
	for _, term := range termSplit.Split(strings.ToLower(text), -1) {
		if len(term) < 3 {
			continue
		}
		terms[term]++
	}
	if len(terms) == 0 {
		return nil
	}
	var sum float64
	for _, n := range terms {
		sum += n * n
	}
	return &Fingerprint{terms: terms, norm: math.Sqrt(sum)}
}

// Cosine is the cosine similarity of two fingerprints, zero when either is nil.
func Cosine(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	small, large := a, b
	if len(small.terms) > len(large.terms) {
		small, large = large, small
	}
	var dot float64
	for term, n := range small.terms {
		dot += n * large.terms[term]
	}
	return dot / (a.norm * b.norm)
}

// OutlineMatch scores how much of an outline's vocabulary the draft uses, in
// the range 0..1.
func OutlineMatch(outline, content string) float64 {
	return round2(Cosine(NewFingerprint(outline), NewFingerprint(content)))
}
