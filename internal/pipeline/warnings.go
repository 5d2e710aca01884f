package pipeline

import "strings"

// Severity ranks a warning.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Warning is one heuristic finding about a chapter.
type Warning struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func hasHigh(warnings []Warning) bool {
	for _, w := range warnings {
		if w.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

func describe(warnings []Warning, severity Severity) string {
	parts := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if w.Severity == severity {
			parts = append(parts, w.Message)
		}
	}
	return strings.Join(parts, "; ")
}
