package pipeline

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"inkwell/internal/manuscript"
	"inkwell/internal/textanalysis"
)

// minBeatWordLen skips short function words when matching outline beats.
const minBeatWordLen = 5

var beatStopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "before": {}, "their": {}, "there": {},
	"these": {}, "those": {}, "which": {}, "while": {}, "where": {}, "would": {},
	"could": {}, "should": {}, "chapter": {}, "finds": {}, "being": {},
}

// ValidateOutput runs advisory checks on a finished chapter. It never changes
// state.
func (o *Orchestrator) ValidateOutput(chapter *manuscript.Chapter) []Warning {
	content := strings.TrimSpace(chapter.Content)
	if content == "" {
		return []Warning{{Check: "content", Severity: SeverityHigh, Message: "chapter has no content"}}
	}

	var warnings []Warning
	if w, ok := o.checkWordCount(chapter, content); ok {
		warnings = append(warnings, w)
	}
	if missing := missingBeats(chapter.Outline, content); len(missing) > 0 {
		warnings = append(warnings, Warning{
			Check:    "outline_beats",
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("%d outline beat(s) not reflected in the text: %s", len(missing), strings.Join(missing, "; ")),
		})
	}
	if textanalysis.CountParagraphs(content) <= 1 {
		warnings = append(warnings, Warning{Check: "paragraphs", Severity: SeverityLow, Message: "text has no paragraph breaks"})
	}
	if !endsWithTerminal(content) {
		warnings = append(warnings, Warning{Check: "ending", Severity: SeverityLow, Message: "text does not end with terminal punctuation"})
	}
	return warnings
}

func (o *Orchestrator) checkWordCount(chapter *manuscript.Chapter, content string) (Warning, bool) {
	target := chapter.TargetWords
	if target <= 0 {
		target = o.settings.DefaultTargetWords
	}
	if target <= 0 {
		return Warning{}, false
	}
	tolerance := o.settings.WordTolerance
	if tolerance <= 0 {
		tolerance = 0.10
	}
	words := textanalysis.WordCount(content)
	deviation := math.Abs(float64(words-target)) / float64(target)
	if deviation <= tolerance {
		return Warning{}, false
	}
	return Warning{
		Check:    "word_count",
		Severity: SeverityMedium,
		Message:  fmt.Sprintf("%d words is %.0f%% away from the %d-word target", words, deviation*100, target),
	}, true
}

// missingBeats splits the outline into beats and returns those with no
// distinctive word present in the text.
func missingBeats(outline, content string) []string {
	haystack := strings.ToLower(content)
	var missing []string
	for _, beat := range splitBeats(outline) {
		keywords := beatKeywords(beat)
		if len(keywords) == 0 {
			continue
		}
		found := false
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, beat)
		}
	}
	return missing
}

func splitBeats(outline string) []string {
	fields := strings.FieldsFunc(outline, func(r rune) bool {
		return r == '.' || r == ';' || r == '\n' || r == '!' || r == '?'
	})
	beats := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(strings.TrimLeft(f, "-*0123456789) ")); f != "" {
			beats = append(beats, f)
		}
	}
	return beats
}

func beatKeywords(beat string) []string {
	var out []string
	for _, field := range strings.Fields(strings.ToLower(beat)) {
		word := strings.TrimFunc(field, func(r rune) bool { return !unicode.IsLetter(r) })
		if utf8.RuneCountInString(word) < minBeatWordLen {
			continue
		}
		if _, stop := beatStopwords[word]; stop {
			continue
		}
		out = append(out, word)
	}
	return out
}

func endsWithTerminal(content string) bool {
	trimmed := strings.TrimRightFunc(content, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("\"'”’)*_", r)
	})
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	return strings.ContainsRune(".!?…", last)
}
