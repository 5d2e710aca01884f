package textanalysis

import (
	"math"
	"strings"
	"unicode"
)

// Report summarizes a block of prose.
type Report struct {
	Words                int     `json:"words"`
	Sentences            int     `json:"sentences"`
	Paragraphs           int     `json:"paragraphs"`
	Syllables            int     `json:"syllables"`
	AvgSentenceLength    float64 `json:"avg_sentence_length"`
	SentenceLengthStdDev float64 `json:"sentence_length_stddev"`
	FleschReadingEase    float64 `json:"flesch_reading_ease"`
	PassiveRatio         float64 `json:"passive_ratio"`
	AdverbDensity        float64 `json:"adverb_density"`
}

var beVerbs = map[string]struct{}{
	"am": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
}

// -ly words that are not adverbs often enough to skew the density.
var lyExceptions = map[string]struct{}{
	"family": {}, "only": {}, "early": {}, "daily": {}, "likely": {}, "lovely": {},
	"ugly": {}, "holy": {}, "reply": {}, "supply": {}, "apply": {}, "rely": {},
	"belly": {}, "jelly": {}, "silly": {}, "friendly": {}, "lonely": {}, "july": {},
}

// Analyze computes a Report for text. Empty input yields a zero Report.
func Analyze(text string) Report {
	var report Report
	report.Paragraphs = CountParagraphs(text)

	sentences := splitSentences(text)
	lengths := make([]int, 0, len(sentences))
	passive := 0
	adverbs := 0
	for _, sentence := range sentences {
		words := tokenize(sentence)
		if len(words) == 0 {
			continue
		}
		lengths = append(lengths, len(words))
		if isPassive(words) {
			passive++
		}
		for _, word := range words {
			report.Syllables += countSyllables(word)
			if isAdverb(word) {
				adverbs++
			}
		}
		report.Words += len(words)
	}
	report.Sentences = len(lengths)
	if report.Words == 0 || report.Sentences == 0 {
		return report
	}

	mean := float64(report.Words) / float64(report.Sentences)
	var variance float64
	for _, n := range lengths {
		delta := float64(n) - mean
		variance += delta * delta
	}
	variance /= float64(len(lengths))

	report.AvgSentenceLength = round2(mean)
	report.SentenceLengthStdDev = round2(math.Sqrt(variance))
	report.FleschReadingEase = round2(206.835 - 1.015*mean - 84.6*(float64(report.Syllables)/float64(report.Words)))
	report.PassiveRatio = round2(float64(passive) / float64(report.Sentences))
	report.AdverbDensity = round2(float64(adverbs) / float64(report.Words))
	return report
}

// WordCount counts whitespace-separated tokens that contain a letter or digit.
func WordCount(text string) int {
	return len(tokenize(text))
}

// CountParagraphs counts blocks of non-blank lines separated by blank lines.
func CountParagraphs(text string) int {
	count := 0
	inParagraph := false
	for line := range strings.SplitSeq(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			inParagraph = false
			continue
		}
		if !inParagraph {
			count++
			inParagraph = true
		}
	}
	return count
}

func splitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Collapse runs like "?!" or "..." into one boundary.
		if i+1 < len(runes) && strings.ContainsRune(".!?", runes[i+1]) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) && !strings.ContainsRune(`"'”’)`, runes[i+1]) {
			continue
		}
		sentences = append(sentences, current.String())
		current.Reset()
	}
	if strings.TrimSpace(current.String()) != "" {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func tokenize(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.ToLower(strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		if word != "" {
			words = append(words, word)
		}
	}
	return words
}

// isPassive looks for a form of "to be" followed within two words by a
// participle ending in -ed or -en.
func isPassive(words []string) bool {
	for i, word := range words {
		if _, ok := beVerbs[word]; !ok {
			continue
		}
		for j := i + 1; j < len(words) && j <= i+2; j++ {
			candidate := words[j]
			if len(candidate) > 3 && (strings.HasSuffix(candidate, "ed") || strings.HasSuffix(candidate, "en")) {
				return true
			}
		}
	}
	return false
}

func isAdverb(word string) bool {
	if len(word) <= 4 || !strings.HasSuffix(word, "ly") {
		return false
	}
	_, excluded := lyExceptions[word]
	return !excluded
}

// countSyllables counts vowel groups, dropping a trailing silent e.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	return max(count, 1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
