package pipeline

import (
	"context"
	"fmt"
	"strings"

	"inkwell/internal/manuscript"
	"inkwell/internal/textanalysis"
)

const minOutlineWords = 20

// Preflight flags chapter inputs likely to produce a weak draft. Lookup
// failures for related entities are reported as warnings rather than errors.
func (o *Orchestrator) Preflight(ctx context.Context, chapter *manuscript.Chapter) []Warning {
	var warnings []Warning

	outline := strings.TrimSpace(chapter.Outline)
	switch words := textanalysis.WordCount(outline); {
	case outline == "":
		warnings = append(warnings, Warning{Check: "outline", Severity: SeverityHigh, Message: "chapter has no outline"})
	case words < minOutlineWords:
		warnings = append(warnings, Warning{
			Check:    "outline",
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("outline has %d words; at least %d give the draft enough to work with", words, minOutlineWords),
		})
	}

	if chapter.TargetWords <= 0 {
		msg := "chapter has no target word count"
		if o.settings.DefaultTargetWords > 0 {
			msg = fmt.Sprintf("chapter has no target word count; %d will be used", o.settings.DefaultTargetWords)
		}
		warnings = append(warnings, Warning{Check: "target_words", Severity: SeverityLow, Message: msg})
	}

	if previous, err := o.books.PreviousChapter(ctx, chapter); err != nil {
		warnings = append(warnings, Warning{Check: "previous_chapter", Severity: SeverityLow, Message: fmt.Sprintf("previous chapter lookup failed: %v", err)})
	} else if previous != nil && previous.Status != manuscript.ChapterCompleted {
		warnings = append(warnings, Warning{
			Check:    "previous_chapter",
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("chapter %d is %s; continuity context will be incomplete", previous.Number, previous.Status),
		})
	}

	if book, err := o.books.GetBook(ctx, chapter.BookID); err != nil {
		warnings = append(warnings, Warning{Check: "premise", Severity: SeverityLow, Message: fmt.Sprintf("book lookup failed: %v", err)})
	} else if book == nil || strings.TrimSpace(book.Premise) == "" {
		warnings = append(warnings, Warning{Check: "premise", Severity: SeverityLow, Message: "book has no premise"})
	}

	if chapter.Locked {
		warnings = append(warnings, Warning{Check: "locked", Severity: SeverityLow, Message: "chapter is locked; its jobs wait until it is unlocked"})
	}
	return warnings
}
