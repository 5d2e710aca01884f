package editorial

import (
	"context"
	"strings"

	"inkwell/internal/manuscript"
	"inkwell/internal/queue"
	"inkwell/internal/services"
	"inkwell/internal/stage"
)

// notesHandler runs a read-only editorial pass and files its findings in the
// chapter notes under the stage label. The consistency, correctness, final
// check, and specialist stages all share it.
type notesHandler struct{ base }

// NewNotesHandler builds a notes-only pass for jobType.
func NewNotesHandler(env Env, jobType queue.JobType) stage.Handler {
	return &notesHandler{newBase(env, jobType)}
}

func (h *notesHandler) Execute(ctx context.Context, job *queue.Job) error {
	chapter, book, err := h.load(ctx, job)
	if err != nil {
		return err
	}
	if err := h.requireContent(chapter); err != nil {
		return err
	}
	data := h.data(chapter, book)
	if h.jobType == queue.JobTypeOpening {
		previous, err := h.env.Manuscript.PreviousChapter(ctx, chapter)
		if err != nil {
			return services.Wrap(services.ErrTransient, h.name(), "load previous chapter", chapter.ID, err)
		}
		data.Previous = previous
		data.Opening = openingOf(chapter.Content, 3)
	}
	notes, err := h.complete(ctx, job, StepCompletionReceived, data)
	if err != nil {
		return err
	}
	if err := h.env.Manuscript.AppendNotes(ctx, chapter.ID, stage.Label(h.jobType), notes); err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "save notes", chapter.ID, err)
	}
	return h.applied(ctx, job, notes)
}

// summaryHandler writes the continuity synopsis.
type summaryHandler struct{ base }

// NewSummaryHandler builds the summary stage.
func NewSummaryHandler(env Env) stage.Handler {
	return &summaryHandler{newBase(env, queue.JobTypeSummary)}
}

func (h *summaryHandler) Execute(ctx context.Context, job *queue.Job) error {
	chapter, book, err := h.load(ctx, job)
	if err != nil {
		return err
	}
	if err := h.requireContent(chapter); err != nil {
		return err
	}
	summary, err := h.complete(ctx, job, StepCompletionReceived, h.data(chapter, book))
	if err != nil {
		return err
	}
	if err := h.env.Manuscript.SetSummary(ctx, chapter.ID, summary); err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "save summary", chapter.ID, err)
	}
	return h.applied(ctx, job, summary)
}

// propagateHandler folds the chapter summary into the book's story state and
// closes out the chapter.
type propagateHandler struct{ base }

// NewPropagateStateHandler builds the final pipeline stage.
func NewPropagateStateHandler(env Env) stage.Handler {
	return &propagateHandler{newBase(env, queue.JobTypePropagateState)}
}

func (h *propagateHandler) Execute(ctx context.Context, job *queue.Job) error {
	chapter, book, err := h.load(ctx, job)
	if err != nil {
		return err
	}
	if strings.TrimSpace(chapter.Summary) == "" {
		return services.Wrap(services.ErrValidation, h.name(), "check summary", "chapter has no summary; run summary first", nil)
	}
	state, err := h.complete(ctx, job, StepCompletionReceived, h.data(chapter, book))
	if err != nil {
		return err
	}
	if err := h.env.Manuscript.UpdateStoryState(ctx, book.ID, state); err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "save story state", book.ID, err)
	}
	if err := h.env.Manuscript.SetStatus(ctx, chapter.ID, manuscript.ChapterCompleted); err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "set status", chapter.ID, err)
	}
	return h.applied(ctx, job, state)
}

// openingOf returns the first n paragraphs of text.
func openingOf(text string, n int) string {
	var paragraphs []string
	for block := range strings.SplitSeq(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			paragraphs = append(paragraphs, block)
			if len(paragraphs) == n {
				break
			}
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
