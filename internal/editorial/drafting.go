package editorial

import (
	"context"
	"strings"

	"inkwell/internal/manuscript"
	"inkwell/internal/queue"
	"inkwell/internal/services"
	"inkwell/internal/stage"
)

// generateHandler drafts a chapter from its outline.
type generateHandler struct{ base }

// NewGenerateHandler builds the drafting stage.
func NewGenerateHandler(env Env) stage.Handler {
	return &generateHandler{newBase(env, queue.JobTypeGenerate)}
}

func (h *generateHandler) Execute(ctx context.Context, job *queue.Job) error {
	chapter, book, err := h.load(ctx, job)
	if err != nil {
		return err
	}
	if strings.TrimSpace(chapter.Outline) == "" {
		return services.Wrap(services.ErrValidation, h.name(), "check outline", "chapter has no outline", nil)
	}
	data := h.data(chapter, book)
	previous, err := h.env.Manuscript.PreviousChapter(ctx, chapter)
	if err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "load previous chapter", chapter.ID, err)
	}
	data.Previous = previous

	draft, err := h.complete(ctx, job, StepDraftGenerated, data)
	if err != nil {
		return err
	}
	if err := h.env.Manuscript.UpdateContent(ctx, chapter.ID, draft); err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "save draft", chapter.ID, err)
	}
	if err := h.env.Manuscript.SetStatus(ctx, chapter.ID, manuscript.ChapterEditing); err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "set status", chapter.ID, err)
	}
	return h.applied(ctx, job, draft)
}

// revisionHandler rewrites a chapter against the latest structural review.
type revisionHandler struct{ base }

// NewRevisionHandler builds the revision stage.
func NewRevisionHandler(env Env) stage.Handler {
	return &revisionHandler{newBase(env, queue.JobTypeRevision)}
}

func (h *revisionHandler) Execute(ctx context.Context, job *queue.Job) error {
	chapter, book, err := h.load(ctx, job)
	if err != nil {
		return err
	}
	if err := h.requireContent(chapter); err != nil {
		return err
	}
	var feedback ReviewFeedback
	found, err := h.env.Ledger.Handoff(ctx, queue.JobTypeReview, chapter.ID, &feedback)
	if err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "read review handoff", chapter.ID, err)
	}
	if !found {
		return services.Wrap(services.ErrValidation, h.name(), "read review handoff", "no review feedback recorded for this chapter", nil)
	}

	data := h.data(chapter, book)
	data.Feedback = &feedback
	revised, err := h.complete(ctx, job, StepCompletionReceived, data)
	if err != nil {
		return err
	}
	if err := h.env.Manuscript.UpdateContent(ctx, chapter.ID, revised); err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "save revision", chapter.ID, err)
	}
	return h.applied(ctx, job, revised)
}

// lineEditHandler tightens prose sentence by sentence.
type lineEditHandler struct{ base }

// NewLineEditHandler builds the line-edit stage.
func NewLineEditHandler(env Env) stage.Handler {
	return &lineEditHandler{newBase(env, queue.JobTypeLineEdit)}
}

func (h *lineEditHandler) Execute(ctx context.Context, job *queue.Job) error {
	chapter, book, err := h.load(ctx, job)
	if err != nil {
		return err
	}
	if err := h.requireContent(chapter); err != nil {
		return err
	}
	edited, err := h.complete(ctx, job, StepCompletionReceived, h.data(chapter, book))
	if err != nil {
		return err
	}
	if err := h.env.Manuscript.UpdateContent(ctx, chapter.ID, edited); err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "save line edit", chapter.ID, err)
	}
	return h.applied(ctx, job, edited)
}
