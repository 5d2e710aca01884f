package editorial

import (
	"context"
	"log/slog"

	"inkwell/internal/checkpoint"
	"inkwell/internal/manuscript"
	"inkwell/internal/prompts"
	"inkwell/internal/queue"
)

// Completer is the completion service.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// Manuscript is the slice of the manuscript store the handlers use.
type Manuscript interface {
	GetBook(ctx context.Context, id string) (*manuscript.Book, error)
	GetChapter(ctx context.Context, id string) (*manuscript.Chapter, error)
	PreviousChapter(ctx context.Context, chapter *manuscript.Chapter) (*manuscript.Chapter, error)
	UpdateContent(ctx context.Context, id, content string) error
	SetStatus(ctx context.Context, id string, status manuscript.ChapterStatus) error
	SetSummary(ctx context.Context, id, summary string) error
	AppendNotes(ctx context.Context, id, heading, body string) error
	UpdateStoryState(ctx context.Context, bookID, state string) error
}

// Jobs is the slice of the job store the review handler uses to enqueue rework.
type Jobs interface {
	InsertAfterCurrent(ctx context.Context, current *queue.Job, jobType queue.JobType) (*queue.Job, error)
	LatestByTypeAndTarget(ctx context.Context, jobType queue.JobType, targetID string) (*queue.Job, error)
}

// Env bundles the collaborators shared by every handler.
type Env struct {
	Completer          Completer
	Manuscript         Manuscript
	Jobs               Jobs
	Ledger             *checkpoint.Ledger
	Prompts            *prompts.Catalog
	Logger             *slog.Logger
	DefaultTargetWords int
}
