package editorial

import (
	"context"
	"log/slog"
	"strings"

	"inkwell/internal/logging"
	"inkwell/internal/manuscript"
	"inkwell/internal/queue"
	"inkwell/internal/services"
	"inkwell/internal/stage"
	"inkwell/internal/textanalysis"
)

// Checkpoint steps shared by the handlers.
const (
	StepPromptBuilt        = "prompt_built"
	StepCompletionReceived = "completion_received"
	StepDraftGenerated     = "draft_generated"
	StepFeedback           = "feedback"
	StepApplied            = "applied"
)

// promptData is the value every prompt template renders against.
type promptData struct {
	Book        *manuscript.Book
	Chapter     *manuscript.Chapter
	Previous    *manuscript.Chapter
	Metrics     textanalysis.Report
	Feedback    *ReviewFeedback
	TargetWords int
	Opening     string
}

type promptStat struct {
	Prompt string `json:"prompt"`
	Chars  int    `json:"chars"`
}

type appliedStat struct {
	Words int `json:"words,omitempty"`
	Chars int `json:"chars"`
}

// base carries the plumbing shared by every handler.
type base struct {
	env     Env
	jobType queue.JobType
	logger  *slog.Logger
}

func newBase(env Env, jobType queue.JobType) base {
	return base{
		env:     env,
		jobType: jobType,
		logger:  logging.NewComponentLogger(env.Logger, "editorial").With(logging.String(logging.FieldStage, string(jobType))),
	}
}

func (b base) name() string { return string(b.jobType) }

// HealthCheck reports whether the handler's collaborators are wired.
func (b base) HealthCheck(context.Context) stage.Health {
	switch {
	case b.env.Completer == nil:
		return stage.Unhealthy(b.name(), "completion client not configured")
	case b.env.Manuscript == nil:
		return stage.Unhealthy(b.name(), "manuscript store not configured")
	case b.env.Ledger == nil:
		return stage.Unhealthy(b.name(), "checkpoint ledger not configured")
	case b.env.Prompts == nil || !b.env.Prompts.Has(b.name()):
		return stage.Unhealthy(b.name(), "prompt not defined")
	}
	return stage.Healthy(b.name())
}

// load fetches the job's chapter and its book.
func (b base) load(ctx context.Context, job *queue.Job) (*manuscript.Chapter, *manuscript.Book, error) {
	if err := stage.RequireTarget(job); err != nil {
		return nil, nil, err
	}
	chapter, err := b.env.Manuscript.GetChapter(ctx, job.TargetID)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, b.name(), "load chapter", job.TargetID, err)
	}
	if chapter == nil {
		return nil, nil, services.Wrap(services.ErrNotFound, b.name(), "load chapter", "chapter "+job.TargetID+" does not exist", nil)
	}
	book, err := b.env.Manuscript.GetBook(ctx, chapter.BookID)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, b.name(), "load book", chapter.BookID, err)
	}
	if book == nil {
		return nil, nil, services.Wrap(services.ErrNotFound, b.name(), "load book", "book "+chapter.BookID+" does not exist", nil)
	}
	return chapter, book, nil
}

// requireContent rejects chapters that have no draft yet.
func (b base) requireContent(chapter *manuscript.Chapter) error {
	if strings.TrimSpace(chapter.Content) == "" {
		return services.Wrap(services.ErrValidation, b.name(), "check content", "chapter has no draft; run generate first", nil)
	}
	return nil
}

func (b base) data(chapter *manuscript.Chapter, book *manuscript.Book) promptData {
	target := chapter.TargetWords
	if target <= 0 {
		target = b.env.DefaultTargetWords
	}
	return promptData{
		Book:        book,
		Chapter:     chapter,
		Metrics:     textanalysis.Analyze(chapter.Content),
		TargetWords: target,
	}
}

// complete returns the completion for the job's prompt, reusing the text
// recorded under step if an earlier run of this job already received it.
func (b base) complete(ctx context.Context, job *queue.Job, step string, data promptData) (string, error) {
	var cached string
	found, err := b.env.Ledger.Load(ctx, job.ID, step, &cached)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, b.name(), "load checkpoint", step, err)
	}
	if found && strings.TrimSpace(cached) != "" {
		b.logger.Info("resuming from checkpoint",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("step", step),
		)
		return cached, nil
	}

	rendered, err := b.env.Prompts.Render(b.name(), data)
	if err != nil {
		return "", err
	}
	if err := b.env.Ledger.Record(ctx, job.ID, StepPromptBuilt, promptStat{Prompt: b.name(), Chars: len(rendered.User)}); err != nil {
		return "", services.Wrap(services.ErrTransient, b.name(), "record checkpoint", StepPromptBuilt, err)
	}

	// Returned as-is; the worker classifies rate limits.
	text, err := b.env.Completer.Complete(ctx, rendered.System, rendered.User, rendered.MaxTokens, rendered.Temperature)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrExternalTool, b.name(), "complete", "empty completion", nil)
	}
	if err := b.env.Ledger.Record(ctx, job.ID, step, text); err != nil {
		return "", services.Wrap(services.ErrTransient, b.name(), "record checkpoint", step, err)
	}
	return text, nil
}

func (b base) applied(ctx context.Context, job *queue.Job, text string) error {
	stat := appliedStat{Words: textanalysis.WordCount(text), Chars: len(text)}
	if err := b.env.Ledger.Record(ctx, job.ID, StepApplied, stat); err != nil {
		return services.Wrap(services.ErrTransient, b.name(), "record checkpoint", StepApplied, err)
	}
	b.logger.Info("stage applied",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldTargetID, job.TargetID),
		logging.Int("words", stat.Words),
	)
	return nil
}
