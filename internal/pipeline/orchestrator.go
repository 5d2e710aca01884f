package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/manuscript"
	"inkwell/internal/queue"
	"inkwell/internal/services"
)

// Stages is the fixed pipeline in execution order. Revision is absent: review
// inserts it when the draft needs rework.
var Stages = []queue.JobType{
	queue.JobTypeGenerate,
	queue.JobTypeReview,
	queue.JobTypeLineEdit,
	queue.JobTypeConsistency,
	queue.JobTypeFactCheck,
	queue.JobTypeFinalCheck,
	queue.JobTypeSensitivity,
	queue.JobTypeResearch,
	queue.JobTypeAudience,
	queue.JobTypeOpening,
	queue.JobTypeSummary,
	queue.JobTypePropagateState,
}

// Settings controls preflight and post-hoc validation.
type Settings struct {
	Preflight          bool
	StopOnHighSeverity bool
	WordTolerance      float64
	DefaultTargetWords int
}

// SettingsFromConfig reads the [pipeline] section.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Preflight:          cfg.Pipeline.Preflight,
		StopOnHighSeverity: cfg.Pipeline.StopOnHighSeverity,
		WordTolerance:      cfg.Pipeline.WordTolerance,
		DefaultTargetWords: cfg.Pipeline.DefaultTargetWords,
	}
}

// Result reports what queueing one chapter produced.
type Result struct {
	ChapterID string    `json:"chapter_id"`
	JobIDs    []string  `json:"job_ids,omitempty"`
	Warnings  []Warning `json:"warnings,omitempty"`
	// Skipped holds the reason a chapter was not queued by QueueAllPendingUnits.
	Skipped string `json:"skipped,omitempty"`
}

// WorkflowStatus is a chapter's progress plus its job history.
type WorkflowStatus struct {
	ChapterID string                   `json:"chapter_id"`
	Title     string                   `json:"title"`
	Status    manuscript.ChapterStatus `json:"status"`
	WordCount int                      `json:"word_count"`
	Locked    bool                     `json:"locked"`
	Jobs      []*queue.Job             `json:"jobs"`
	Warnings  []Warning                `json:"warnings,omitempty"`
}

// Orchestrator queues chapter pipelines and reports on them.
type Orchestrator struct {
	jobs     *queue.Store
	books    *manuscript.Store
	settings Settings
	logger   *slog.Logger
}

// New constructs an orchestrator.
func New(jobs *queue.Store, books *manuscript.Store, settings Settings, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     jobs,
		books:    books,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// CreateJob queues a single job after validating its type.
func (o *Orchestrator) CreateJob(ctx context.Context, jobType, targetID string) (string, error) {
	parsed, ok := queue.ParseJobType(jobType)
	if !ok {
		return "", services.Wrap(services.ErrValidation, "pipeline", "create job", fmt.Sprintf("unknown job type %q", jobType), nil)
	}
	job, err := o.jobs.Create(ctx, parsed, targetID)
	if err != nil {
		return "", err
	}
	o.logger.Info("job queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
		logging.String(logging.FieldTargetID, targetID),
		logging.String(logging.FieldEventType, "job_queued"),
	)
	return job.ID, nil
}

// QueueUnitWorkflow runs preflight and creates the full stage pipeline for a
// chapter in one batch.
func (o *Orchestrator) QueueUnitWorkflow(ctx context.Context, chapterID string) (Result, error) {
	chapter, err := o.requireChapter(ctx, chapterID)
	if err != nil {
		return Result{ChapterID: chapterID}, err
	}
	return o.queueChapter(ctx, chapter)
}

func (o *Orchestrator) queueChapter(ctx context.Context, chapter *manuscript.Chapter) (Result, error) {
	result := Result{ChapterID: chapter.ID}
	if o.settings.Preflight {
		result.Warnings = o.Preflight(ctx, chapter)
		if o.settings.StopOnHighSeverity && hasHigh(result.Warnings) {
			return result, services.Wrap(services.ErrValidation, "pipeline", "preflight", describe(result.Warnings, SeverityHigh), nil)
		}
	}

	active, err := o.jobs.HasActive(ctx, chapter.ID)
	if err != nil {
		return result, err
	}
	if active {
		return result, services.Wrap(services.ErrValidation, "pipeline", "queue", "chapter already has queued jobs", nil)
	}

	specs := make([]queue.NewJob, 0, len(Stages))
	for _, jobType := range Stages {
		specs = append(specs, queue.NewJob{Type: jobType, TargetID: chapter.ID})
	}
	jobs, err := o.jobs.CreateBatch(ctx, specs)
	if err != nil {
		return result, err
	}
	for _, job := range jobs {
		result.JobIDs = append(result.JobIDs, job.ID)
	}

	if chapter.Status == manuscript.ChapterPending {
		if err := o.books.SetStatus(ctx, chapter.ID, manuscript.ChapterWriting); err != nil {
			return result, err
		}
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldTargetID, chapter.ID),
		logging.Int("chapter", chapter.Number),
		logging.Int("jobs", len(result.JobIDs)),
		logging.Int("warnings", len(result.Warnings)),
		logging.String(logging.FieldEventType, "workflow_queued"),
	}
	o.logger.Info("chapter workflow queued", logging.Args(attrs...)...)
	for _, w := range result.Warnings {
		o.logger.Warn("preflight warning",
			logging.String(logging.FieldTargetID, chapter.ID),
			logging.String("check", w.Check),
			logging.String("severity", string(w.Severity)),
			logging.String("detail", w.Message),
			logging.String(logging.FieldEventType, "preflight_warning"),
		)
	}
	return result, nil
}

// QueueAllPendingUnits queues every pending chapter of a book in chapter
// order. Chapters rejected by validation are reported as skipped; any other
// error stops the run.
func (o *Orchestrator) QueueAllPendingUnits(ctx context.Context, bookID string) ([]Result, error) {
	book, err := o.books.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "queue book", fmt.Sprintf("book %s not found", bookID), nil)
	}
	chapters, err := o.books.ListChapters(ctx, bookID)
	if err != nil {
		return nil, err
	}
	var results []Result
	for _, chapter := range chapters {
		if chapter.Status != manuscript.ChapterPending {
			continue
		}
		result, err := o.queueChapter(ctx, chapter)
		if err != nil {
			if !errors.Is(err, services.ErrValidation) {
				return results, err
			}
			result.Skipped = err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}

// RegenerateUnit resets a chapter to pending and queues its pipeline again.
func (o *Orchestrator) RegenerateUnit(ctx context.Context, chapterID string) (Result, error) {
	chapter, err := o.requireChapter(ctx, chapterID)
	if err != nil {
		return Result{ChapterID: chapterID}, err
	}
	active, err := o.jobs.HasActive(ctx, chapter.ID)
	if err != nil {
		return Result{ChapterID: chapterID}, err
	}
	if active {
		return Result{ChapterID: chapterID}, services.Wrap(services.ErrValidation, "pipeline", "regenerate", "chapter has queued jobs; remove them first", nil)
	}
	if err := o.books.ResetChapter(ctx, chapter.ID); err != nil {
		return Result{ChapterID: chapterID}, err
	}
	o.logger.Info("chapter reset for regeneration",
		logging.String(logging.FieldTargetID, chapter.ID),
		logging.String(logging.FieldEventType, "chapter_reset"),
	)
	return o.QueueUnitWorkflow(ctx, chapter.ID)
}

// GetWorkflowStatus returns a chapter's state and job history, newest first.
// Post-hoc warnings are included once propagate_state has completed.
func (o *Orchestrator) GetWorkflowStatus(ctx context.Context, chapterID string) (WorkflowStatus, error) {
	chapter, err := o.requireChapter(ctx, chapterID)
	if err != nil {
		return WorkflowStatus{}, err
	}
	jobs, err := o.jobs.ListByTarget(ctx, chapter.ID)
	if err != nil {
		return WorkflowStatus{}, err
	}
	status := WorkflowStatus{
		ChapterID: chapter.ID,
		Title:     chapter.Title,
		Status:    chapter.Status,
		WordCount: chapter.WordCount,
		Locked:    chapter.Locked,
		Jobs:      jobs,
	}
	for _, job := range jobs {
		if job.Type != queue.JobTypePropagateState {
			continue
		}
		if job.Status == queue.StatusCompleted {
			status.Warnings = o.ValidateOutput(chapter)
		}
		break
	}
	return status, nil
}

// GetQueueStats counts jobs per status.
func (o *Orchestrator) GetQueueStats(ctx context.Context) (queue.Stats, error) {
	return o.jobs.Stats(ctx)
}

func (o *Orchestrator) requireChapter(ctx context.Context, chapterID string) (*manuscript.Chapter, error) {
	chapter, err := o.books.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "load chapter", fmt.Sprintf("chapter %s not found", chapterID), nil)
	}
	return chapter, nil
}
