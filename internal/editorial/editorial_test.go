package editorial_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"inkwell/internal/checkpoint"
	"inkwell/internal/editorial"
	"inkwell/internal/logging"
	"inkwell/internal/manuscript"
	"inkwell/internal/prompts"
	"inkwell/internal/queue"
	"inkwell/internal/services"
	"inkwell/internal/stage"
	"inkwell/internal/testsupport"
)

const draftText = "The lamp was already burning when Mara reached the gallery.\n\nShe found the letter folded beneath the lens, dated next spring."

type fixture struct {
	jobs      *queue.Store
	pages     *manuscript.Store
	ledger    *checkpoint.Ledger
	completer *testsupport.FakeCompleter
	registry  stage.Registry
	book      *manuscript.Book
	chapter   *manuscript.Chapter
}

func newFixture(t *testing.T, respond func(system, user string) (string, error)) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	f := &fixture{
		jobs:      queue.NewStore(db),
		pages:     manuscript.NewStore(db),
		completer: &testsupport.FakeCompleter{Respond: respond},
	}
	f.ledger = checkpoint.NewLedger(f.jobs)
	catalog, err := prompts.Load("", prompts.Defaults{MaxTokens: 1000, Temperature: 0.5})
	if err != nil {
		t.Fatalf("prompts.Load: %v", err)
	}
	f.registry = editorial.NewRegistry(editorial.Env{
		Completer:          f.completer,
		Manuscript:         f.pages,
		Jobs:               f.jobs,
		Ledger:             f.ledger,
		Prompts:            catalog,
		Logger:             logging.NewNop(),
		DefaultTargetWords: 3000,
	})
	f.book = testsupport.SeedBook(t, f.pages, "The Keeper")
	f.chapter = testsupport.SeedChapter(t, f.pages, f.book.ID, 1)
	return f
}

func (f *fixture) withDraft(t *testing.T) {
	t.Helper()
	if err := f.pages.UpdateContent(context.Background(), f.chapter.ID, draftText); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
}

func (f *fixture) job(t *testing.T, jobType queue.JobType) *queue.Job {
	t.Helper()
	job, err := f.jobs.Create(context.Background(), jobType, f.chapter.ID)
	if err != nil {
		t.Fatalf("Create %s: %v", jobType, err)
	}
	return job
}

func (f *fixture) run(t *testing.T, job *queue.Job) error {
	t.Helper()
	handler, ok := f.registry[job.Type]
	if !ok {
		t.Fatalf("no handler for %s", job.Type)
	}
	return handler.Execute(context.Background(), job)
}

func (f *fixture) reload(t *testing.T) *manuscript.Chapter {
	t.Helper()
	chapter, err := f.pages.GetChapter(context.Background(), f.chapter.ID)
	if err != nil || chapter == nil {
		t.Fatalf("GetChapter: %v", err)
	}
	return chapter
}

func TestRegistryCoversEveryJobType(t *testing.T) {
	f := newFixture(t, nil)
	for _, jt := range queue.AllJobTypes() {
		handler, ok := f.registry[jt]
		if !ok {
			t.Fatalf("registry missing %s", jt)
		}
		if health := handler.HealthCheck(context.Background()); !health.Ready {
			t.Fatalf("%s not ready: %s", jt, health.Detail)
		}
	}
}

func TestGenerateWritesDraftAndResumesFromCheckpoint(t *testing.T) {
	f := newFixture(t, func(system, user string) (string, error) {
		if !strings.Contains(user, "finds the lamp already lit") {
			t.Errorf("generate prompt missing outline:\n%s", user)
		}
		return draftText, nil
	})
	job := f.job(t, queue.JobTypeGenerate)

	if err := f.run(t, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	chapter := f.reload(t)
	if chapter.Content != draftText || chapter.Status != manuscript.ChapterEditing || chapter.WordCount == 0 {
		t.Fatalf("unexpected chapter after generate: status=%s words=%d", chapter.Status, chapter.WordCount)
	}

	// A crash after the completion but before the job was marked complete
	// leaves the ledger intact; re-running must not call the service again.
	if err := f.run(t, job); err != nil {
		t.Fatalf("re-Execute: %v", err)
	}
	if calls := len(f.completer.Calls()); calls != 1 {
		t.Fatalf("expected 1 completion call, got %d", calls)
	}
}

func TestGenerateRequiresOutline(t *testing.T) {
	f := newFixture(t, nil)
	blank, err := f.pages.CreateChapter(context.Background(), manuscript.NewChapter{BookID: f.book.ID, Number: 2, Title: "Blank"})
	if err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	job, _ := f.jobs.Create(context.Background(), queue.JobTypeGenerate, blank.ID)
	if err := f.run(t, job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMissingChapterIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	job, _ := f.jobs.Create(context.Background(), queue.JobTypeSummary, "missing-chapter")
	if err := f.run(t, job); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReviewQueuesRevisionAndHandsOffFeedback(t *testing.T) {
	f := newFixture(t, func(system, user string) (string, error) {
		switch {
		case strings.Contains(system, "developmental editor"):
			return "```json\n{\"needs_revision\": false, \"score\": 5, \"summary\": \"Middle sags.\", \"issues\": [{\"severity\": \"high\", \"description\": \"pacing drags in the tower scene\"}]}\n```", nil
		case strings.Contains(system, "revising a chapter"):
			if !strings.Contains(user, "pacing drags in the tower scene") {
				t.Errorf("revision prompt missing feedback:\n%s", user)
			}
			return "Revised text.", nil
		}
		return "", errors.New("unexpected prompt")
	})
	f.withDraft(t)
	ctx := context.Background()
	review := f.job(t, queue.JobTypeReview)

	if err := f.run(t, review); err != nil {
		t.Fatalf("review Execute: %v", err)
	}
	revision, err := f.jobs.LatestByTypeAndTarget(ctx, queue.JobTypeRevision, f.chapter.ID)
	if err != nil || revision == nil {
		t.Fatalf("expected revision job, got %v err=%v", revision, err)
	}
	if !revision.CreatedAt.After(review.CreatedAt) {
		t.Fatal("revision must sort after the review")
	}
	if notes := f.reload(t).Notes; !strings.Contains(notes, "## Review") || !strings.Contains(notes, "pacing drags") {
		t.Fatalf("review notes not filed: %q", notes)
	}

	// A retried review must not queue a second revision.
	if err := f.run(t, review); err != nil {
		t.Fatalf("review re-Execute: %v", err)
	}
	revisions, _ := f.jobs.List(ctx, queue.ListFilter{TargetID: f.chapter.ID, Types: []queue.JobType{queue.JobTypeRevision}})
	if len(revisions) != 1 {
		t.Fatalf("expected one revision job, got %d", len(revisions))
	}

	// The reviewer's ledger is cleared on success; the handoff still works.
	if err := f.ledger.Clear(ctx, review.ID); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := f.run(t, revision); err != nil {
		t.Fatalf("revision Execute: %v", err)
	}
	if content := f.reload(t).Content; content != "Revised text." {
		t.Fatalf("revision not applied: %q", content)
	}
}

func TestReviewWithoutIssuesDoesNotQueueRevision(t *testing.T) {
	f := newFixture(t, func(string, string) (string, error) {
		return `{"needs_revision": false, "score": 9, "summary": "Clean.", "issues": [{"severity": "low", "description": "one clunky line"}]}`, nil
	})
	f.withDraft(t)
	if err := f.run(t, f.job(t, queue.JobTypeReview)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	revision, err := f.jobs.LatestByTypeAndTarget(context.Background(), queue.JobTypeRevision, f.chapter.ID)
	if err != nil || revision != nil {
		t.Fatalf("unexpected revision job %v err=%v", revision, err)
	}
}

func TestReviewRejectsMalformedFeedback(t *testing.T) {
	f := newFixture(t, func(string, string) (string, error) {
		return `{"needs_revision": "maybe", "issues": []}`, nil
	})
	f.withDraft(t)
	job := f.job(t, queue.JobTypeReview)
	if err := f.run(t, job); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	entries, err := f.ledger.Entries(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("invalid response should not stay cached, found %d entries", len(entries))
	}
}

func TestRevisionWithoutReviewFails(t *testing.T) {
	f := newFixture(t, nil)
	f.withDraft(t)
	if err := f.run(t, f.job(t, queue.JobTypeRevision)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNotesPassFilesFindingsUnderLabel(t *testing.T) {
	f := newFixture(t, func(system, user string) (string, error) {
		return "- The letter is dated spring but the frost implies winter.", nil
	})
	f.withDraft(t)
	if err := f.run(t, f.job(t, queue.JobTypeConsistency)); err != nil {
		t.Fatalf("consistency: %v", err)
	}
	if err := f.run(t, f.job(t, queue.JobTypeFactCheck)); err != nil {
		t.Fatalf("fact_check: %v", err)
	}
	notes := f.reload(t).Notes
	if !strings.Contains(notes, "## Consistency") || !strings.Contains(notes, "## Fact Check") {
		t.Fatalf("notes missing sections: %q", notes)
	}
}

func TestSummaryThenPropagateCompletesChapter(t *testing.T) {
	f := newFixture(t, func(system, user string) (string, error) {
		if strings.Contains(system, "running story state") {
			return "Mara: keeper, holds a letter from the future.", nil
		}
		return "Mara finds a letter from next spring.", nil
	})
	f.withDraft(t)
	ctx := context.Background()

	if err := f.run(t, f.job(t, queue.JobTypePropagateState)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("propagate before summary should fail validation, got %v", err)
	}
	if err := f.run(t, f.job(t, queue.JobTypeSummary)); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if err := f.run(t, f.job(t, queue.JobTypePropagateState)); err != nil {
		t.Fatalf("propagate_state: %v", err)
	}
	chapter := f.reload(t)
	if chapter.Summary == "" || chapter.Status != manuscript.ChapterCompleted {
		t.Fatalf("unexpected chapter: summary=%q status=%s", chapter.Summary, chapter.Status)
	}
	book, _ := f.pages.GetBook(ctx, f.book.ID)
	if !strings.Contains(book.StoryState, "letter from the future") {
		t.Fatalf("story state not propagated: %q", book.StoryState)
	}
}

func TestCompletionErrorsPassThrough(t *testing.T) {
	throttle := errors.New("http 429: slow down")
	f := newFixture(t, func(string, string) (string, error) { return "", throttle })
	f.withDraft(t)
	if err := f.run(t, f.job(t, queue.JobTypeAudience)); !errors.Is(err, throttle) {
		t.Fatalf("expected completion error to pass through, got %v", err)
	}
}

func TestParseReviewFeedbackForcesRevisionOnMediumIssues(t *testing.T) {
	feedback, err := editorial.ParseReviewFeedback(`Here you go: {"needs_revision": false, "issues": [{"severity": "medium", "description": "flat ending"}]}`)
	if err != nil {
		t.Fatalf("ParseReviewFeedback: %v", err)
	}
	if !feedback.NeedsRevision {
		t.Fatal("medium issue should force revision")
	}
	if _, err := editorial.ParseReviewFeedback("no json here"); err == nil {
		t.Fatal("expected error for prose response")
	}
}
