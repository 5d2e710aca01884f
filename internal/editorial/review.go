package editorial

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"inkwell/internal/logging"
	"inkwell/internal/queue"
	"inkwell/internal/services"
	"inkwell/internal/services/llm"
	"inkwell/internal/stage"
)

// ReviewFeedback is the structured output of the structural review stage and
// the payload the revision stage reads back.
type ReviewFeedback struct {
	NeedsRevision bool          `json:"needs_revision"`
	Score         int           `json:"score"`
	Summary       string        `json:"summary"`
	Issues        []ReviewIssue `json:"issues"`
}

// ReviewIssue is one problem the reviewer found.
type ReviewIssue struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

const reviewSchema = `{
  "type": "object",
  "required": ["needs_revision", "issues"],
  "properties": {
    "needs_revision": {"type": "boolean"},
    "score": {"type": "integer", "minimum": 1, "maximum": 10},
    "summary": {"type": "string"},
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["severity", "description"],
        "properties": {
          "severity": {"enum": ["low", "medium", "high"]},
          "description": {"type": "string", "minLength": 1},
          "suggestion": {"type": "string"}
        }
      }
    }
  }
}`

var compileReviewSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("review.json", bytes.NewReader([]byte(reviewSchema))); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("review.json")
})

// ParseReviewFeedback extracts the JSON object from a completion, validates it
// against the review schema, and decodes it. Any medium or high issue forces
// NeedsRevision.
func ParseReviewFeedback(content string) (ReviewFeedback, error) {
	schema, err := compileReviewSchema()
	if err != nil {
		return ReviewFeedback{}, fmt.Errorf("compile review schema: %w", err)
	}
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return ReviewFeedback{}, errors.New("review response contains no JSON object")
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return ReviewFeedback{}, fmt.Errorf("unmarshal review: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return ReviewFeedback{}, fmt.Errorf("review does not match schema: %w", err)
	}
	var feedback ReviewFeedback
	if err := json.Unmarshal([]byte(raw), &feedback); err != nil {
		return ReviewFeedback{}, fmt.Errorf("decode review: %w", err)
	}
	for _, issue := range feedback.Issues {
		if issue.Severity == "medium" || issue.Severity == "high" {
			feedback.NeedsRevision = true
			break
		}
	}
	return feedback, nil
}

// reviewHandler evaluates structure and queues a revision when needed.
type reviewHandler struct{ base }

// NewReviewHandler builds the structural review stage.
func NewReviewHandler(env Env) stage.Handler {
	return &reviewHandler{newBase(env, queue.JobTypeReview)}
}

func (h *reviewHandler) HealthCheck(ctx context.Context) stage.Health {
	if h.env.Jobs == nil {
		return stage.Unhealthy(h.name(), "job store not configured")
	}
	if _, err := compileReviewSchema(); err != nil {
		return stage.Unhealthy(h.name(), err.Error())
	}
	return h.base.HealthCheck(ctx)
}

func (h *reviewHandler) Execute(ctx context.Context, job *queue.Job) error {
	chapter, book, err := h.load(ctx, job)
	if err != nil {
		return err
	}
	if err := h.requireContent(chapter); err != nil {
		return err
	}
	response, err := h.complete(ctx, job, StepCompletionReceived, h.data(chapter, book))
	if err != nil {
		return err
	}
	feedback, err := ParseReviewFeedback(response)
	if err != nil {
		// Drop the cached response so the retry asks again.
		if clearErr := h.env.Ledger.Clear(ctx, job.ID); clearErr != nil {
			h.logger.Warn("clear invalid review checkpoint", logging.Error(clearErr))
		}
		return services.Wrap(services.ErrExternalTool, h.name(), "parse feedback", "invalid review response", err)
	}
	// Recorded last so the job row mirrors the feedback for the handoff.
	if err := h.env.Ledger.Record(ctx, job.ID, StepFeedback, feedback); err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "record checkpoint", StepFeedback, err)
	}
	if err := h.env.Manuscript.AppendNotes(ctx, chapter.ID, stage.Label(h.jobType), formatFeedback(feedback)); err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "save notes", chapter.ID, err)
	}
	if !feedback.NeedsRevision {
		h.logger.Info("review passed", logging.String(logging.FieldJobID, job.ID), logging.Int("score", feedback.Score))
		return nil
	}
	return h.queueRevision(ctx, job, feedback)
}

// queueRevision inserts at most one revision per review run; a retried review
// finds the revision it already created.
func (h *reviewHandler) queueRevision(ctx context.Context, job *queue.Job, feedback ReviewFeedback) error {
	latest, err := h.env.Jobs.LatestByTypeAndTarget(ctx, queue.JobTypeRevision, job.TargetID)
	if err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "check revision", job.TargetID, err)
	}
	if latest != nil && latest.CreatedAt.After(job.CreatedAt) {
		return nil
	}
	revision, err := h.env.Jobs.InsertAfterCurrent(ctx, job, queue.JobTypeRevision)
	if err != nil {
		return services.Wrap(services.ErrTransient, h.name(), "queue revision", job.TargetID, err)
	}
	h.logger.Info("revision queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("revision_job_id", revision.ID),
		logging.Int("issues", len(feedback.Issues)),
	)
	return nil
}

func formatFeedback(feedback ReviewFeedback) string {
	var b strings.Builder
	if feedback.Score > 0 {
		fmt.Fprintf(&b, "Score: %d/10\n", feedback.Score)
	}
	if s := strings.TrimSpace(feedback.Summary); s != "" {
		b.WriteString(s)
		b.WriteString("\n")
	}
	for _, issue := range feedback.Issues {
		fmt.Fprintf(&b, "- [%s] %s", issue.Severity, issue.Description)
		if issue.Suggestion != "" {
			fmt.Fprintf(&b, " (suggestion: %s)", issue.Suggestion)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "No issues."
	}
	return strings.TrimSpace(b.String())
}
