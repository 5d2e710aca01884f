package editorial

import (
	"inkwell/internal/queue"
	"inkwell/internal/stage"
)

// NewRegistry wires a handler for every job type.
func NewRegistry(env Env) stage.Registry {
	registry := stage.Registry{
		queue.JobTypeGenerate:       NewGenerateHandler(env),
		queue.JobTypeReview:         NewReviewHandler(env),
		queue.JobTypeRevision:       NewRevisionHandler(env),
		queue.JobTypeLineEdit:       NewLineEditHandler(env),
		queue.JobTypeSummary:        NewSummaryHandler(env),
		queue.JobTypePropagateState: NewPropagateStateHandler(env),
	}
	for _, jt := range []queue.JobType{
		queue.JobTypeConsistency,
		queue.JobTypeFactCheck,
		queue.JobTypeFinalCheck,
		queue.JobTypeSensitivity,
		queue.JobTypeResearch,
		queue.JobTypeAudience,
		queue.JobTypeOpening,
	} {
		registry[jt] = NewNotesHandler(env, jt)
	}
	return registry
}
