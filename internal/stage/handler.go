package stage

import (
	"context"

	"inkwell/internal/queue"
)

// Handler describes the contract the queue worker needs from each stage.
// Execute must not change the job's status; the worker owns every transition.
type Handler interface {
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}

// Registry maps each job type to the handler that runs it.
type Registry map[queue.JobType]Handler
