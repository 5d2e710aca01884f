package stage

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"inkwell/internal/queue"
	"inkwell/internal/services"
)

// Label renders a job type for display, e.g. "line_edit" -> "Line Edit".
func Label(jobType queue.JobType) string {
	raw := strings.TrimSpace(strings.ReplaceAll(string(jobType), "_", " "))
	if raw == "" {
		return ""
	}
	return cases.Title(language.Und).String(raw)
}

// RequireTarget rejects jobs without a target id with services.ErrValidation.
func RequireTarget(job *queue.Job) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "stage", "validate job", "nil job", nil)
	}
	if strings.TrimSpace(job.TargetID) == "" {
		return services.Wrap(services.ErrValidation, string(job.Type), "validate job", "job has no target id", nil)
	}
	return nil
}
