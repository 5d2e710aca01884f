package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusPaused,
	StatusFailed,
}

// AllStatuses returns every job status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a Status, ignoring case.
func ParseStatus(value string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// JobType names the stage a job runs. The set is closed.
type JobType string

const (
	JobTypeGenerate       JobType = "generate"
	JobTypeReview         JobType = "review"
	JobTypeRevision       JobType = "revision"
	JobTypeLineEdit       JobType = "line_edit"
	JobTypeConsistency    JobType = "consistency"
	JobTypeFactCheck      JobType = "fact_check"
	JobTypeFinalCheck     JobType = "final_check"
	JobTypeSensitivity    JobType = "sensitivity"
	JobTypeResearch       JobType = "research"
	JobTypeAudience       JobType = "audience"
	JobTypeOpening        JobType = "opening"
	JobTypeSummary        JobType = "summary"
	JobTypePropagateState JobType = "propagate_state"
)

var allJobTypes = []JobType{
	JobTypeGenerate,
	JobTypeReview,
	JobTypeRevision,
	JobTypeLineEdit,
	JobTypeConsistency,
	JobTypeFactCheck,
	JobTypeFinalCheck,
	JobTypeSensitivity,
	JobTypeResearch,
	JobTypeAudience,
	JobTypeOpening,
	JobTypeSummary,
	JobTypePropagateState,
}

// AllJobTypes returns the closed set of job types.
func AllJobTypes() []JobType {
	out := make([]JobType, len(allJobTypes))
	copy(out, allJobTypes)
	return out
}

// ParseJobType validates value against the closed set of job types.
func ParseJobType(value string) (JobType, bool) {
	candidate := JobType(strings.ToLower(strings.TrimSpace(value)))
	for _, jt := range allJobTypes {
		if jt == candidate {
			return jt, true
		}
	}
	return "", false
}

// Job is a unit of schedulable work against one target entity.
type Job struct {
	ID            string
	Type          JobType
	TargetID      string
	Status        Status
	Attempts      int
	Error         string
	Checkpoint    string
	CreatedAt     time.Time
	StartedAt     time.Time
	CompletedAt   time.Time
	ResumeAt      time.Time
	LastHeartbeat time.Time
}

// IsTerminal reports whether the job will not run again without operator action.
func (j *Job) IsTerminal() bool {
	return j != nil && (j.Status == StatusCompleted || j.Status == StatusFailed)
}

// Checkpoint is one progress marker recorded by a running job.
type Checkpoint struct {
	JobID      string
	Step       string
	Payload    string
	RecordedAt time.Time
}

// Stats counts jobs per status.
type Stats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Paused    int `json:"paused"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Count returns the number of jobs in status.
func (s Stats) Count(status Status) int {
	switch status {
	case StatusPending:
		return s.Pending
	case StatusRunning:
		return s.Running
	case StatusCompleted:
		return s.Completed
	case StatusPaused:
		return s.Paused
	case StatusFailed:
		return s.Failed
	default:
		return 0
	}
}

// HealthSummary aggregates queue state for diagnostic output.
type HealthSummary struct {
	Stats
	Dialect          string        `json:"dialect"`
	OldestPendingAge time.Duration `json:"oldest_pending_age"`
	StaleRunning     int           `json:"stale_running"`
	NextResumeAt     time.Time     `json:"next_resume_at,omitzero"`
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Statuses []Status
	TargetID string
	Types    []JobType
	Limit    int
	// NewestFirst orders by created_at descending instead of claim order.
	NewestFirst bool
}
