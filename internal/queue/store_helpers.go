package queue

import (
	"database/sql"

	"inkwell/internal/database"
)

const jobColumns = "id, type, target_id, status, attempts, error, checkpoint, created_at, started_at, completed_at, resume_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job        Job
		jobType    string
		status     string
		errMsg     sql.NullString
		checkpoint sql.NullString
		created    sql.NullString
		started    sql.NullString
		completed  sql.NullString
		resume     sql.NullString
		heartbeat  sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&jobType,
		&job.TargetID,
		&status,
		&job.Attempts,
		&errMsg,
		&checkpoint,
		&created,
		&started,
		&completed,
		&resume,
		&heartbeat,
	); err != nil {
		return nil, err
	}
	job.Type = JobType(jobType)
	job.Status = Status(status)
	job.Error = errMsg.String
	job.Checkpoint = checkpoint.String
	job.CreatedAt = database.ParseTime(created)
	job.StartedAt = database.ParseTime(started)
	job.CompletedAt = database.ParseTime(completed)
	job.ResumeAt = database.ParseTime(resume)
	job.LastHeartbeat = database.ParseTime(heartbeat)
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	return args
}

func typeArgs(types []JobType) []any {
	args := make([]any, len(types))
	for i, jt := range types {
		args[i] = string(jt)
	}
	return args
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
