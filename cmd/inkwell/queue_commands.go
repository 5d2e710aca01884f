package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"inkwell/internal/queue"
	"inkwell/internal/services"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var target string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in claim order",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				jobs, err := s.jobs.List(cmd.Context(), queue.ListFilter{
					Statuses: statuses,
					TargetID: strings.TrimSpace(target),
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, jobViews(jobs))
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Target", "Status", "Attempts", "Created", "Error"},
					buildJobRows(jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVar(&target, "target", "", "Only show jobs for this chapter")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs to show")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [jobID...]",
		Short: "Queue fresh copies of failed jobs (all failed jobs when no IDs are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				ids := args
				if len(ids) == 0 {
					failed, err := s.jobs.List(cmd.Context(), queue.ListFilter{Statuses: []queue.Status{queue.StatusFailed}})
					if err != nil {
						return err
					}
					for _, job := range failed {
						ids = append(ids, job.ID)
					}
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No failed jobs to retry")
					return nil
				}

				out := cmd.OutOrStdout()
				retried := 0
				var errs []error
				for _, id := range ids {
					job, err := s.jobs.Requeue(cmd.Context(), id)
					if err != nil {
						errs = append(errs, fmt.Errorf("retry %s: %w", id, err))
						continue
					}
					retried++
					fmt.Fprintf(out, "Job %s requeued as %s\n", id, job.ID)
				}
				fmt.Fprintf(out, "Retried %d failed jobs\n", retried)
				return errors.Join(errs...)
			})
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume [jobID...]",
		Short: "Resume paused jobs before their cool-down elapses (all paused jobs when no IDs are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				n, err := s.jobs.Resume(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resumed %d paused jobs\n", n)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completed bool
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clear [jobID...]",
		Short: "Remove jobs by ID, or completed jobs with --completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !completed && len(args) == 0 {
				return fmt.Errorf("specify job IDs or --completed")
			}
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				out := cmd.OutOrStdout()
				if completed {
					var cutoff time.Time
					if olderThan > 0 {
						cutoff = time.Now().Add(-olderThan)
					}
					n, err := s.jobs.ClearCompleted(cmd.Context(), cutoff)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed jobs\n", n)
				}
				for _, id := range args {
					removed, err := s.jobs.Remove(cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("remove %s: %w", id, err)
					}
					if removed {
						fmt.Fprintf(out, "Job %s removed\n", id)
					} else {
						fmt.Fprintf(out, "Job %s not found or running\n", id)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completed, "completed", false, "Remove completed jobs")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only clear jobs completed longer ago than this")
	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <type> <chapterID>",
		Short: "Queue a single job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				chapter, err := s.books.GetChapter(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				if chapter == nil {
					return services.Wrap(services.ErrNotFound, "cli", "queue add", fmt.Sprintf("chapter %s not found", args[1]), nil)
				}
				id, err := s.orchestrator.CreateJob(cmd.Context(), args[0], chapter.ID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]string{"job_id": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %s for chapter %d\n", strings.ToLower(args[0]), id, chapter.Number)
				return nil
			})
		},
	}
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

type jobView struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	TargetID    string     `json:"target_id"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ResumeAt    *time.Time `json:"resume_at,omitempty"`
}

func jobViews(jobs []*queue.Job) []jobView {
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobView{
			ID:          job.ID,
			Type:        string(job.Type),
			TargetID:    job.TargetID,
			Status:      string(job.Status),
			Attempts:    job.Attempts,
			Error:       job.Error,
			CreatedAt:   job.CreatedAt,
			StartedAt:   optionalTime(job.StartedAt),
			CompletedAt: optionalTime(job.CompletedAt),
			ResumeAt:    optionalTime(job.ResumeAt),
		})
	}
	return views
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func buildJobRows(jobs []*queue.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		detail := job.Error
		if job.Status == queue.StatusPaused && !job.ResumeAt.IsZero() {
			detail = "resumes " + formatTimestamp(job.ResumeAt)
		}
		rows = append(rows, []string{
			job.ID,
			string(job.Type),
			job.TargetID,
			string(job.Status),
			strconv.Itoa(job.Attempts),
			formatTimestamp(job.CreatedAt),
			truncate(detail, 60),
		})
	}
	return rows
}

func truncate(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
