package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"inkwell/internal/config"
	"inkwell/internal/daemon"
	"inkwell/internal/preflight"
	"inkwell/internal/queue"
)

type statusReport struct {
	DaemonRunning bool               `json:"daemon_running"`
	Database      string             `json:"database"`
	Queue         queue.Stats        `json:"queue"`
	Checks        []preflight.Result `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and preflight status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				report, err := collectStatus(cmd.Context(), s)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(statusLines(report, shouldColorize(cmd.OutOrStdout())), "\n"))
				return nil
			})
		},
	}
}

func collectStatus(ctx context.Context, s *stores) (statusReport, error) {
	running, err := daemon.IsRunning(s.cfg.LockPath())
	if err != nil {
		return statusReport{}, fmt.Errorf("probe daemon lock: %w", err)
	}
	stats, err := s.jobs.Stats(ctx)
	if err != nil {
		return statusReport{}, err
	}
	checks := preflight.RunAll(ctx, s.cfg)
	checks = append(checks, preflight.CheckQueue(ctx, s.jobs, s.cfg.HeartbeatTimeout()))
	return statusReport{
		DaemonRunning: running,
		Database:      databaseLabel(s.cfg),
		Queue:         stats,
		Checks:        checks,
	}, nil
}

func databaseLabel(cfg *config.Config) string {
	if cfg.Database.Driver == "postgres" {
		return "postgres"
	}
	return cfg.DatabasePath()
}

func statusLines(report statusReport, colorize bool) []string {
	lines := renderSectionHeader("Inkwell", colorize)
	if report.DaemonRunning {
		lines = append(lines, renderStatusLine("Daemon", statusOK, "Running", colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running (start with `inkwell run`)", colorize))
	}
	lines = append(lines, renderStatusLine("Database", statusInfo, report.Database, colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Queue", colorize)...)
	for _, status := range []queue.Status{
		queue.StatusPending,
		queue.StatusRunning,
		queue.StatusPaused,
		queue.StatusCompleted,
		queue.StatusFailed,
	} {
		count := report.Queue.Count(status)
		kind := statusInfo
		if count > 0 {
			kind = jobStatusKind(status)
		}
		lines = append(lines, renderStatusLine(titleStatus(status), kind, fmt.Sprintf("%d", count), colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, check := range report.Checks {
		lines = append(lines, renderStatusLine(check.Name, checkKind(check.Passed), check.Detail, colorize))
	}
	return lines
}

func titleStatus(status queue.Status) string {
	value := string(status)
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
