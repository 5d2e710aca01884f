package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"inkwell/internal/pipeline"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:   "workflow",
		Short: "Queue and inspect chapter pipelines",
	}

	workflowCmd.AddCommand(newWorkflowStartCommand(ctx))
	workflowCmd.AddCommand(newWorkflowStartAllCommand(ctx))
	workflowCmd.AddCommand(newWorkflowStatusCommand(ctx))
	workflowCmd.AddCommand(newWorkflowRegenerateCommand(ctx))

	return workflowCmd
}

func newWorkflowStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start <chapterID>",
		Short: "Queue the full pipeline for a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				result, err := s.orchestrator.QueueUnitWorkflow(cmd.Context(), args[0])
				if ctx.jsonOutput() && err == nil {
					return writeJSON(cmd, result)
				}
				printWarnings(cmd.OutOrStdout(), result.Warnings)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d jobs for chapter %s\n", len(result.JobIDs), result.ChapterID)
				return nil
			})
		},
	}
}

func newWorkflowStartAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start-all <bookID>",
		Short: "Queue pipelines for every pending chapter of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				results, err := s.orchestrator.QueueAllPendingUnits(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, results)
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending chapters")
					return nil
				}
				rows := make([][]string, 0, len(results))
				for _, result := range results {
					outcome := fmt.Sprintf("%d jobs queued", len(result.JobIDs))
					if result.Skipped != "" {
						outcome = "skipped: " + result.Skipped
					}
					rows = append(rows, []string{result.ChapterID, outcome, strconv.Itoa(len(result.Warnings))})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Chapter", "Outcome", "Warnings"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newWorkflowStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <chapterID>",
		Short: "Show a chapter's progress and job history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				status, err := s.orchestrator.GetWorkflowStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, struct {
						pipeline.WorkflowStatus
						Jobs []jobView `json:"jobs"`
					}{status, jobViews(status.Jobs)})
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader(status.Title, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Status", statusInfo, string(status.Status), colorize))
				fmt.Fprintln(out, renderStatusLine("Words", statusInfo, strconv.Itoa(status.WordCount), colorize))
				fmt.Fprintln(out, renderStatusLine("Locked", statusInfo, yesNo(status.Locked), colorize))
				if len(status.Jobs) > 0 {
					fmt.Fprintln(out, renderTable(
						[]string{"ID", "Type", "Target", "Status", "Attempts", "Created", "Error"},
						buildJobRows(status.Jobs),
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
					))
				}
				printWarnings(out, status.Warnings)
				return nil
			})
		},
	}
}

func newWorkflowRegenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <chapterID>",
		Short: "Discard a chapter's draft and queue its pipeline again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				result, err := s.orchestrator.RegenerateUnit(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				printWarnings(cmd.OutOrStdout(), result.Warnings)
				fmt.Fprintf(cmd.OutOrStdout(), "Regenerating chapter %s (%d jobs queued)\n", result.ChapterID, len(result.JobIDs))
				return nil
			})
		},
	}
}

func printWarnings(out io.Writer, warnings []pipeline.Warning) {
	if len(warnings) == 0 {
		return
	}
	colorize := shouldColorize(out)
	for _, w := range warnings {
		kind := statusInfo
		switch w.Severity {
		case pipeline.SeverityHigh:
			kind = statusError
		case pipeline.SeverityMedium:
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(w.Check, kind, w.Message, colorize))
	}
}
