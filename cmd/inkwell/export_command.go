package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"inkwell/internal/report"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <bookID>",
		Short: "Write a chapter and job report workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(output)
			if target == "" {
				target = args[0] + ".xlsx"
			}
			target, err := filepath.Abs(target)
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				svc := report.NewService(s.jobs, s.books, s.logger)
				if err := svc.WriteBookXLSX(cmd.Context(), args[0], target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote report to %s\n", target)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination .xlsx file (default <bookID>.xlsx)")
	return cmd
}
