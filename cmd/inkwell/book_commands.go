package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"inkwell/internal/manuscript"
	"inkwell/internal/services"
)

func newBookCommand(ctx *commandContext) *cobra.Command {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Import and list books",
	}

	bookCmd.AddCommand(newBookImportCommand(ctx))
	bookCmd.AddCommand(newBookListCommand(ctx))
	bookCmd.AddCommand(newBookChaptersCommand(ctx))

	return bookCmd
}

func newBookImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <plan.yaml>",
		Short: "Create a book and its chapters from a YAML plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := manuscript.LoadPlan(args[0])
			if err != nil {
				return err
			}
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				book, chapters, err := s.books.ImportPlan(cmd.Context(), plan, s.cfg.Pipeline.DefaultTargetWords)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, struct {
						Book     *manuscript.Book      `json:"book"`
						Chapters []*manuscript.Chapter `json:"chapters"`
					}{book, chapters})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %q as %s with %d chapters\n", book.Title, book.ID, len(chapters))
				return nil
			})
		},
	}
}

func newBookListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List books",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				books, err := s.books.ListBooks(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, books)
				}
				if len(books) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No books imported")
					return nil
				}
				rows := make([][]string, 0, len(books))
				for _, book := range books {
					chapters, err := s.books.ListChapters(cmd.Context(), book.ID)
					if err != nil {
						return err
					}
					done := 0
					for _, ch := range chapters {
						if ch.Status == manuscript.ChapterCompleted {
							done++
						}
					}
					rows = append(rows, []string{
						book.ID,
						book.Title,
						fmt.Sprintf("%d/%d", done, len(chapters)),
						formatTimestamp(book.CreatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Completed", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newBookChaptersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "chapters <bookID>",
		Short: "List a book's chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				book, err := s.books.GetBook(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if book == nil {
					return services.Wrap(services.ErrNotFound, "cli", "book chapters", fmt.Sprintf("book %s not found", args[0]), nil)
				}
				chapters, err := s.books.ListChapters(cmd.Context(), book.ID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, chapters)
				}
				rows := make([][]string, 0, len(chapters))
				for _, ch := range chapters {
					rows = append(rows, []string{
						strconv.Itoa(ch.Number),
						ch.ID,
						ch.Title,
						string(ch.Status),
						fmt.Sprintf("%d/%d", ch.WordCount, ch.TargetWords),
						yesNo(ch.Locked),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"#", "ID", "Title", "Status", "Words", "Locked"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newChapterCommand(ctx *commandContext) *cobra.Command {
	chapterCmd := &cobra.Command{
		Use:   "chapter",
		Short: "Manage individual chapters",
	}

	chapterCmd.AddCommand(newChapterLockCommand(ctx, "lock", true))
	chapterCmd.AddCommand(newChapterLockCommand(ctx, "unlock", false))

	return chapterCmd
}

func newChapterLockCommand(ctx *commandContext, use string, locked bool) *cobra.Command {
	short := "Protect a chapter from edits by pipeline stages"
	if !locked {
		short = "Allow pipeline stages to edit a chapter again"
	}
	return &cobra.Command{
		Use:   use + " <chapterID>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd.Context(), func(s *stores) error {
				if err := s.books.SetLocked(cmd.Context(), args[0], locked); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Chapter %s locked: %s\n", args[0], yesNo(locked))
				return nil
			})
		},
	}
}
