// Package report exports a book's chapters and workflow history as XLSX.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"inkwell/internal/logging"
	"inkwell/internal/manuscript"
	"inkwell/internal/queue"
	"inkwell/internal/services"
	"inkwell/internal/textanalysis"
)

const (
	chaptersSheet = "Chapters"
	jobsSheet     = "Jobs"
	timeLayout    = "2006-01-02 15:04:05"
)

// Service produces XLSX workbooks from the manuscript and job stores.
type Service struct {
	jobs   *queue.Store
	books  *manuscript.Store
	logger *slog.Logger
}

// NewService constructs an export service.
func NewService(jobs *queue.Store, books *manuscript.Store, logger *slog.Logger) *Service {
	return &Service{jobs: jobs, books: books, logger: logging.NewComponentLogger(logger, "report")}
}

// ExportBookXLSX returns a workbook with one row per chapter on the Chapters
// sheet and one row per job on the Jobs sheet.
func (s *Service) ExportBookXLSX(ctx context.Context, bookID string) ([]byte, error) {
	start := time.Now()

	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, services.Wrap(services.ErrNotFound, "report", "export", fmt.Sprintf("book %s not found", bookID), nil)
	}
	chapters, err := s.books.ListChapters(ctx, bookID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(chapters))
	numbers := make(map[string]int, len(chapters))
	for _, ch := range chapters {
		ids = append(ids, ch.ID)
		numbers[ch.ID] = ch.Number
	}
	jobs, err := s.jobs.ListByTargets(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", chaptersSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(jobsSheet); err != nil {
		return nil, err
	}

	s.writeChapters(f, chapters, jobs)
	writeJobs(f, jobs, numbers)

	if index, err := f.GetSheetIndex(chaptersSheet); err == nil {
		f.SetActiveSheet(index)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: book.Title, Creator: "inkwell"}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("book exported",
		logging.String("book_id", book.ID),
		logging.Int("chapters", len(chapters)),
		logging.Int("jobs", len(jobs)),
		logging.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		logging.String(logging.FieldEventType, "export_complete"),
	)
	return buf.Bytes(), nil
}

// WriteBookXLSX exports a book to path.
func (s *Service) WriteBookXLSX(ctx context.Context, bookID, path string) error {
	data, err := s.ExportBookXLSX(ctx, bookID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Service) writeChapters(f *excelize.File, chapters []*manuscript.Chapter, jobs []*queue.Job) {
	headers := []string{
		"Chapter", "Title", "Status", "Words", "Target", "Locked",
		"Jobs", "Failed Jobs", "Attempts", "Flesch", "Passive Ratio", "Adverb Density", "Outline Match",
	}
	writeHeader(f, chaptersSheet, headers)

	type tally struct{ jobs, failed, attempts int }
	totals := make(map[string]*tally, len(chapters))
	for _, job := range jobs {
		t := totals[job.TargetID]
		if t == nil {
			t = &tally{}
			totals[job.TargetID] = t
		}
		t.jobs++
		t.attempts += job.Attempts
		if job.Status == queue.StatusFailed {
			t.failed++
		}
	}

	for i, ch := range chapters {
		row := i + 2
		t := totals[ch.ID]
		if t == nil {
			t = &tally{}
		}
		values := []any{ch.Number, ch.Title, string(ch.Status), ch.WordCount, ch.TargetWords, ch.Locked, t.jobs, t.failed, t.attempts}
		if ch.Content != "" {
			metrics := textanalysis.Analyze(ch.Content)
			values = append(values, metrics.FleschReadingEase, metrics.PassiveRatio, metrics.AdverbDensity,
				textanalysis.OutlineMatch(ch.Outline, ch.Content))
		}
		writeRow(f, chaptersSheet, row, values)
	}

	_ = f.SetColWidth(chaptersSheet, "A", "A", 9)
	_ = f.SetColWidth(chaptersSheet, "B", "B", 32)
	_ = f.SetColWidth(chaptersSheet, "C", "C", 12)
	_ = f.SetColWidth(chaptersSheet, "D", "M", 13)
}

func writeJobs(f *excelize.File, jobs []*queue.Job, numbers map[string]int) {
	headers := []string{"Chapter", "Job ID", "Type", "Status", "Attempts", "Created", "Started", "Completed", "Error"}
	writeHeader(f, jobsSheet, headers)

	for i, job := range jobs {
		writeRow(f, jobsSheet, i+2, []any{
			numbers[job.TargetID],
			job.ID,
			string(job.Type),
			string(job.Status),
			job.Attempts,
			formatTime(job.CreatedAt),
			formatTime(job.StartedAt),
			formatTime(job.CompletedAt),
			truncate(job.Error, 200),
		})
	}

	_ = f.SetColWidth(jobsSheet, "A", "A", 9)
	_ = f.SetColWidth(jobsSheet, "B", "B", 38)
	_ = f.SetColWidth(jobsSheet, "C", "D", 16)
	_ = f.SetColWidth(jobsSheet, "E", "E", 9)
	_ = f.SetColWidth(jobsSheet, "F", "H", 20)
	_ = f.SetColWidth(jobsSheet, "I", "I", 60)
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	writeRow(f, sheet, 1, values)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
