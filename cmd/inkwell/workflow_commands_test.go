package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"inkwell/internal/manuscript"
	"inkwell/internal/pipeline"
	"inkwell/internal/queue"
	"inkwell/internal/testsupport"
)

const testPlan = `title: The Lighthouse
premise: A keeper finds a letter from the future.
chapters:
  - number: 1
    title: arrival
    outline: The keeper arrives on the island in a storm, meets the departing keeper, and inherits a locked logbook with pages torn out.
  - number: 2
    title: the letter
    outline: A letter arrives in her own handwriting, dated one year ahead, warning her not to light the lamp on the solstice night.
    target_words: 2500
`

func importTestBook(t *testing.T, env *cliTestEnv) (*manuscript.Book, []*manuscript.Chapter) {
	t.Helper()
	planPath := filepath.Join(env.baseDir, "plan.yaml")
	testsupport.WriteText(t, planPath, testPlan)

	out, _, err := runCLI(t, []string{"book", "import", planPath}, env.configPath)
	if err != nil {
		t.Fatalf("book import: %v", err)
	}
	requireContains(t, out, "with 2 chapters")

	books, err := env.books.ListBooks(context.Background())
	if err != nil || len(books) != 1 {
		t.Fatalf("ListBooks = %d, %v", len(books), err)
	}
	chapters, err := env.books.ListChapters(context.Background(), books[0].ID)
	if err != nil || len(chapters) != 2 {
		t.Fatalf("ListChapters = %d, %v", len(chapters), err)
	}
	return books[0], chapters
}

func TestBookImportAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	book, chapters := importTestBook(t, env)

	if chapters[0].Title != "Arrival" || chapters[0].TargetWords != env.cfg.Pipeline.DefaultTargetWords {
		t.Fatalf("unexpected first chapter: %+v", chapters[0])
	}
	if chapters[1].TargetWords != 2500 {
		t.Fatalf("expected explicit target words, got %d", chapters[1].TargetWords)
	}

	out, _, err := runCLI(t, []string{"book", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("book list: %v", err)
	}
	requireContains(t, out, "The Lighthouse")
	requireContains(t, out, "0/2")

	out, _, err = runCLI(t, []string{"book", "chapters", book.ID}, env.configPath)
	if err != nil {
		t.Fatalf("book chapters: %v", err)
	}
	requireContains(t, out, "The Letter")
}

func TestWorkflowStartQueuesEveryStage(t *testing.T) {
	env := setupCLITestEnv(t)
	_, chapters := importTestBook(t, env)
	first := chapters[0]

	out, _, err := runCLI(t, []string{"workflow", "start", first.ID}, env.configPath)
	if err != nil {
		t.Fatalf("workflow start: %v", err)
	}
	requireContains(t, out, "Queued 12 jobs")

	if _, _, err := runCLI(t, []string{"workflow", "start", first.ID}, env.configPath); err == nil {
		t.Fatal("expected a second start to be rejected while jobs are active")
	}

	out, _, err = runCLI(t, []string{"--json", "workflow", "status", first.ID}, env.configPath)
	if err != nil {
		t.Fatalf("workflow status: %v", err)
	}
	var status struct {
		Status string    `json:"status"`
		Jobs   []jobView `json:"jobs"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if status.Status != string(manuscript.ChapterWriting) || len(status.Jobs) != len(pipeline.Stages) {
		t.Fatalf("unexpected status: %s with %d jobs", status.Status, len(status.Jobs))
	}

	if _, _, err := runCLI(t, []string{"workflow", "regenerate", first.ID}, env.configPath); err == nil {
		t.Fatal("expected regenerate to refuse while jobs are active")
	}
}

func TestWorkflowStartAllSkipsActiveChapters(t *testing.T) {
	env := setupCLITestEnv(t)
	book, chapters := importTestBook(t, env)

	if _, err := env.jobs.Create(context.Background(), queue.JobTypeReview, chapters[1].ID); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, _, err := runCLI(t, []string{"workflow", "start-all", book.ID}, env.configPath)
	if err != nil {
		t.Fatalf("workflow start-all: %v", err)
	}
	requireContains(t, out, "12 jobs queued")
	requireContains(t, out, "skipped")

	if _, _, err := runCLI(t, []string{"workflow", "start-all", "missing"}, env.configPath); err == nil {
		t.Fatal("expected unknown book to fail")
	}
}

func TestChapterLockAndExport(t *testing.T) {
	env := setupCLITestEnv(t)
	book, chapters := importTestBook(t, env)

	out, _, err := runCLI(t, []string{"chapter", "lock", chapters[0].ID}, env.configPath)
	if err != nil {
		t.Fatalf("chapter lock: %v", err)
	}
	requireContains(t, out, "locked: yes")
	locked, _ := env.books.GetChapter(context.Background(), chapters[0].ID)
	if !locked.Locked {
		t.Fatal("expected chapter to be locked")
	}
	if _, _, err := runCLI(t, []string{"chapter", "unlock", chapters[0].ID}, env.configPath); err != nil {
		t.Fatalf("chapter unlock: %v", err)
	}
	if _, _, err := runCLI(t, []string{"chapter", "lock", "missing"}, env.configPath); err == nil {
		t.Fatal("expected unknown chapter to fail")
	}

	target := filepath.Join(env.baseDir, "report.xlsx")
	out, _, err = runCLI(t, []string{"export", book.ID, "--output", target}, env.configPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, out, "Wrote report")

	data, err := os.Open(target)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer data.Close()
	f, err := excelize.OpenReader(data)
	if err != nil {
		t.Fatalf("read workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Chapters")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 || !strings.Contains(strings.Join(rows[1], " "), "Arrival") {
		t.Fatalf("unexpected chapter rows: %v", rows)
	}
}
