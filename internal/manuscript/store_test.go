package manuscript_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"inkwell/internal/manuscript"
	"inkwell/internal/services"
	"inkwell/internal/testsupport"
)

func newStore(t *testing.T) *manuscript.Store {
	t.Helper()
	return manuscript.NewStore(testsupport.MustOpenDB(t, testsupport.NewConfig(t)))
}

func TestChapterLifecycle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	book := testsupport.SeedBook(t, store, "The Keeper")
	first := testsupport.SeedChapter(t, store, book.ID, 1)
	second := testsupport.SeedChapter(t, store, book.ID, 2)

	if err := store.UpdateContent(ctx, first.ID, "  The lamp was already lit when she reached the top.  "); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if err := store.SetStatus(ctx, first.ID, manuscript.ChapterCompleted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, err := store.GetChapter(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetChapter: %v", err)
	}
	if got.WordCount != 10 || got.Status != manuscript.ChapterCompleted || strings.HasPrefix(got.Content, " ") {
		t.Fatalf("unexpected chapter after update: %+v", got)
	}

	prev, err := store.PreviousChapter(ctx, second)
	if err != nil || prev == nil || prev.ID != first.ID {
		t.Fatalf("PreviousChapter = %v, %v", prev, err)
	}
	if none, err := store.PreviousChapter(ctx, first); err != nil || none != nil {
		t.Fatalf("first chapter should have no predecessor, got %v, %v", none, err)
	}

	if err := store.ResetChapter(ctx, first.ID); err != nil {
		t.Fatalf("ResetChapter: %v", err)
	}
	reset, _ := store.GetChapter(ctx, first.ID)
	if reset.Content != "" || reset.WordCount != 0 || reset.Status != manuscript.ChapterPending {
		t.Fatalf("reset left state behind: %+v", reset)
	}

	chapters, err := store.ListChapters(ctx, book.ID)
	if err != nil || len(chapters) != 2 || chapters[0].Number != 1 {
		t.Fatalf("ListChapters = %v, %v", chapters, err)
	}
}

func TestNotesReplaceSectionsByHeading(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	book := testsupport.SeedBook(t, store, "The Keeper")
	chapter := testsupport.SeedChapter(t, store, book.ID, 1)

	for _, step := range []struct{ heading, body string }{
		{"Review", "Tighten the opening."},
		{"Fact check", "Lighthouse lamps used kerosene until 1920."},
		{"Review", "Opening is tight now."},
	} {
		if err := store.AppendNotes(ctx, chapter.ID, step.heading, step.body); err != nil {
			t.Fatalf("AppendNotes(%s): %v", step.heading, err)
		}
	}
	got, _ := store.GetChapter(ctx, chapter.ID)
	if strings.Count(got.Notes, "## Review") != 1 || !strings.Contains(got.Notes, "Opening is tight now.") {
		t.Fatalf("review section not replaced:\n%s", got.Notes)
	}
	if !strings.Contains(got.Notes, "## Fact check\nLighthouse lamps") {
		t.Fatalf("fact check section lost:\n%s", got.Notes)
	}

	err := store.AppendNotes(ctx, "missing", "Review", "x")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := store.CreateBook(ctx, manuscript.NewBook{Title: "  "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("blank title: %v", err)
	}
	book := testsupport.SeedBook(t, store, "The Keeper")
	if _, err := store.CreateChapter(ctx, manuscript.NewChapter{BookID: book.ID, Number: 0, Title: "Zero"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("zero number: %v", err)
	}
	testsupport.SeedChapter(t, store, book.ID, 1)
	if _, err := store.CreateChapter(ctx, manuscript.NewChapter{BookID: book.ID, Number: 1, Title: "Again"}); err == nil {
		t.Fatal("expected duplicate chapter number to fail")
	}
	if err := store.SetLocked(ctx, "missing", true); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("lock missing chapter: %v", err)
	}
	if err := store.UpdateStoryState(ctx, book.ID, "Storm arrives in chapter 1."); err != nil {
		t.Fatalf("UpdateStoryState: %v", err)
	}
	got, _ := store.GetBook(ctx, book.ID)
	if got.StoryState != "Storm arrives in chapter 1." {
		t.Fatalf("story state = %q", got.StoryState)
	}
	if missing, err := store.GetBook(ctx, "missing"); err != nil || missing != nil {
		t.Fatalf("GetBook(missing) = %v, %v", missing, err)
	}
}
