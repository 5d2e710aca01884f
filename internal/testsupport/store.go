package testsupport

import (
	"context"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/manuscript"
	"inkwell/internal/queue"
)

// MustOpenDB opens the configured SQLite database for tests and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// MustOpenStore opens a queue.Store on a fresh database.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...queue.StoreOption) *queue.Store {
	t.Helper()
	return queue.NewStore(MustOpenDB(t, cfg), opts...)
}

// SeedBook inserts a book with a premise.
func SeedBook(t testing.TB, store *manuscript.Store, title string) *manuscript.Book {
	t.Helper()

	book, err := store.CreateBook(context.Background(), manuscript.NewBook{
		Title:   title,
		Premise: "A lighthouse keeper receives letters from a future storm.",
	})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	return book
}

// SeedChapter inserts a chapter with an outline long enough to pass preflight.
func SeedChapter(t testing.TB, store *manuscript.Store, bookID string, number int) *manuscript.Chapter {
	t.Helper()

	chapter, err := store.CreateChapter(context.Background(), manuscript.NewChapter{
		BookID:      bookID,
		Number:      number,
		Title:       "Chapter",
		Outline:     "The keeper climbs the tower at dusk, finds the lamp already lit, and discovers a letter in her own handwriting dated one year ahead.",
		TargetWords: 3000,
	})
	if err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	return chapter
}
