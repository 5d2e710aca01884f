package manuscript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/database"
	"inkwell/internal/services"
	"inkwell/internal/textanalysis"
)

const (
	bookColumns    = "id, title, premise, genre, style_guide, story_state, created_at, updated_at"
	chapterColumns = "id, book_id, number, title, outline, content, summary, notes, status, word_count, target_words, locked, created_at, updated_at"
)

// Store persists books and chapters.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore wraps an open database handle.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// CreateBook inserts a book.
func (s *Store) CreateBook(ctx context.Context, spec NewBook) (*Book, error) {
	title := strings.TrimSpace(spec.Title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, "manuscript", "create book", "title required", nil)
	}
	now := s.now().UTC()
	book := &Book{
		ID:         uuid.NewString(),
		Title:      title,
		Premise:    strings.TrimSpace(spec.Premise),
		Genre:      strings.TrimSpace(spec.Genre),
		StyleGuide: strings.TrimSpace(spec.StyleGuide),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.Exec(ctx,
		`INSERT INTO books (`+bookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID, book.Title,
		database.NullableString(book.Premise),
		database.NullableString(book.Genre),
		database.NullableString(book.StyleGuide),
		nil,
		database.FormatTime(now), database.FormatTime(now),
	); err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return book, nil
}

// GetBook fetches a book by id. A missing book yields (nil, nil).
func (s *Store) GetBook(ctx context.Context, id string) (*Book, error) {
	book, err := scanBook(s.db.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", id, err)
	}
	return book, nil
}

// ListBooks returns every book ordered by title.
func (s *Store) ListBooks(ctx context.Context) ([]*Book, error) {
	rows, err := s.db.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY title ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()
	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// UpdateStoryState replaces the book's continuity notes.
func (s *Store) UpdateStoryState(ctx context.Context, bookID, state string) error {
	res, err := s.db.Exec(ctx,
		`UPDATE books SET story_state = ?, updated_at = ? WHERE id = ?`,
		database.NullableString(strings.TrimSpace(state)), database.FormatTime(s.now()), bookID,
	)
	if err != nil {
		return fmt.Errorf("update story state for %s: %w", bookID, err)
	}
	return requireRow(res, "book", bookID)
}

// CreateChapter inserts a pending chapter. Numbers are unique per book.
func (s *Store) CreateChapter(ctx context.Context, spec NewChapter) (*Chapter, error) {
	title := strings.TrimSpace(spec.Title)
	switch {
	case strings.TrimSpace(spec.BookID) == "":
		return nil, services.Wrap(services.ErrValidation, "manuscript", "create chapter", "book id required", nil)
	case spec.Number <= 0:
		return nil, services.Wrap(services.ErrValidation, "manuscript", "create chapter", "chapter number must be positive", nil)
	case title == "":
		return nil, services.Wrap(services.ErrValidation, "manuscript", "create chapter", "title required", nil)
	}
	now := s.now().UTC()
	chapter := &Chapter{
		ID:          uuid.NewString(),
		BookID:      spec.BookID,
		Number:      spec.Number,
		Title:       title,
		Outline:     strings.TrimSpace(spec.Outline),
		Status:      ChapterPending,
		TargetWords: max(spec.TargetWords, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.db.Exec(ctx,
		`INSERT INTO chapters (id, book_id, number, title, outline, status, target_words, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chapter.ID, chapter.BookID, chapter.Number, chapter.Title,
		database.NullableString(chapter.Outline), string(chapter.Status), chapter.TargetWords,
		database.FormatTime(now), database.FormatTime(now),
	); err != nil {
		return nil, fmt.Errorf("insert chapter %d: %w", spec.Number, err)
	}
	return chapter, nil
}

// GetChapter fetches a chapter by id. A missing chapter yields (nil, nil).
func (s *Store) GetChapter(ctx context.Context, id string) (*Chapter, error) {
	chapter, err := scanChapter(s.db.QueryRow(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chapter %s: %w", id, err)
	}
	return chapter, nil
}

// ListChapters returns a book's chapters in number order.
func (s *Store) ListChapters(ctx context.Context, bookID string) ([]*Chapter, error) {
	rows, err := s.db.Query(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE book_id = ? ORDER BY number ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list chapters for %s: %w", bookID, err)
	}
	defer rows.Close()
	var chapters []*Chapter
	for rows.Next() {
		chapter, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, chapter)
	}
	return chapters, rows.Err()
}

// PreviousChapter returns the closest lower-numbered chapter of the same book,
// or nil for the first chapter.
func (s *Store) PreviousChapter(ctx context.Context, chapter *Chapter) (*Chapter, error) {
	if chapter == nil {
		return nil, nil
	}
	prev, err := scanChapter(s.db.QueryRow(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE book_id = ? AND number < ? ORDER BY number DESC LIMIT 1`,
		chapter.BookID, chapter.Number,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous chapter of %s: %w", chapter.ID, err)
	}
	return prev, nil
}

// UpdateContent stores chapter text and refreshes its word count.
func (s *Store) UpdateContent(ctx context.Context, id, content string) error {
	content = strings.TrimSpace(content)
	res, err := s.db.Exec(ctx,
		`UPDATE chapters SET content = ?, word_count = ?, updated_at = ? WHERE id = ?`,
		database.NullableString(content), textanalysis.WordCount(content), database.FormatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("update content for %s: %w", id, err)
	}
	return requireRow(res, "chapter", id)
}

// SetStatus moves a chapter to status.
func (s *Store) SetStatus(ctx context.Context, id string, status ChapterStatus) error {
	res, err := s.db.Exec(ctx,
		`UPDATE chapters SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), database.FormatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("set status for %s: %w", id, err)
	}
	return requireRow(res, "chapter", id)
}

// SetSummary stores the chapter synopsis used for continuity.
func (s *Store) SetSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.Exec(ctx,
		`UPDATE chapters SET summary = ?, updated_at = ? WHERE id = ?`,
		database.NullableString(strings.TrimSpace(summary)), database.FormatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("set summary for %s: %w", id, err)
	}
	return requireRow(res, "chapter", id)
}

// AppendNotes adds a headed section to the chapter's editorial notes. A
// section with the same heading is replaced so re-running a stage does not
// duplicate its notes.
func (s *Store) AppendNotes(ctx context.Context, id, heading, body string) error {
	chapter, err := s.GetChapter(ctx, id)
	if err != nil {
		return err
	}
	if chapter == nil {
		return services.Wrap(services.ErrNotFound, "manuscript", "append notes", "chapter "+id, nil)
	}
	notes := mergeSection(chapter.Notes, heading, body)
	res, err := s.db.Exec(ctx,
		`UPDATE chapters SET notes = ?, updated_at = ? WHERE id = ?`,
		database.NullableString(notes), database.FormatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("append notes for %s: %w", id, err)
	}
	return requireRow(res, "chapter", id)
}

// ResetChapter clears generated output and returns the chapter to pending.
func (s *Store) ResetChapter(ctx context.Context, id string) error {
	res, err := s.db.Exec(ctx,
		`UPDATE chapters SET content = NULL, summary = NULL, notes = NULL, word_count = 0, status = ?, updated_at = ? WHERE id = ?`,
		string(ChapterPending), database.FormatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("reset chapter %s: %w", id, err)
	}
	return requireRow(res, "chapter", id)
}

// SetLocked toggles the chapter lock. Jobs for a locked chapter are not claimed.
func (s *Store) SetLocked(ctx context.Context, id string, locked bool) error {
	flag := 0
	if locked {
		flag = 1
	}
	res, err := s.db.Exec(ctx,
		`UPDATE chapters SET locked = ?, updated_at = ? WHERE id = ?`,
		flag, database.FormatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("set lock for %s: %w", id, err)
	}
	return requireRow(res, "chapter", id)
}

func mergeSection(existing, heading, body string) string {
	heading = strings.TrimSpace(heading)
	body = strings.TrimSpace(body)
	marker := "## " + heading
	var kept []string
	for section := range strings.SplitSeq(existing, "\n\n## ") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if !strings.HasPrefix(section, "## ") {
			section = "## " + section
		}
		if section == marker || strings.HasPrefix(section, marker+"\n") {
			continue
		}
		kept = append(kept, section)
	}
	if body != "" {
		kept = append(kept, marker+"\n"+body)
	}
	return strings.Join(kept, "\n\n")
}

func requireRow(res sql.Result, kind, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", kind, id, err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "manuscript", kind, id, nil)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	var book Book
	var premise, genre, styleGuide, storyState, created, updated sql.NullString
	if err := row.Scan(&book.ID, &book.Title, &premise, &genre, &styleGuide, &storyState, &created, &updated); err != nil {
		return nil, err
	}
	book.Premise = premise.String
	book.Genre = genre.String
	book.StyleGuide = styleGuide.String
	book.StoryState = storyState.String
	book.CreatedAt = database.ParseTime(created)
	book.UpdatedAt = database.ParseTime(updated)
	return &book, nil
}

func scanChapter(row rowScanner) (*Chapter, error) {
	var (
		chapter Chapter
		status  string
		locked  int
	)
	var outline, content, summary, notes, created, updated sql.NullString
	if err := row.Scan(
		&chapter.ID, &chapter.BookID, &chapter.Number, &chapter.Title,
		&outline, &content, &summary, &notes, &status,
		&chapter.WordCount, &chapter.TargetWords, &locked,
		&created, &updated,
	); err != nil {
		return nil, err
	}
	chapter.Outline = outline.String
	chapter.Content = content.String
	chapter.Summary = summary.String
	chapter.Notes = notes.String
	chapter.Status = ChapterStatus(status)
	chapter.Locked = locked != 0
	chapter.CreatedAt = database.ParseTime(created)
	chapter.UpdatedAt = database.ParseTime(updated)
	return &chapter, nil
}
