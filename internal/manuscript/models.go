package manuscript

import "time"

// ChapterStatus tracks a chapter's progress through the pipeline.
type ChapterStatus string

const (
	ChapterPending   ChapterStatus = "pending"
	ChapterWriting   ChapterStatus = "writing"
	ChapterEditing   ChapterStatus = "editing"
	ChapterCompleted ChapterStatus = "completed"
)

// Book is the container for chapters and the running story state.
type Book struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Premise    string    `json:"premise,omitempty"`
	Genre      string    `json:"genre,omitempty"`
	StyleGuide string    `json:"style_guide,omitempty"`
	StoryState string    `json:"story_state,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Chapter is the unit of work a pipeline runs against.
type Chapter struct {
	ID          string        `json:"id"`
	BookID      string        `json:"book_id"`
	Number      int           `json:"number"`
	Title       string        `json:"title"`
	Outline     string        `json:"outline,omitempty"`
	Content     string        `json:"content,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Status      ChapterStatus `json:"status"`
	WordCount   int           `json:"word_count"`
	TargetWords int           `json:"target_words"`
	Locked      bool          `json:"locked"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewBook describes a book to insert.
type NewBook struct {
	Title      string
	Premise    string
	Genre      string
	StyleGuide string
}

// NewChapter describes a chapter to insert.
type NewChapter struct {
	BookID      string
	Number      int
	Title       string
	Outline     string
	TargetWords int
}
