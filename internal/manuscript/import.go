package manuscript

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"inkwell/internal/services"
)

// Plan is the YAML layout accepted by ImportPlan.
//
//	title: The Lighthouse
//	premise: A keeper finds a letter from the future.
//	chapters:
//	  - number: 1
//	    title: arrival
//	    outline: The keeper arrives on the island...
//	    target_words: 3000
type Plan struct {
	Title      string        `yaml:"title"`
	Premise    string        `yaml:"premise"`
	Genre      string        `yaml:"genre"`
	StyleGuide string        `yaml:"style_guide"`
	Chapters   []PlanChapter `yaml:"chapters"`
}

// PlanChapter is one chapter entry in a Plan.
type PlanChapter struct {
	Number      int    `yaml:"number"`
	Title       string `yaml:"title"`
	Outline     string `yaml:"outline"`
	TargetWords int    `yaml:"target_words"`
}

// ParsePlan decodes YAML plan content and validates chapter numbering.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, services.Wrap(services.ErrValidation, "manuscript", "parse plan", "invalid yaml", err)
	}
	if strings.TrimSpace(plan.Title) == "" {
		return nil, services.Wrap(services.ErrValidation, "manuscript", "parse plan", "book title required", nil)
	}
	seen := make(map[int]struct{}, len(plan.Chapters))
	for i := range plan.Chapters {
		ch := &plan.Chapters[i]
		if ch.Number == 0 {
			ch.Number = i + 1
		}
		if _, dup := seen[ch.Number]; dup {
			return nil, services.Wrap(services.ErrValidation, "manuscript", "parse plan", fmt.Sprintf("duplicate chapter number %d", ch.Number), nil)
		}
		seen[ch.Number] = struct{}{}
		ch.Title = normalizeTitle(ch.Title, ch.Number)
	}
	return &plan, nil
}

// LoadPlan reads and parses a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	return ParsePlan(data)
}

// ImportPlan creates the book and its chapters. Chapters without a target
// word count receive defaultTargetWords.
func (s *Store) ImportPlan(ctx context.Context, plan *Plan, defaultTargetWords int) (*Book, []*Chapter, error) {
	if plan == nil {
		return nil, nil, services.Wrap(services.ErrValidation, "manuscript", "import plan", "nil plan", nil)
	}
	book, err := s.CreateBook(ctx, NewBook{
		Title:      plan.Title,
		Premise:    plan.Premise,
		Genre:      plan.Genre,
		StyleGuide: plan.StyleGuide,
	})
	if err != nil {
		return nil, nil, err
	}
	chapters := make([]*Chapter, 0, len(plan.Chapters))
	for _, entry := range plan.Chapters {
		target := entry.TargetWords
		if target <= 0 {
			target = defaultTargetWords
		}
		chapter, err := s.CreateChapter(ctx, NewChapter{
			BookID:      book.ID,
			Number:      entry.Number,
			Title:       entry.Title,
			Outline:     entry.Outline,
			TargetWords: target,
		})
		if err != nil {
			return book, chapters, err
		}
		chapters = append(chapters, chapter)
	}
	return book, chapters, nil
}

// normalizeTitle title-cases all-lowercase titles and fills in blanks.
func normalizeTitle(title string, number int) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Sprintf("Chapter %d", number)
	}
	if title == strings.ToLower(title) {
		return cases.Title(language.Und).String(title)
	}
	return title
}
