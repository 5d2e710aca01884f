package pipeline_test

import (
	"strings"
	"testing"

	"inkwell/internal/manuscript"
	"inkwell/internal/pipeline"
)

func TestValidateOutput(t *testing.T) {
	orch := pipeline.New(nil, nil, pipeline.Settings{WordTolerance: 0.10, DefaultTargetWords: 3000}, nil)
	body := strings.Repeat("The keeper climbed the tower and read the letter by lamp light. ", 10)

	tests := []struct {
		name    string
		chapter *manuscript.Chapter
		want    []string
	}{
		{
			name:    "empty",
			chapter: &manuscript.Chapter{Outline: "Anything."},
			want:    []string{"content"},
		},
		{
			name: "clean",
			chapter: &manuscript.Chapter{
				Outline:     "The keeper climbs the tower. She reads the letter.",
				TargetWords: 240,
				Content:     body + "\n\n" + body,
			},
		},
		{
			name: "everything off",
			chapter: &manuscript.Chapter{
				Outline:     "The keeper climbs the tower. A storm destroys the harbour.",
				TargetWords: 1000,
				Content:     "The keeper climbed the tower and waited",
			},
			want: []string{"word_count", "outline_beats", "paragraphs", "ending"},
		},
		{
			name: "quoted ending",
			chapter: &manuscript.Chapter{
				Outline: "",
				Content: "She said, \"Come home.\"\n\nHe did not answer.",
			},
			want: []string{"word_count"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := orch.ValidateOutput(tt.chapter)
			if len(got) != len(tt.want) {
				t.Fatalf("expected checks %v, got %+v", tt.want, got)
			}
			for i, w := range got {
				if w.Check != tt.want[i] {
					t.Fatalf("expected checks %v, got %+v", tt.want, got)
				}
			}
		})
	}
}
