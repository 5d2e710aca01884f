package stage

import (
	"errors"
	"testing"

	"inkwell/internal/queue"
	"inkwell/internal/services"
)

func TestLabel(t *testing.T) {
	tests := map[queue.JobType]string{
		queue.JobTypeGenerate:       "Generate",
		queue.JobTypeLineEdit:       "Line Edit",
		queue.JobTypePropagateState: "Propagate State",
		"":                          "",
	}
	for in, want := range tests {
		if got := Label(in); got != want {
			t.Fatalf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRequireTarget(t *testing.T) {
	if err := RequireTarget(&queue.Job{Type: queue.JobTypeReview, TargetID: "ch"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := RequireTarget(&queue.Job{Type: queue.JobTypeReview})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !errors.Is(RequireTarget(nil), services.ErrValidation) {
		t.Fatal("expected validation error for nil job")
	}
}

func TestHealthString(t *testing.T) {
	tests := []struct {
		health Health
		want   string
	}{
		{Healthy("review"), "review: ready"},
		{Unhealthy("review", "job store not configured"), "review: job store not configured"},
		{Health{Stage: "summary"}, "summary: not ready"},
	}
	for _, tt := range tests {
		if got := tt.health.String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
	}
}
