package services_test

import (
	"errors"
	"strings"
	"testing"

	"inkwell/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "review", "decode", "malformed feedback", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"review", "decode", "malformed feedback"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestErrorHintByMarker(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{services.Wrap(services.ErrValidation, "worker", "dispatch", "unknown type", nil), "queue retry"},
		{services.Wrap(services.ErrNotFound, "generate", "load", "chapter missing", nil), "re-import"},
		{errors.New("plain"), "retried"},
	}
	for _, tt := range tests {
		if hint := services.ErrorHint(tt.err); !strings.Contains(hint, tt.want) {
			t.Fatalf("hint for %v = %q, want substring %q", tt.err, hint, tt.want)
		}
	}
	if services.ErrorHint(nil) != "" {
		t.Fatal("expected empty hint for nil error")
	}
}
