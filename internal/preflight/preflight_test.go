package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/queue"
	"inkwell/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func newCompletionServer(t *testing.T, key string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+key {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckLLM_OK(t *testing.T) {
	srv := newCompletionServer(t, "good-key")
	result := CheckLLM(context.Background(), "llm", config.LLM{APIKey: "good-key", BaseURL: srv.URL})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_BadKey(t *testing.T) {
	srv := newCompletionServer(t, "good-key")
	result := CheckLLM(context.Background(), "llm", config.LLM{APIKey: "bad-key", BaseURL: srv.URL})
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "llm", config.LLM{BaseURL: "http://localhost"})
	if result.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestCheckPrompts_BadOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.PromptsPath = filepath.Join(testsupport.BaseDir(cfg), "prompts.yaml")
	testsupport.WriteText(t, cfg.Paths.PromptsPath, "generate: [not, a, mapping")
	if result := CheckPrompts(cfg); result.Passed {
		t.Fatal("expected failure for malformed override")
	}
}

func TestCheckQueue(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := now
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	if result := CheckQueue(ctx, store, time.Minute); !result.Passed {
		t.Fatalf("expected empty queue to pass, got %s", result.Detail)
	}

	if _, err := store.Create(ctx, queue.JobTypeGenerate, "chapter-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock = now.Add(10 * time.Minute)
	result := CheckQueue(ctx, store, time.Minute)
	if result.Passed || !strings.Contains(result.Detail, "daemon running") {
		t.Fatalf("expected stalled backlog failure, got %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_WithCompletionService(t *testing.T) {
	srv := newCompletionServer(t, "test")
	cfg := testsupport.NewConfig(t, testsupport.WithLLMBaseURL(srv.URL))

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_MissingKeyFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIKey(""))
	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "Completion service" {
		t.Fatalf("expected only the completion check to fail, got %+v", failed)
	}
}
