package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientCompleteSendsPromptsAndBudget(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeCompletion(t, w, "Chapter text.")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	text, err := client.Complete(context.Background(), "You are an editor.", "Draft chapter one.", 1200, 0.4)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if text != "Chapter text." {
		t.Fatalf("unexpected completion %q", text)
	}
	if got.Model != "demo-model" || got.MaxTokens != 1200 || got.Temperature != 0.4 {
		t.Fatalf("unexpected request payload: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "Draft chapter one." {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestClientCompleteReturnsRateLimitWithoutRetrying(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), "", "hello", 10, 0)
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || !statusErr.RateLimited() {
		t.Fatalf("expected rate-limited status error, got %v", err)
	}
	if statusErr.RetryAfterHint() != 2*time.Minute {
		t.Fatalf("expected 2m retry-after hint, got %s", statusErr.RetryAfterHint())
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single request, got %d", calls.Load())
	}
}

func TestClientCompleteMapsEmbeddedThrottleError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"upstream rate limited","code":429}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.Complete(context.Background(), "", "hello", 10, 0)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || !statusErr.RateLimited() {
		t.Fatalf("expected rate-limited status error, got %v", err)
	}
}

func TestClientRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeCompletion(t, w, "recovered")
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	text, err := client.Complete(context.Background(), "", "hello", 10, 0)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("unexpected completion %q", text)
	}
	if calls.Load() != 2 || len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected one retry after 1s, got calls=%d slept=%v", calls.Load(), slept)
	}
}

func TestClientEmptyContentExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), "", "hello", 10, 0)
	if err == nil {
		t.Fatal("expected error for empty content")
	}
	if !strings.Contains(err.Error(), "finish_reason=\"length\"") || !strings.Contains(err.Error(), "3 attempts") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Complete(context.Background(), "", "hello", 10, 0); err == nil {
		t.Fatal("expected missing api key error")
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, "```json\n{\"ok\":true}\n```")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestDecodeJSONExtractsEmbeddedObject(t *testing.T) {
	var out struct {
		Verdict string `json:"verdict"`
	}
	if err := DecodeJSON("Here is my review:\n{\"verdict\":\"revise\"}\nThanks.", &out); err != nil {
		t.Fatalf("DecodeJSON returned error: %v", err)
	}
	if out.Verdict != "revise" {
		t.Fatalf("unexpected verdict %q", out.Verdict)
	}
	if err := DecodeJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := parseRetryAfter("30", now); got != 30*time.Second {
		t.Fatalf("seconds form: got %s", got)
	}
	date := now.Add(90 * time.Second).Format(http.TimeFormat)
	if got := parseRetryAfter(date, now); got != 90*time.Second {
		t.Fatalf("date form: got %s", got)
	}
	if got := parseRetryAfter("soon", now); got != 0 {
		t.Fatalf("garbage form: got %s", got)
	}
}
