package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/services"
)

func logFile(t *testing.T) (string, func() string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.log")
	return path, func() string {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(data)
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg, true)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "inkwell.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Fatalf("expected message in log file, got %q", data)
	}
}

func TestConsoleLoggerLiftsComponentAndFormatsFields(t *testing.T) {
	path, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "worker").Info("job completed",
		logging.String(logging.FieldJobID, "abc"),
		logging.String("note", "two words"),
	)
	logger.Debug("hidden")

	out := read()
	if !strings.Contains(out, "INFO  worker: job completed") {
		t.Fatalf("expected component prefix, got %q", out)
	}
	if !strings.Contains(out, "job_id=abc") || !strings.Contains(out, `note="two words"`) {
		t.Fatalf("expected formatted fields, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered at info level: %q", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no source location at info level, got %q", out)
	}
}

func TestJSONLoggerEmitsStructuredRecord(t *testing.T) {
	path, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("paused", logging.String(logging.FieldEventType, "rate_limited"))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record["level"] != "warn" || record["msg"] != "paused" {
		t.Fatalf("unexpected record: %v", record)
	}
	if record[logging.FieldEventType] != "rate_limited" {
		t.Fatalf("expected event type field, got %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestJSONLoggerDropsEmptyFields(t *testing.T) {
	path, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("worker idle", logging.String(logging.FieldJobID, ""), logging.String(logging.FieldStage, "review"))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if _, ok := record[logging.FieldJobID]; ok {
		t.Fatalf("expected empty job id to be dropped, got %v", record)
	}
	if record[logging.FieldStage] != "review" {
		t.Fatalf("expected stage field, got %v", record)
	}
	ts, _ := record["ts"].(string)
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil || !strings.HasSuffix(ts, "Z") {
		t.Fatalf("expected UTC RFC 3339 ts, got %q", ts)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	path, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithStage(ctx, "review")
	ctx = services.WithRequestID(ctx, "req-9")
	logging.WithContext(ctx, logger).Info("claimed")

	out := read()
	for _, want := range []string{"job_id=job-1", "stage=review", "correlation_id=req-9"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	path, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "slow", "poll_slow", logging.String(logging.FieldImpact, "queue delayed"))

	out := read()
	if !strings.Contains(out, "event_type=poll_slow") || !strings.Contains(out, "error_hint=") {
		t.Fatalf("expected injected fields, got %q", out)
	}
	if !strings.Contains(out, `impact="queue delayed"`) {
		t.Fatalf("expected caller impact to be kept, got %q", out)
	}
}
