package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"inkwell/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inkwell.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\nd\ne\n")

	chunk, err := logs.Tail(context.Background(), path, logs.Options{Offset: -1, Lines: 2})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(chunk.Lines) != 2 || chunk.Lines[0] != "d" || chunk.Lines[1] != "e" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}
	if chunk.Offset != 10 {
		t.Fatalf("offset = %d, want 10", chunk.Offset)
	}

	chunk, err = logs.Tail(context.Background(), path, logs.Options{Offset: -1, Lines: 10})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(chunk.Lines) != 5 || chunk.Lines[0] != "a" {
		t.Fatalf("short file should return every line, got %#v", chunk.Lines)
	}
}

func TestTailMissingFile(t *testing.T) {
	chunk, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.Options{Offset: -1, Lines: 5})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(chunk.Lines) != 0 || chunk.Offset != 0 {
		t.Fatalf("expected empty chunk, got %+v", chunk)
	}
}

func TestTailFollowWaitsForAppend(t *testing.T) {
	path := writeLog(t, "start\n")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	first, err := logs.Tail(ctx, path, logs.Options{Offset: -1, Lines: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan logs.Chunk, 1)
	go func() {
		chunk, err := logs.Tail(ctx, path, logs.Options{Offset: first.Offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail: %v", err)
		}
		done <- chunk
	}()

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	select {
	case chunk := <-done:
		if len(chunk.Lines) != 1 || chunk.Lines[0] != "later" {
			t.Fatalf("unexpected follow lines: %#v", chunk.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("follow did not return")
	}
}

func TestTailFollowTimesOutQuietly(t *testing.T) {
	path := writeLog(t, "only\n")
	chunk, err := logs.Tail(context.Background(), path, logs.Options{Offset: 5, Follow: true, Wait: 300 * time.Millisecond})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(chunk.Lines) != 0 || chunk.Offset != 5 {
		t.Fatalf("expected no new lines at offset 5, got %+v", chunk)
	}
}
