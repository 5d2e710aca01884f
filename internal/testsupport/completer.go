package testsupport

import (
	"context"
	"sync"
)

// CompletionCall records one request made to a FakeCompleter.
type CompletionCall struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// FakeCompleter serves canned completions. Respond, when set, takes
// precedence; otherwise Responses are returned in order and the last one
// repeats.
type FakeCompleter struct {
	mu        sync.Mutex
	Respond   func(system, user string) (string, error)
	Responses []string
	Err       error
	calls     []CompletionCall
}

// Complete implements the completion interface used by stage handlers.
func (f *FakeCompleter) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, CompletionCall{System: system, User: user, MaxTokens: maxTokens, Temperature: temperature})
	if f.Respond != nil {
		return f.Respond(system, user)
	}
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "ok", nil
	}
	idx := min(len(f.calls)-1, len(f.Responses)-1)
	return f.Responses[idx], nil
}

// Calls returns a copy of the recorded requests.
func (f *FakeCompleter) Calls() []CompletionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CompletionCall, len(f.calls))
	copy(out, f.calls)
	return out
}
