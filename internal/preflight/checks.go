package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"inkwell/internal/config"
	"inkwell/internal/prompts"
	"inkwell/internal/queue"
	"inkwell/internal/services/llm"
)

// CheckLLM verifies that the completion API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckPrompts loads the prompt catalog, including any configured override.
func CheckPrompts(cfg *config.Config) Result {
	const name = "Prompt catalog"
	catalog, err := prompts.Load(cfg.Paths.PromptsPath, prompts.Defaults{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	source := "embedded"
	if path := strings.TrimSpace(cfg.Paths.PromptsPath); path != "" {
		source = path
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d stages (%s)", len(catalog.Names()), source)}
}

// CheckQueue summarizes queue health. Stale running jobs or a pending
// backlog older than staleAfter fail the check.
func CheckQueue(ctx context.Context, store *queue.Store, staleAfter time.Duration) Result {
	const name = "Job queue"
	health, err := store.Health(ctx, staleAfter)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health query failed (%v)", err)}
	}
	detail := fmt.Sprintf("%s: %d pending, %d running, %d paused, %d failed",
		health.Dialect, health.Pending, health.Running, health.Paused, health.Failed)
	if !health.NextResumeAt.IsZero() {
		detail += fmt.Sprintf("; cool-down until %s", health.NextResumeAt.Local().Format(time.Kitchen))
	}
	if health.StaleRunning > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s; %d running job(s) have a stale heartbeat", detail, health.StaleRunning)}
	}
	if staleAfter > 0 && health.OldestPendingAge > staleAfter && health.Running == 0 && health.NextResumeAt.IsZero() {
		return Result{Name: name, Detail: fmt.Sprintf("%s; oldest pending job waiting %s (is the daemon running?)", detail, health.OldestPendingAge.Round(time.Second))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// summarizeLLMError produces a human-readable summary for completion health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (completion API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (completion API unreachable)"
	}
	var status *llm.StatusError
	if errors.As(err, &status) && (status.StatusCode == 401 || status.StatusCode == 403) {
		return "auth failed (invalid api key)"
	}
	return err.Error()
}
