package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"inkwell/internal/checkpoint"
	"inkwell/internal/config"
	"inkwell/internal/daemon"
	"inkwell/internal/database"
	"inkwell/internal/editorial"
	"inkwell/internal/logging"
	"inkwell/internal/manuscript"
	"inkwell/internal/prompts"
	"inkwell/internal/queue"
	"inkwell/internal/ratelimit"
	"inkwell/internal/services/llm"
	"inkwell/internal/usage"
	"inkwell/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the inkwell daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("inkwell-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update inkwell.log link: %v\n", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "inkwell.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	db, err := database.Open(signalCtx, cfg)
	if err != nil {
		logger.Error("open database", logging.Error(err))
		return err
	}
	defer db.Close()

	store := queue.NewStore(db)
	worker, err := NewWorker(cfg, store, manuscript.NewStore(db), logger)
	if err != nil {
		return err
	}
	logConfigSnapshot(logger, cfg, db)

	d, err := daemon.New(cfg, store, logger, worker)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("inkwell daemon shutting down")

	// The in-flight job gets the worker's stop timeout; the extra margin
	// covers the cancellation grace period.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.StopTimeout()+10*time.Second)
	defer stopCancel()
	return d.Stop(stopCtx)
}

// NewWorker assembles the worker with the editorial stage handlers, the
// completion client, and usage-aware rate limiting.
func NewWorker(cfg *config.Config, store *queue.Store, pages *manuscript.Store, logger *slog.Logger) (*workflow.Worker, error) {
	catalog, err := prompts.Load(cfg.Paths.PromptsPath, prompts.Defaults{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, err
	}

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	tracker := usage.NewTracker(
		time.Duration(cfg.RateLimit.SessionWindowMinutes)*time.Minute,
		cfg.RateLimit.SessionRequestLimit,
	)
	limiter := ratelimit.NewHandler(store, tracker, ratelimit.SettingsFromConfig(cfg), logger)

	worker := workflow.NewWorker(cfg, store, logger, workflow.WithRateLimiter(limiter))
	worker.ConfigureHandlers(editorial.NewRegistry(editorial.Env{
		Completer:          tracker.Wrap(client),
		Manuscript:         pages,
		Jobs:               store,
		Ledger:             checkpoint.NewLedger(store),
		Prompts:            catalog,
		Logger:             logger,
		DefaultTargetWords: cfg.Pipeline.DefaultTargetWords,
	}))
	return worker, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "inkwell.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config, db *database.DB) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("database_driver", string(db.Dialect())),
		logging.String("model", cfg.LLM.Model),
		logging.Bool("api_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("prompt_override", strings.TrimSpace(cfg.Paths.PromptsPath) != ""),
		logging.Int("max_attempts", cfg.Workflow.MaxAttempts),
		logging.Int("job_timeout_seconds", cfg.Workflow.JobTimeoutSeconds),
		logging.Int("session_request_limit", cfg.RateLimit.SessionRequestLimit),
	)
}
