package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	PromptsPath string `toml:"prompts_path"`
}

// Database selects the SQL backend shared by the job queue and manuscript store.
type Database struct {
	Driver   string `toml:"driver"`
	DSN      string `toml:"dsn"`
	MaxConns int    `toml:"max_conns"`
}

// LLM contains completion service connection settings.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
}

// Workflow contains configuration for the queue worker.
type Workflow struct {
	PollIntervalMillis       int `toml:"poll_interval_ms"`
	StopTimeoutSeconds       int `toml:"stop_timeout_seconds"`
	MaxAttempts              int `toml:"max_attempts"`
	HeartbeatIntervalSeconds int `toml:"heartbeat_interval_seconds"`
	HeartbeatTimeoutSeconds  int `toml:"heartbeat_timeout_seconds"`
	// JobTimeoutSeconds bounds a single handler invocation. Zero disables it.
	JobTimeoutSeconds int `toml:"job_timeout_seconds"`
}

// RateLimit contains cool-down settings applied when the completion service throttles.
type RateLimit struct {
	DefaultCooldownSeconds int `toml:"default_cooldown_seconds"`
	MinCooldownSeconds     int `toml:"min_cooldown_seconds"`
	MaxCooldownSeconds     int `toml:"max_cooldown_seconds"`
	SessionWindowMinutes   int `toml:"session_window_minutes"`
	SessionRequestLimit    int `toml:"session_request_limit"`
}

// Pipeline contains orchestrator validation settings.
type Pipeline struct {
	Preflight          bool    `toml:"preflight"`
	StopOnHighSeverity bool    `toml:"stop_on_high_severity"`
	WordTolerance      float64 `toml:"word_tolerance"`
	DefaultTargetWords int     `toml:"default_target_words"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for inkwell.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and prompt catalog locations
//   - Database: sqlite (default) or postgres backend
//   - LLM: completion service endpoint and sampling defaults
//   - Workflow: worker polling, shutdown, and retry bounds
//   - RateLimit: throttling cool-down and session window
//   - Pipeline: pre-flight and post-hoc validation
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Database  Database  `toml:"database"`
	LLM       LLM       `toml:"llm"`
	Workflow  Workflow  `toml:"workflow"`
	RateLimit RateLimit `toml:"ratelimit"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/inkwell/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("inkwell.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database file used when no DSN is configured.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "inkwell.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "inkwell.lock")
}

// PollInterval returns the idle wait between claim attempts.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollIntervalMillis) * time.Millisecond
}

// StopTimeout returns the bounded wait for an in-flight job during shutdown.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Workflow.StopTimeoutSeconds) * time.Second
}

// HeartbeatInterval returns how often a running job's heartbeat is refreshed.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Workflow.HeartbeatIntervalSeconds) * time.Second
}

// HeartbeatTimeout returns the age after which a running job is considered stale.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Workflow.HeartbeatTimeoutSeconds) * time.Second
}

// JobTimeout returns the per-job execution ceiling, or zero when disabled.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Workflow.JobTimeoutSeconds) * time.Second
}

// RequireCompletion reports a configuration error when the completion service
// cannot be reached with the current settings. Only the daemon needs this.
func (c *Config) RequireCompletion() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/inkwell/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set OPENROUTER_API_KEY env var or edit %s (create with 'inkwell config init')", defaultPath)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
