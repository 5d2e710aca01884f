package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	c.normalizeLLM()
	c.normalizeWorkflow()
	c.normalizeRateLimit()
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.PromptsPath = strings.TrimSpace(c.Paths.PromptsPath); c.Paths.PromptsPath != "" {
		if c.Paths.PromptsPath, err = expandPath(c.Paths.PromptsPath); err != nil {
			return fmt.Errorf("paths.prompts_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", "sqlite3":
		c.Database.Driver = defaultDatabaseDriver
	case "postgresql", "pgx":
		c.Database.Driver = "postgres"
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" && c.Database.Driver == "postgres" {
		if value, ok := os.LookupEnv("INKWELL_DATABASE_URL"); ok {
			c.Database.DSN = strings.TrimSpace(value)
		}
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = defaultDatabaseMaxConns
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		for _, key := range []string{"INKWELL_LLM_API_KEY", "OPENROUTER_API_KEY"} {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				c.LLM.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	if c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL); c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if c.LLM.Model = strings.TrimSpace(c.LLM.Model); c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.PollIntervalMillis <= 0 {
		c.Workflow.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Workflow.StopTimeoutSeconds <= 0 {
		c.Workflow.StopTimeoutSeconds = defaultStopTimeoutSeconds
	}
	if c.Workflow.MaxAttempts <= 0 {
		c.Workflow.MaxAttempts = defaultMaxAttempts
	}
	if c.Workflow.HeartbeatIntervalSeconds <= 0 {
		c.Workflow.HeartbeatIntervalSeconds = defaultHeartbeatIntervalSeconds
	}
	if c.Workflow.HeartbeatTimeoutSeconds <= 0 {
		c.Workflow.HeartbeatTimeoutSeconds = defaultHeartbeatTimeoutSeconds
	}
	if c.Workflow.JobTimeoutSeconds < 0 {
		c.Workflow.JobTimeoutSeconds = 0
	}
}

func (c *Config) normalizeRateLimit() {
	if c.RateLimit.DefaultCooldownSeconds <= 0 {
		c.RateLimit.DefaultCooldownSeconds = defaultCooldownSeconds
	}
	if c.RateLimit.MinCooldownSeconds <= 0 {
		c.RateLimit.MinCooldownSeconds = defaultMinCooldownSeconds
	}
	if c.RateLimit.MaxCooldownSeconds <= 0 {
		c.RateLimit.MaxCooldownSeconds = defaultMaxCooldownSeconds
	}
	if c.RateLimit.SessionWindowMinutes <= 0 {
		c.RateLimit.SessionWindowMinutes = defaultSessionWindowMinutes
	}
	if c.RateLimit.SessionRequestLimit < 0 {
		c.RateLimit.SessionRequestLimit = 0
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.WordTolerance <= 0 {
		c.Pipeline.WordTolerance = defaultWordTolerance
	}
	if c.Pipeline.DefaultTargetWords <= 0 {
		c.Pipeline.DefaultTargetWords = defaultTargetWords
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
