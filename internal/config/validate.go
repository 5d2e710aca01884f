package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite":
		return nil
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required when database.driver is postgres (or set INKWELL_DATABASE_URL)")
		}
		return nil
	default:
		return fmt.Errorf("database.driver: unsupported value %q (expected sqlite or postgres)", c.Database.Driver)
	}
}

func (c *Config) validateLLM() error {
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxAttempts > 10 {
		return errors.New("workflow.max_attempts must be 10 or fewer")
	}
	if c.Workflow.HeartbeatTimeoutSeconds <= c.Workflow.HeartbeatIntervalSeconds {
		return errors.New("workflow.heartbeat_timeout_seconds must be greater than workflow.heartbeat_interval_seconds")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.MinCooldownSeconds > c.RateLimit.MaxCooldownSeconds {
		return errors.New("ratelimit.min_cooldown_seconds must not exceed ratelimit.max_cooldown_seconds")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.WordTolerance >= 1 {
		return errors.New("pipeline.word_tolerance must be below 1 (fraction of target words)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
