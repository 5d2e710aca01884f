package config

const (
	defaultDataDir                  = "~/.local/share/inkwell"
	defaultLogDir                   = "~/.local/share/inkwell/logs"
	defaultDatabaseDriver           = "sqlite"
	defaultDatabaseMaxConns         = 4
	defaultLLMBaseURL               = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                 = "anthropic/claude-sonnet-4"
	defaultLLMReferer               = "https://github.com/inkwell/inkwell"
	defaultLLMTitle                 = "Inkwell"
	defaultLLMTimeoutSeconds        = 300
	defaultLLMMaxTokens             = 8000
	defaultLLMTemperature           = 0.7
	defaultPollIntervalMillis       = 1000
	defaultStopTimeoutSeconds       = 60
	defaultMaxAttempts              = 3
	defaultHeartbeatIntervalSeconds = 15
	defaultHeartbeatTimeoutSeconds  = 600
	defaultCooldownSeconds          = 300
	defaultMinCooldownSeconds       = 30
	defaultMaxCooldownSeconds       = 5 * 60 * 60
	defaultSessionWindowMinutes     = 300
	defaultSessionRequestLimit      = 0
	defaultWordTolerance            = 0.10
	defaultTargetWords              = 3000
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Database: Database{
			Driver:   defaultDatabaseDriver,
			MaxConns: defaultDatabaseMaxConns,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxTokens:      defaultLLMMaxTokens,
			Temperature:    defaultLLMTemperature,
		},
		Workflow: Workflow{
			PollIntervalMillis:       defaultPollIntervalMillis,
			StopTimeoutSeconds:       defaultStopTimeoutSeconds,
			MaxAttempts:              defaultMaxAttempts,
			HeartbeatIntervalSeconds: defaultHeartbeatIntervalSeconds,
			HeartbeatTimeoutSeconds:  defaultHeartbeatTimeoutSeconds,
		},
		RateLimit: RateLimit{
			DefaultCooldownSeconds: defaultCooldownSeconds,
			MinCooldownSeconds:     defaultMinCooldownSeconds,
			MaxCooldownSeconds:     defaultMaxCooldownSeconds,
			SessionWindowMinutes:   defaultSessionWindowMinutes,
			SessionRequestLimit:    defaultSessionRequestLimit,
		},
		Pipeline: Pipeline{
			Preflight:          true,
			WordTolerance:      defaultWordTolerance,
			DefaultTargetWords: defaultTargetWords,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
