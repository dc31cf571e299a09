package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/insiderlens/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Queue       QueueConfig     `toml:"queue"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Notify      NotifyConfig    `toml:"notify"`
	Macro       MacroConfig     `toml:"macro"`
	EODHD       EODHDConfig     `toml:"eodhd"`
	SEC         SECConfig       `toml:"sec"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Metrics     MetricsConfig   `toml:"metrics"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"`
	TimeFormat string   `toml:"time_format"`
	Dir        string   `toml:"dir"` // Log directory; empty means ./logs next to the executable
}

// QueueConfig controls the worker control loop. Durations are Go duration strings.
type QueueConfig struct {
	PollInterval    string `toml:"poll_interval" validate:"required"`  // Wait after a failed dequeue attempt when idle
	IdleInterval    string `toml:"idle_interval" validate:"required"`  // Wait when the queue is empty
	DispatchDelay   string `toml:"dispatch_delay" validate:"required"` // Wait after dispatching a job
	ErrorBackoff    string `toml:"error_backoff" validate:"required"`  // Wait after a loop-level error
	MaxConcurrent   int    `toml:"max_concurrent" validate:"gte=1,lte=32"`
	StuckTimeout    string `toml:"stuck_timeout" validate:"required"`    // Processing jobs older than this are reset
	CleanupInterval string `toml:"cleanup_interval" validate:"required"` // How often the stuck-job sweep runs
	BackoffUnit     string `toml:"backoff_unit" validate:"required"`     // Retry delay is unit * 5^retryCount
	MaxRetries      int    `toml:"max_retries" validate:"gte=0,lte=10"`
	JobTimeout      string `toml:"job_timeout" validate:"required"` // Upper bound for one job
}

// QueueDurations is QueueConfig with durations parsed once at startup
type QueueDurations struct {
	PollInterval    time.Duration
	IdleInterval    time.Duration
	DispatchDelay   time.Duration
	ErrorBackoff    time.Duration
	StuckTimeout    time.Duration
	CleanupInterval time.Duration
	BackoffUnit     time.Duration
	JobTimeout      time.Duration
}

// Durations parses every duration string in the queue configuration
func (q QueueConfig) Durations() (QueueDurations, error) {
	var d QueueDurations
	fields := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{"poll_interval", q.PollInterval, &d.PollInterval},
		{"idle_interval", q.IdleInterval, &d.IdleInterval},
		{"dispatch_delay", q.DispatchDelay, &d.DispatchDelay},
		{"error_backoff", q.ErrorBackoff, &d.ErrorBackoff},
		{"stuck_timeout", q.StuckTimeout, &d.StuckTimeout},
		{"cleanup_interval", q.CleanupInterval, &d.CleanupInterval},
		{"backoff_unit", q.BackoffUnit, &d.BackoffUnit},
		{"job_timeout", q.JobTimeout, &d.JobTimeout},
	}
	for _, f := range fields {
		parsed, err := time.ParseDuration(f.value)
		if err != nil {
			return d, fmt.Errorf("queue.%s: %w", f.name, err)
		}
		if parsed <= 0 {
			return d, fmt.Errorf("queue.%s must be positive, got %s", f.name, f.value)
		}
		*f.dest = parsed
	}
	return d, nil
}

// PipelineConfig toggles optional analysis phases
type PipelineConfig struct {
	RubricFile     string `toml:"rubric_file"`   // Optional YAML rubric override
	AIEvaluation   bool   `toml:"ai_evaluation"` // Include the AI agent section in the scorecard
	Narrative      bool   `toml:"narrative"`     // Generate the qualitative report
	FilingText     bool   `toml:"filing_text"`   // Fetch filing text for the narrative
	PriceSessions  int    `toml:"price_sessions" validate:"gte=30,lte=400"`
	InsiderWindow  string `toml:"insider_window" validate:"required"` // Lookback for the opportunity derivation
	NewsWindowDays int    `toml:"news_window_days" validate:"gte=7,lte=60"`
}

// SchedulerConfig controls the scheduled refresh of stale analyses
type SchedulerConfig struct {
	Enabled         bool   `toml:"enabled"`
	RefreshSchedule string `toml:"refresh_schedule"` // 5-field cron expression
	StaleAfter      string `toml:"stale_after" validate:"required"`
	Limit           int    `toml:"limit" validate:"gte=1"`
}

type NotifyConfig struct {
	Enabled        bool `toml:"enabled"`
	ScoreThreshold int  `toml:"score_threshold" validate:"gte=0,lte=100"` // Notify when the integrated score is above this
}

type MacroConfig struct {
	MaxAge string `toml:"max_age" validate:"required"` // Reuse window for industry macro records
	Model  string `toml:"model"`                       // Optional model override for the macro advisor
}

// EODHDConfig contains the market data provider configuration
type EODHDConfig struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url" validate:"omitempty,url"`
	RateLimit       int    `toml:"rate_limit" validate:"gte=1"` // Requests per second
	Timeout         string `toml:"timeout" validate:"required"`
	BreakerFailures int    `toml:"breaker_failures" validate:"gte=1"` // Consecutive failures before the circuit opens
	BreakerTimeout  string `toml:"breaker_timeout" validate:"required"`
}

// SECConfig contains the filing text provider configuration
type SECConfig struct {
	BaseURL   string `toml:"base_url" validate:"omitempty,url"`
	UserAgent string `toml:"user_agent"` // EDGAR requires a descriptive User-Agent with contact email
	RateLimit int    `toml:"rate_limit" validate:"gte=1,lte=10"`
	MaxChars  int    `toml:"max_chars" validate:"gte=500"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // default: "gemini-2.5-flash"
	Temperature float32 `toml:"temperature"` // default: 0.2
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
	Timeout         string      `toml:"timeout" validate:"required"` // Per-call timeout
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address" validate:"required_if=Enabled true"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Queue: QueueConfig{
			PollInterval:    "2s",
			IdleInterval:    "10s",
			DispatchDelay:   "100ms",
			ErrorBackoff:    "5s",
			MaxConcurrent:   1,
			StuckTimeout:    "30m",
			CleanupInterval: "5m",
			BackoffUnit:     "1m",
			MaxRetries:      3,
			JobTimeout:      "20m",
		},
		Pipeline: PipelineConfig{
			AIEvaluation:   true,
			Narrative:      true,
			FilingText:     false,
			PriceSessions:  60,
			InsiderWindow:  "720h", // 30 days
			NewsWindowDays: 14,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			RefreshSchedule: "0 6 * * 1-5", // Weekdays 06:00
			StaleAfter:      "24h",
			Limit:           50,
		},
		Notify: NotifyConfig{
			Enabled:        true,
			ScoreThreshold: 70,
		},
		Macro: MacroConfig{
			MaxAge: "168h", // 7 days
		},
		EODHD: EODHDConfig{
			BaseURL:         "https://eodhd.com/api",
			RateLimit:       10,
			Timeout:         "30s",
			BreakerFailures: 5,
			BreakerTimeout:  "60s",
		},
		SEC: SECConfig{
			BaseURL:   "https://www.sec.gov",
			UserAgent: "insiderlens admin@example.com",
			RateLimit: 5,
			MaxChars:  8000,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			Timeout:         "2m",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9464",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied by the caller afterwards.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies INSIDERLENS_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("INSIDERLENS_ENV"); env != "" {
		config.Environment = env
	}

	// Storage
	if path := os.Getenv("INSIDERLENS_STORAGE_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if reset := os.Getenv("INSIDERLENS_STORAGE_RESET_ON_STARTUP"); reset != "" {
		if b, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = b
		}
	}

	// Logging
	if level := os.Getenv("INSIDERLENS_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if output := os.Getenv("INSIDERLENS_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		config.Logging.Output = outputs
	}

	// Queue
	if v := os.Getenv("INSIDERLENS_QUEUE_POLL_INTERVAL"); v != "" {
		config.Queue.PollInterval = v
	}
	if v := os.Getenv("INSIDERLENS_QUEUE_IDLE_INTERVAL"); v != "" {
		config.Queue.IdleInterval = v
	}
	if v := os.Getenv("INSIDERLENS_QUEUE_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Queue.MaxConcurrent = n
		}
	}
	if v := os.Getenv("INSIDERLENS_QUEUE_STUCK_TIMEOUT"); v != "" {
		config.Queue.StuckTimeout = v
	}
	if v := os.Getenv("INSIDERLENS_QUEUE_BACKOFF_UNIT"); v != "" {
		config.Queue.BackoffUnit = v
	}
	if v := os.Getenv("INSIDERLENS_QUEUE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Queue.MaxRetries = n
		}
	}

	// Pipeline
	if v := os.Getenv("INSIDERLENS_RUBRIC_FILE"); v != "" {
		config.Pipeline.RubricFile = v
	}

	// Scheduler
	if v := os.Getenv("INSIDERLENS_SCHEDULER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Scheduler.Enabled = b
		}
	}
	if v := os.Getenv("INSIDERLENS_SCHEDULER_REFRESH_SCHEDULE"); v != "" {
		config.Scheduler.RefreshSchedule = v
	}

	// Notifications
	if v := os.Getenv("INSIDERLENS_NOTIFY_SCORE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Notify.ScoreThreshold = n
		}
	}

	// Providers
	if v := os.Getenv("INSIDERLENS_EODHD_BASE_URL"); v != "" {
		config.EODHD.BaseURL = v
	}
	if v := os.Getenv("INSIDERLENS_SEC_USER_AGENT"); v != "" {
		config.SEC.UserAgent = v
	}
	if v := os.Getenv("INSIDERLENS_LLM_DEFAULT_PROVIDER"); v != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(v))
	}
	if v := os.Getenv("INSIDERLENS_GEMINI_MODEL"); v != "" {
		config.Gemini.Model = v
	}
	if v := os.Getenv("INSIDERLENS_CLAUDE_MODEL"); v != "" {
		config.Claude.Model = v
	}

	// Metrics
	if v := os.Getenv("INSIDERLENS_METRICS_ADDRESS"); v != "" {
		config.Metrics.Address = v
		config.Metrics.Enabled = true
	}
}

// Validate checks struct constraints, durations and the refresh schedule
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.Queue.Durations(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	durations := map[string]string{
		"pipeline.insider_window": c.Pipeline.InsiderWindow,
		"scheduler.stale_after":   c.Scheduler.StaleAfter,
		"macro.max_age":           c.Macro.MaxAge,
		"eodhd.timeout":           c.EODHD.Timeout,
		"eodhd.breaker_timeout":   c.EODHD.BreakerTimeout,
		"llm.timeout":             c.LLM.Timeout,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid configuration: %s: %w", name, err)
		}
	}
	if c.Scheduler.Enabled {
		if err := ValidateJobSchedule(c.Scheduler.RefreshSchedule); err != nil {
			return fmt.Errorf("invalid configuration: scheduler.refresh_schedule: %w", err)
		}
	}
	return nil
}

// MustDuration parses a duration that Validate has already checked
func MustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(fmt.Sprintf("unvalidated duration %q: %v", value, err))
	}
	return d
}

// ResolveAPIKey resolves an API key by name with environment variable priority
// Resolution order: environment variables → KV store → config fallback → error
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"eodhd_api_key":     {"INSIDERLENS_EODHD_API_KEY", "EODHD_API_KEY"},
		"gemini_api_key":    {"INSIDERLENS_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"anthropic_api_key": {"INSIDERLENS_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateJobSchedule validates a 5-field cron expression and ensures minimum 5-minute interval
func ValidateJobSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) != 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
