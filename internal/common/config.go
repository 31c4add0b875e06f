package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Logging     LoggingConfig    `toml:"logging"`
	Storage     StorageConfig    `toml:"storage"`
	Matching    MatchingConfig   `toml:"matching"`
	Filter      FilterConfig     `toml:"filter"`
	Batch       BatchConfig      `toml:"batch"`
	Queue       QueueConfig      `toml:"queue"`
	Workers     WorkersConfig    `toml:"workers"`
	Embeddings  EmbeddingsConfig `toml:"embeddings"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	Briefs      BriefsConfig     `toml:"briefs"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	File       string   `toml:"file"`        // Log file path; relative paths resolve against the executable dir
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// MatchingConfig holds the scoring pipeline settings.
type MatchingConfig struct {
	EmbeddingDimension    int                `toml:"embedding_dimension" validate:"min=1"`
	CacheTTLSeconds       int                `toml:"cache_ttl_seconds" validate:"min=1"`
	MatchResultTTLSeconds int                `toml:"match_result_ttl_seconds" validate:"min=1"`
	ScorerSoftBudgetMs    int                `toml:"scorer_soft_budget_ms" validate:"min=1"`
	ScorerHardTimeoutMs   int                `toml:"scorer_hard_timeout_ms" validate:"min=1"`
	OrchestratorBudgetMs  int                `toml:"orchestrator_budget_ms" validate:"min=1"`
	ScorerParallelism     int                `toml:"scorer_parallelism" validate:"min=1"`
	ConfidenceHigh        float64            `toml:"confidence_high" validate:"gt=0,lte=1"`
	ConfidenceMedium      float64            `toml:"confidence_medium" validate:"gt=0,lte=1"`
	Weights               map[string]float64 `toml:"weights"`
}

// FilterConfig holds the quick-filter tunables. The value/capacity thresholds
// are shared with the capacity_fit scorer through the scoring context.
type FilterConfig struct {
	IndustryTokens     []string `toml:"industry_tokens"`
	PartneringKeywords []string `toml:"partnering_keywords"`
	HighValueThreshold float64  `toml:"high_value_threshold"`
	LowValueThreshold  float64  `toml:"low_value_threshold"`
	SmallTeamMax       int      `toml:"small_team_max"`
	LargeTeamMin       int      `toml:"large_team_min"`
}

// BatchConfig holds coordinator and optimizer bounds.
type BatchConfig struct {
	SizeDefault           int     `toml:"size_default" validate:"min=1"`
	SizeMin               int     `toml:"size_min" validate:"min=1"`
	SizeMax               int     `toml:"size_max" validate:"min=1"`
	ConcurrencyDefault    int     `toml:"concurrency_default" validate:"min=1"`
	ConcurrencyMin        int     `toml:"concurrency_min" validate:"min=1"`
	ConcurrencyMax        int     `toml:"concurrency_max" validate:"min=1"`
	MaxRetries            int     `toml:"max_retries"`
	RetryBaseMs           int     `toml:"retry_base_ms" validate:"min=1"`
	RetryCapMs            int     `toml:"retry_cap_ms" validate:"min=1"`
	InflightCeilingFactor int     `toml:"inflight_ceiling_factor" validate:"min=1"`
	FailureAbortRatio     float64 `toml:"failure_abort_ratio" validate:"gt=0,lte=1"`
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "250ms" - how often workers poll for messages
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "2m" - lease duration before redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max times a message can be received before dead-letter
	QueueName         string `toml:"queue_name"`         // Queue name prefix in Badger
}

type WorkersConfig struct {
	Count int `toml:"count" validate:"min=1"` // Number of concurrent match workers
}

// EmbeddingsConfig configures the external embedding service adapter.
type EmbeddingsConfig struct {
	Provider          string  `toml:"provider"` // "gemini" or "disabled"
	Model             string  `toml:"model"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"` // total budget including retries
	MaxRetries        int     `toml:"max_retries"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// BriefsConfig controls the Claude capture-brief generator. Briefs are never
// consulted by the matching path.
type BriefsConfig struct {
	Enabled    bool `toml:"enabled"`
	TopMatches int  `toml:"top_matches"`
}

type SchedulerConfig struct {
	Enabled bool `toml:"enabled"`
}

// WebSocketConfig contains configuration for WebSocket event/log streaming
type WebSocketConfig struct {
	MinLevel        string   `toml:"min_level"`        // Minimum log level to broadcast
	ExcludePatterns []string `toml:"exclude_patterns"` // Log message patterns to exclude from broadcasting
	// Throttle intervals for high-frequency events. Map of event type to duration string.
	// Example: {"batch_progress": "500ms"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in congruo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8214,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			File:       "logs/congruo.log",
			TimeFormat: "15:04:05",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Matching: MatchingConfig{
			EmbeddingDimension:    1024,
			CacheTTLSeconds:       86400,   // 24 hours
			MatchResultTTLSeconds: 7776000, // 90 days
			ScorerSoftBudgetMs:    500,
			ScorerHardTimeoutMs:   2000,
			OrchestratorBudgetMs:  5000,
			ScorerParallelism:     4,
			ConfidenceHigh:        0.75,
			ConfidenceMedium:      0.50,
			Weights:               DefaultWeights(),
		},
		Filter: FilterConfig{
			IndustryTokens: []string{
				"consulting", "engineering", "software", "construction",
				"logistics", "security", "training", "maintenance",
				"research", "analytics", "staffing", "manufacturing",
			},
			PartneringKeywords: []string{
				"partner", "partnering", "teaming", "subcontract",
				"subcontracting", "joint venture",
			},
			HighValueThreshold: 10_000_000,
			LowValueThreshold:  100_000,
			SmallTeamMax:       20,
			LargeTeamMin:       100,
		},
		Batch: BatchConfig{
			SizeDefault:           50,
			SizeMin:               10,
			SizeMax:               500,
			ConcurrencyDefault:    4,
			ConcurrencyMin:        2,
			ConcurrencyMax:        64,
			MaxRetries:            3,
			RetryBaseMs:           1000,
			RetryCapMs:            30000,
			InflightCeilingFactor: 4,
			FailureAbortRatio:     0.25,
		},
		Queue: QueueConfig{
			PollInterval:      "250ms",
			VisibilityTimeout: "2m",
			MaxReceive:        4, // initial delivery plus three retries
			QueueName:         "congruo_work",
		},
		Workers: WorkersConfig{
			Count: 4,
		},
		Embeddings: EmbeddingsConfig{
			Provider:          "gemini",
			Model:             "gemini-embedding-001",
			RequestsPerSecond: 5,
			TimeoutSeconds:    30,
			MaxRetries:        3,
		},
		Gemini: GeminiConfig{
			APIKey:      "", // User must provide API key (no fallback)
			Model:       "gemini-2.5-flash",
			Timeout:     "5m",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-3-5-haiku-20241022",
			MaxTokens:   2048,
			Timeout:     "5m",
			Temperature: 0.3,
		},
		Briefs: BriefsConfig{
			Enabled:    false, // Disabled by default - user must explicitly opt-in
			TopMatches: 5,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
				"HTTP response",
				"Publishing event",
			},
			ThrottleIntervals: map[string]string{
				"batch_progress": "500ms",
			},
		},
	}
}

// DefaultWeights returns the default scorer weight vector. Keys are scorer
// names and the values sum to 1.0.
func DefaultWeights() map[string]float64 {
	return models.DefaultWeightSet()
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
// Example: LoadFromFiles("base.toml", "override.toml") - override.toml settings
// take precedence over base.toml
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: CONGRUO_ENV, fallback: GO_ENV)
	if env := os.Getenv("CONGRUO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("CONGRUO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CONGRUO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("CONGRUO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("CONGRUO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("CONGRUO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if file := os.Getenv("CONGRUO_LOG_FILE"); file != "" {
		config.Logging.File = file
	}
	if output := os.Getenv("CONGRUO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range splitString(output, ",") {
			trimmed := trimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Matching configuration
	if dim := os.Getenv("CONGRUO_MATCHING_EMBEDDING_DIMENSION"); dim != "" {
		if d, err := strconv.Atoi(dim); err == nil {
			config.Matching.EmbeddingDimension = d
		}
	}
	if ttl := os.Getenv("CONGRUO_MATCHING_CACHE_TTL_SECONDS"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			config.Matching.CacheTTLSeconds = t
		}
	}
	if ttl := os.Getenv("CONGRUO_MATCHING_MATCH_RESULT_TTL_SECONDS"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			config.Matching.MatchResultTTLSeconds = t
		}
	}
	if budget := os.Getenv("CONGRUO_MATCHING_ORCHESTRATOR_BUDGET_MS"); budget != "" {
		if b, err := strconv.Atoi(budget); err == nil {
			config.Matching.OrchestratorBudgetMs = b
		}
	}
	if budget := os.Getenv("CONGRUO_MATCHING_SCORER_SOFT_BUDGET_MS"); budget != "" {
		if b, err := strconv.Atoi(budget); err == nil {
			config.Matching.ScorerSoftBudgetMs = b
		}
	}
	if budget := os.Getenv("CONGRUO_MATCHING_SCORER_HARD_TIMEOUT_MS"); budget != "" {
		if b, err := strconv.Atoi(budget); err == nil {
			config.Matching.ScorerHardTimeoutMs = b
		}
	}
	if par := os.Getenv("CONGRUO_MATCHING_SCORER_PARALLELISM"); par != "" {
		if p, err := strconv.Atoi(par); err == nil {
			config.Matching.ScorerParallelism = p
		}
	}

	// Batch configuration
	if size := os.Getenv("CONGRUO_BATCH_SIZE_DEFAULT"); size != "" {
		if s, err := strconv.Atoi(size); err == nil {
			config.Batch.SizeDefault = s
		}
	}
	if conc := os.Getenv("CONGRUO_BATCH_CONCURRENCY_DEFAULT"); conc != "" {
		if c, err := strconv.Atoi(conc); err == nil {
			config.Batch.ConcurrencyDefault = c
		}
	}
	if retries := os.Getenv("CONGRUO_BATCH_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Batch.MaxRetries = r
		}
	}

	// Queue configuration
	if pollInterval := os.Getenv("CONGRUO_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if visibilityTimeout := os.Getenv("CONGRUO_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}
	if maxReceive := os.Getenv("CONGRUO_QUEUE_MAX_RECEIVE"); maxReceive != "" {
		if mr, err := strconv.Atoi(maxReceive); err == nil {
			config.Queue.MaxReceive = mr
		}
	}
	if queueName := os.Getenv("CONGRUO_QUEUE_NAME"); queueName != "" {
		config.Queue.QueueName = queueName
	}

	// Workers configuration
	if count := os.Getenv("CONGRUO_WORKERS_COUNT"); count != "" {
		if c, err := strconv.Atoi(count); err == nil {
			config.Workers.Count = c
		}
	}

	// Embeddings configuration
	if provider := os.Getenv("CONGRUO_EMBEDDINGS_PROVIDER"); provider != "" {
		config.Embeddings.Provider = provider
	}
	if model := os.Getenv("CONGRUO_EMBEDDINGS_MODEL"); model != "" {
		config.Embeddings.Model = model
	}
	if rps := os.Getenv("CONGRUO_EMBEDDINGS_REQUESTS_PER_SECOND"); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil {
			config.Embeddings.RequestsPerSecond = r
		}
	}
	if timeout := os.Getenv("CONGRUO_EMBEDDINGS_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			config.Embeddings.TimeoutSeconds = t
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("CONGRUO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("CONGRUO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("CONGRUO_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // CONGRUO_ prefix takes priority
	}
	if model := os.Getenv("CONGRUO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// Briefs configuration
	if enabled := os.Getenv("CONGRUO_BRIEFS_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Briefs.Enabled = e
		}
	}

	// Scheduler configuration
	if enabled := os.Getenv("CONGRUO_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}

	// WebSocket configuration
	if minLevel := os.Getenv("CONGRUO_WEBSOCKET_MIN_LEVEL"); minLevel != "" {
		config.WebSocket.MinLevel = minLevel
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks structural config constraints and the weight vector.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Batch.SizeMin > c.Batch.SizeMax {
		return fmt.Errorf("batch size_min (%d) exceeds size_max (%d)", c.Batch.SizeMin, c.Batch.SizeMax)
	}
	if c.Batch.ConcurrencyMin > c.Batch.ConcurrencyMax {
		return fmt.Errorf("batch concurrency_min (%d) exceeds concurrency_max (%d)", c.Batch.ConcurrencyMin, c.Batch.ConcurrencyMax)
	}
	if c.Matching.ConfidenceMedium >= c.Matching.ConfidenceHigh {
		return fmt.Errorf("confidence_medium (%.2f) must be below confidence_high (%.2f)", c.Matching.ConfidenceMedium, c.Matching.ConfidenceHigh)
	}
	if len(c.Matching.Weights) == 0 {
		return fmt.Errorf("matching weights must not be empty")
	}
	for name, w := range c.Matching.Weights {
		if w < 0 {
			return fmt.Errorf("weight %q is negative (%.4f)", name, w)
		}
	}
	return nil
}

// ValidateCronSchedule validates a cron schedule expression (standard 5-field format)
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("schedule cannot be empty")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// QueuePollInterval parses the queue poll interval with a safe fallback.
func (c *Config) QueuePollInterval() time.Duration {
	d, err := time.ParseDuration(c.Queue.PollInterval)
	if err != nil || d <= 0 {
		return 250 * time.Millisecond
	}
	return d
}

// QueueVisibilityTimeout parses the queue visibility timeout with a safe fallback.
func (c *Config) QueueVisibilityTimeout() time.Duration {
	d, err := time.ParseDuration(c.Queue.VisibilityTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables → KV store → config fallback → error.
// This ensures CONGRUO_* environment variables always take precedence.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"CONGRUO_GEMINI_API_KEY"},
		"anthropic_api_key": {"CONGRUO_CLAUDE_API_KEY"},
		"claude_api_key":    {"CONGRUO_CLAUDE_API_KEY"},
	}

	// For Claude, also check the standard ANTHROPIC_API_KEY env var
	if name == "anthropic_api_key" || name == "claude_api_key" {
		if envValue := os.Getenv("ANTHROPIC_API_KEY"); envValue != "" {
			return envValue, nil
		}
	}

	// Check environment variables (highest priority)
	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// Try to resolve from KV store (medium priority - file-based variables)
	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	// Fallback to config value (lowest priority)
	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// Helper functions for string manipulation
func splitString(s, sep string) []string {
	result := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if i+len(sep) <= len(s) && s[i:i+len(sep)] == sep {
			result = append(result, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	result = append(result, s[start:])
	return result
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}
