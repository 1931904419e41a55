// Package config provides configuration management for the narrative service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the narrative service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains SQLite settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains LLM client settings for the generation pipeline.
	LLM LLMConfig `mapstructure:"llm"`
	// Narrative contains pipeline tuning knobs.
	Narrative NarrativeConfig `mapstructure:"narrative"`
	// Jobs contains background job queue settings.
	Jobs JobsConfig `mapstructure:"jobs"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 127.0.0.1).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. Streaming
	// endpoints need this generous.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file path. ":memory:" keeps everything
	// in process memory.
	Path string `mapstructure:"path"`
	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	// Provider is the LLM provider (anthropic, openai).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// MaxTokens is the maximum number of tokens per completion.
	MaxTokens int `mapstructure:"max_tokens"`
	// RateLimitRPS is the requests per second limit across all calls.
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
	// RateLimitBurst is the burst size for the rate limiter.
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
	// UsageLogEntries is how many LLM calls the in-memory usage log keeps.
	UsageLogEntries int `mapstructure:"usage_log_entries"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from POTERO_LLM_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from POTERO_LLM_ANTHROPIC_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Anthropic model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// NarrativeConfig holds generation pipeline settings.
type NarrativeConfig struct {
	// Styles are the default styles generated when a request names none.
	Styles []string `mapstructure:"styles"`
	// Languages are the default languages generated when a request names none.
	Languages []string `mapstructure:"languages"`
	// ExplainConcepts enables the concept simplification stage.
	ExplainConcepts bool `mapstructure:"explain_concepts"`
}

// JobsConfig holds background job queue settings.
type JobsConfig struct {
	// MaxConcurrent bounds how many jobs run at once.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// Retention is how long finished jobs stay queryable.
	Retention time.Duration `mapstructure:"retention"`
	// CleanupInterval is how often expired jobs are purged.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("POTERO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/potero")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.LLM.OpenAI.APIKey = os.Getenv("POTERO_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv("POTERO_LLM_ANTHROPIC_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "15m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.path", "potero.db")
	v.SetDefault("database.busy_timeout", "5s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// LLM defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.rate_limit_rps", 2.0)
	v.SetDefault("llm.rate_limit_burst", 4)
	v.SetDefault("llm.usage_log_entries", 200)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Narrative defaults
	v.SetDefault("narrative.styles", []string{"longform", "journalistic", "casual"})
	v.SetDefault("narrative.languages", []string{"en"})
	v.SetDefault("narrative.explain_concepts", true)

	// Jobs defaults
	v.SetDefault("jobs.max_concurrent", 3)
	v.SetDefault("jobs.retention", "5m")
	v.SetDefault("jobs.cleanup_interval", "30s")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate database config
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate LLM config. API keys are deliberately not validated here:
	// the provider can be switched at runtime and the gateway rejects calls
	// with a missing credential.
	switch strings.ToLower(c.LLM.Provider) {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM max_tokens must be positive")
	}
	if c.LLM.RateLimitRPS <= 0 {
		return fmt.Errorf("LLM rate_limit_rps must be positive")
	}

	// Validate jobs config
	if c.Jobs.MaxConcurrent <= 0 {
		return fmt.Errorf("jobs max_concurrent must be positive")
	}
	if c.Jobs.Retention <= 0 {
		return fmt.Errorf("jobs retention must be positive")
	}

	return nil
}
