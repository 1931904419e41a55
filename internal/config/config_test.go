// Package config provides configuration management for the narrative service.
package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "POTERO_") {
			key := strings.SplitN(env, "=", 2)[0]
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			HTTPPort:    8080,
			MetricsPort: 9091,
		},
		Database: DatabaseConfig{
			Path:        "potero.db",
			BusyTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		LLM: LLMConfig{
			Provider:       "anthropic",
			Timeout:        2 * time.Minute,
			Temperature:    0.7,
			MaxTokens:      8192,
			RateLimitRPS:   2.0,
			RateLimitBurst: 4,
		},
		Jobs: JobsConfig{
			MaxConcurrent:   3,
			Retention:       5 * time.Minute,
			CleanupInterval: 30 * time.Second,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)

	// Database defaults
	assert.Equal(t, "potero.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Metrics defaults
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	// LLM defaults
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.Equal(t, 8192, cfg.LLM.MaxTokens)
	assert.Equal(t, 200, cfg.LLM.UsageLogEntries)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.Anthropic.Model)
	assert.Equal(t, "gpt-4o", cfg.LLM.OpenAI.Model)

	// Narrative defaults
	assert.Equal(t, []string{"longform", "journalistic", "casual"}, cfg.Narrative.Styles)
	assert.Equal(t, []string{"en"}, cfg.Narrative.Languages)
	assert.True(t, cfg.Narrative.ExplainConcepts)

	// Jobs defaults
	assert.Equal(t, 3, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.Retention)
	assert.Equal(t, 30*time.Second, cfg.Jobs.CleanupInterval)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("POTERO_SERVER_HTTP_PORT", "8888")
	t.Setenv("POTERO_DATABASE_PATH", "/tmp/test.db")
	t.Setenv("POTERO_LOGGING_LEVEL", "debug")
	t.Setenv("POTERO_LLM_PROVIDER", "openai")
	t.Setenv("POTERO_JOBS_MAX_CONCURRENT", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Jobs.MaxConcurrent)
}

func TestLoad_APIKeysFromEnvOnly(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("POTERO_LLM_OPENAI_API_KEY", "sk-openai-test")
	t.Setenv("POTERO_LLM_ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-openai-test", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "sk-ant-test", cfg.LLM.Anthropic.APIKey)
}

func TestLoad_APIKeysEmptyByDefault(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load()
	require.NoError(t, err)

	// Missing keys load fine; the LLM gateway rejects calls at runtime.
	assert.Empty(t, cfg.LLM.OpenAI.APIKey)
	assert.Empty(t, cfg.LLM.Anthropic.APIKey)
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectedErr string
	}{
		{
			name: "HTTP port zero",
			modifyFunc: func(c *Config) {
				c.Server.HTTPPort = 0
			},
			expectedErr: "invalid HTTP port: 0",
		},
		{
			name: "HTTP port too high",
			modifyFunc: func(c *Config) {
				c.Server.HTTPPort = 70000
			},
			expectedErr: "invalid HTTP port: 70000",
		},
		{
			name: "metrics port invalid",
			modifyFunc: func(c *Config) {
				c.Server.MetricsPort = -5
			},
			expectedErr: "invalid metrics port: -5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyFunc(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestValidate_Database(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Path = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database path is required")
}

func TestValidate_LogLevel(t *testing.T) {
	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	for _, level := range validLevels {
		t.Run("valid_"+level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logging.Level = level
			assert.NoError(t, cfg.Validate())
		})
	}

	t.Run("invalid log level", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Level = "invalid"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level: invalid")
	})
}

func TestValidate_LLMConfig(t *testing.T) {
	t.Run("unsupported provider", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLM.Provider = "bedrock"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported LLM provider: bedrock")
	})

	t.Run("temperature out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLM.Temperature = 2.5
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "temperature must be between 0 and 2")
	})

	t.Run("max tokens zero", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLM.MaxTokens = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_tokens must be positive")
	})

	t.Run("rate limit zero", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLM.RateLimitRPS = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate_limit_rps must be positive")
	})
}

func TestValidate_JobsConfig(t *testing.T) {
	t.Run("max concurrent zero", func(t *testing.T) {
		cfg := validConfig()
		cfg.Jobs.MaxConcurrent = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_concurrent must be positive")
	})

	t.Run("retention zero", func(t *testing.T) {
		cfg := validConfig()
		cfg.Jobs.Retention = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retention must be positive")
	})
}

func TestHTTPAddress(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", HTTPPort: 8080, MetricsPort: 9091}
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddress())
	assert.Equal(t, "127.0.0.1:9091", cfg.MetricsAddress())
}
