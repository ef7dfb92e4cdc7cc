// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// API auth: "api-key", "jwt" or "none"
	AuthMode  string `envconfig:"AUTH_MODE" default:"api-key"`
	APIKey    string `envconfig:"API_KEY"`
	JWTSecret string `envconfig:"JWT_SECRET"`

	// Model provider
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	Model           string `envconfig:"MODEL" default:"claude-sonnet-4-5"`
	MaxTokens       int    `envconfig:"MAX_TOKENS" default:"4096"`

	// Conversation engine
	MaxQuestions int    `envconfig:"MAX_QUESTIONS" default:"10"`
	PromptsPath  string `envconfig:"PROMPTS_PATH"` // optional YAML prompt pack override

	// Persistence (optional; engine runs without durable history if empty)
	DBPath string `envconfig:"DB_PATH"`

	// Live view
	SSEKeepAlive    time.Duration `envconfig:"SSE_KEEPALIVE" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case "api-key":
		if c.APIKey == "" {
			return fmt.Errorf("AUTH_MODE=api-key requires API_KEY")
		}
	case "jwt":
		if c.JWTSecret == "" {
			return fmt.Errorf("AUTH_MODE=jwt requires JWT_SECRET")
		}
	case "none":
	default:
		return fmt.Errorf("unknown AUTH_MODE: %s", c.AuthMode)
	}

	if c.MaxQuestions <= 0 {
		return fmt.Errorf("MAX_QUESTIONS must be positive, got %d", c.MaxQuestions)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.SSEKeepAlive <= 0 {
		return fmt.Errorf("SSE_KEEPALIVE must be positive")
	}
	return nil
}

// ModelEnabled returns true if a real model provider is configured.
func (c *Config) ModelEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// PersistenceEnabled returns true if a durable store is configured.
func (c *Config) PersistenceEnabled() bool {
	return c.DBPath != ""
}
