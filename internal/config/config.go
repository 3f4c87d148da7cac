package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingAPIKey is returned when no API key was found in any source
	ErrMissingAPIKey = errors.New("API key is required (--api-key, API_KEY, config file or .env)")
	// ErrInvalidConfig is returned for any other invalid setting
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config represents the main chatline configuration
type Config struct {
	// Remote completion API
	API APIConfig `json:"api" mapstructure:"api"`

	// Files the session works with
	Paths PathsConfig `json:"paths" mapstructure:"paths"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// APIConfig holds the completion API settings
type APIConfig struct {
	Provider       string `json:"provider" mapstructure:"provider"` // openai, anthropic
	BaseURL        string `json:"base_url" mapstructure:"base_url"` // empty selects the provider default
	APIKey         string `json:"api_key" mapstructure:"api_key"`
	Model          string `json:"model" mapstructure:"model"`
	MaxTokens      int    `json:"max_tokens" mapstructure:"max_tokens"`
	Stream         bool   `json:"stream" mapstructure:"stream"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// PathsConfig holds the locations of history, pointer, input and output files
type PathsConfig struct {
	HistoryDir     string `json:"history_dir" mapstructure:"history_dir"`
	ActiveChatFile string `json:"active_chat_file" mapstructure:"active_chat_file"`
	InputFile      string `json:"input_file" mapstructure:"input_file"`
	OutputFile     string `json:"output_file" mapstructure:"output_file"`
	EnvFile        string `json:"env_file" mapstructure:"env_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	MaxSize    int    `json:"max_size" mapstructure:"max_size"`
	MaxAge     int    `json:"max_age" mapstructure:"max_age"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
	Redaction  bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds metrics output configuration
type MetricsConfig struct {
	// Textfile is a node_exporter textfile collector path; empty disables it
	Textfile string `json:"textfile" mapstructure:"textfile"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// File receives finished spans as JSON lines; empty means stderr
	File string `json:"file" mapstructure:"file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Provider:       "openai",
			Model:          "codestral-latest",
			MaxTokens:      8192,
			Stream:         true,
			TimeoutSeconds: 120,
		},
		Paths: PathsConfig{
			HistoryDir:     "history",
			ActiveChatFile: "history/active_chat.json",
			InputFile:      "input.txt",
			OutputFile:     "output.md",
			EnvFile:        ".env",
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSize:    10,
			MaxAge:     30,
			MaxBackups: 3,
			Compress:   true,
			Redaction:  true,
		},
	}
}

// String returns a JSON representation of the config with the API key masked
func (c *Config) String() string {
	masked := *c
	masked.API.APIKey = maskKey(c.API.APIKey)
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.API.APIKey == "" {
		return ErrMissingAPIKey
	}

	v := NewValidator()
	if errs := v.ValidateConfig(c); len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
