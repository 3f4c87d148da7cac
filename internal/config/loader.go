package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CHATLINE_API_MODEL
const EnvPrefix = "CHATLINE"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader. An empty path selects
// $HOME/.chatline/config.json.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load layers defaults, the config file and the environment, then falls
// back to the dotenv file for the API key.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.api_key", EnvPrefix+"_API_API_KEY", "API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	// Read config file if present
	configPath := l.GetConfigPath()
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// Unmarshal into config struct
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.API.APIKey == "" && cfg.Paths.EnvFile != "" {
		key, err := readDotenvKey(cfg.Paths.EnvFile)
		if err != nil {
			return nil, err
		}
		cfg.API.APIKey = key
	}

	return cfg, nil
}

// Save writes the configuration as JSON with owner-only permissions
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigPermissions(0600)

	v.Set("api", cfg.API)
	v.Set("paths", cfg.Paths)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("tracing", cfg.Tracing)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".chatline", "config.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}

// setDefaults registers every key so AutomaticEnv overrides reach Unmarshal
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.provider", cfg.API.Provider)
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.api_key", cfg.API.APIKey)
	v.SetDefault("api.model", cfg.API.Model)
	v.SetDefault("api.max_tokens", cfg.API.MaxTokens)
	v.SetDefault("api.stream", cfg.API.Stream)
	v.SetDefault("api.timeout_seconds", cfg.API.TimeoutSeconds)

	v.SetDefault("paths.history_dir", cfg.Paths.HistoryDir)
	v.SetDefault("paths.active_chat_file", cfg.Paths.ActiveChatFile)
	v.SetDefault("paths.input_file", cfg.Paths.InputFile)
	v.SetDefault("paths.output_file", cfg.Paths.OutputFile)
	v.SetDefault("paths.env_file", cfg.Paths.EnvFile)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)

	v.SetDefault("metrics.textfile", cfg.Metrics.Textfile)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.file", cfg.Tracing.File)
}

// readDotenvKey reads API_KEY from a dotenv file. A missing file yields "".
func readDotenvKey(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to stat env file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("failed to read env file: %w", err)
	}

	return strings.TrimSpace(v.GetString("api_key")), nil
}
