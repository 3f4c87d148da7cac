package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProvider validates the API provider name
func (v *Validator) ValidateProvider(provider string) error {
	validProviders := []string{"openai", "anthropic"}
	for _, valid := range validProviders {
		if provider == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid provider: %s (must be one of: %s)", provider, strings.Join(validProviders, ", "))
}

// ValidateAPIKey validates an API key. Only the anthropic format is
// checked; OpenAI-compatible endpoints issue keys of any shape.
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}
	if strings.ContainsAny(key, " \t\r\n") {
		return fmt.Errorf("API key must not contain whitespace")
	}

	if provider == "anthropic" && !strings.HasPrefix(key, "sk-ant-") {
		return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
	}

	return nil
}

// ValidateBaseURL validates the API base URL. Empty means the provider default.
func (v *Validator) ValidateBaseURL(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base URL %q: missing host", raw)
	}

	return nil
}

// ValidateModel validates a model name
func (v *Validator) ValidateModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateTimeout validates the request timeout in seconds
func (v *Validator) ValidateTimeout(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", seconds)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidatePaths checks that the file locations the session needs are set
func (v *Validator) ValidatePaths(paths PathsConfig) []error {
	var errors []error

	required := []struct {
		key   string
		value string
	}{
		{"paths.history_dir", paths.HistoryDir},
		{"paths.active_chat_file", paths.ActiveChatFile},
		{"paths.input_file", paths.InputFile},
		{"paths.output_file", paths.OutputFile},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errors = append(errors, fmt.Errorf("%s cannot be empty", r.key))
		}
	}

	return errors
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateProvider(cfg.API.Provider); err != nil {
		errors = append(errors, err)
	} else if cfg.API.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.API.APIKey, cfg.API.Provider); err != nil {
			errors = append(errors, err)
		}
	}
	if err := v.ValidateBaseURL(cfg.API.BaseURL); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateModel(cfg.API.Model); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateMaxTokens(cfg.API.MaxTokens); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateTimeout(cfg.API.TimeoutSeconds); err != nil {
		errors = append(errors, err)
	}

	errors = append(errors, v.ValidatePaths(cfg.Paths)...)

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if cfg.Logging.MaxSize < 0 || cfg.Logging.MaxAge < 0 || cfg.Logging.MaxBackups < 0 {
		errors = append(errors, fmt.Errorf("logging rotation limits must be >= 0"))
	}

	return errors
}
