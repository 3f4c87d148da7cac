package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a new configuration wizard reading answers from in
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard starting from base.
// Empty answers keep the value from base.
func (w *Wizard) Run(base *Config) (*Config, error) {
	fmt.Fprintln(w.out, "=== chatline configuration ===")
	fmt.Fprintln(w.out)

	cfg := *base
	validator := NewValidator()

	// Provider
	for {
		provider, err := w.ask("Provider (openai/anthropic)", cfg.API.Provider)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateProvider(provider); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.API.Provider = provider
		break
	}

	// Base URL
	for {
		baseURL, err := w.ask("Base URL (empty for provider default)", cfg.API.BaseURL)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateBaseURL(baseURL); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.API.BaseURL = baseURL
		break
	}

	// API key
	for {
		fmt.Fprint(w.out, "API key (press Enter to keep current): ")
		key, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if key == "" {
			break
		}
		if err := validator.ValidateAPIKey(key, cfg.API.Provider); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.API.APIKey = key
		break
	}

	// Model
	model, err := w.ask("Model", cfg.API.Model)
	if err != nil {
		return nil, err
	}
	cfg.API.Model = model

	// Streaming
	def := "y"
	if !cfg.API.Stream {
		def = "n"
	}
	stream, err := w.ask("Stream responses? (y/n)", def)
	if err != nil {
		return nil, err
	}
	cfg.API.Stream = strings.EqualFold(stream, "y") || strings.EqualFold(stream, "yes")

	// Log level
	level, err := w.ask("Log level (debug/info/warn/error)", cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, keeping %s\n", err, cfg.Logging.Level)
	} else {
		cfg.Logging.Level = level
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return &cfg, nil
}

func (w *Wizard) ask(prompt, current string) (string, error) {
	fmt.Fprintf(w.out, "%s [%s]: ", prompt, current)
	answer, err := w.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return current, nil
	}
	return answer, nil
}

// readLine returns one trimmed line; a final line without newline is accepted
func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
