package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/harun/chatline/internal/config"
	"github.com/harun/chatline/internal/logger"
	"github.com/harun/chatline/internal/observability"
	"github.com/harun/chatline/internal/tracing"
	"github.com/harun/chatline/pkg/llm"
	"github.com/harun/chatline/pkg/render"
	"github.com/harun/chatline/pkg/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app holds what one invocation needs: validated config, logger and tracing
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	tracer *tracing.Tracer
	traces io.Closer
}

// loadConfig loads the config file and applies command line overrides.
// With requireKey the result is fully validated.
func loadConfig(cmd *cobra.Command, requireKey bool) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if apiKey != "" {
		cfg.API.APIKey = apiKey
	}
	if model != "" {
		cfg.API.Model = model
	}
	if flags.Changed("stream") {
		cfg.API.Stream = stream
	}
	if noStream {
		cfg.API.Stream = false
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if requireKey {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// newApp loads config and sets up logging and tracing
func newApp(cmd *cobra.Command, requireKey bool) (*app, error) {
	cfg, err := loadConfig(cmd, requireKey)
	if err != nil {
		return nil, err
	}

	stderr := cmd.ErrOrStderr()
	lg, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		Console:    true,
		Pretty:     render.IsTerminal(stderr),
		Output:     stderr,
		Redaction:  cfg.Logging.Redaction,
		Secrets:    []string{cfg.API.APIKey},
		MaxSize:    cfg.Logging.MaxSize,
		MaxAge:     cfg.Logging.MaxAge,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: lg}
	if cfg.Tracing.Enabled {
		if err := a.startTracing(stderr); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		}
	}

	log.Debug().Str("config", cfg.String()).Msg("Configuration loaded")

	return a, nil
}

// startTracing exports spans to the configured file, or to stderr
func (a *app) startTracing(stderr io.Writer) error {
	out := stderr
	if path := a.cfg.Tracing.File; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		out = f
		a.traces = f
	}

	tracer, err := tracing.InitOpenTelemetry(tracing.Config{
		ServiceName: "chatline",
		Version:     version,
		Output:      out,
	})
	if err != nil {
		if a.traces != nil {
			_ = a.traces.Close()
			a.traces = nil
		}
		return err
	}
	a.tracer = tracer
	return nil
}

// Provider builds the configured completion API client
func (a *app) Provider() (llm.Provider, error) {
	return llm.NewProvider(llm.ProviderConfig{
		Provider: a.cfg.API.Provider,
		BaseURL:  a.cfg.API.BaseURL,
		APIKey:   a.cfg.API.APIKey,
		Timeout:  a.cfg.API.Timeout(),
	})
}

// Store returns the transcript store for the configured history directory
func (a *app) Store() *session.TranscriptStore {
	return session.NewTranscriptStore(a.cfg.Paths.HistoryDir)
}

// Pointer returns the configured active chat pointer
func (a *app) Pointer() *session.FilePointer {
	return session.NewFilePointer(a.cfg.Paths.ActiveChatFile)
}

// Manager wires a session manager printing to out
func (a *app) Manager(out io.Writer) (*session.Manager, error) {
	provider, err := a.Provider()
	if err != nil {
		return nil, err
	}

	return session.NewManager(session.Config{
		Store:      a.Store(),
		Pointer:    a.Pointer(),
		Provider:   provider,
		Renderer:   render.NewFileRenderer(a.cfg.Paths.OutputFile),
		Output:     out,
		Model:      a.cfg.API.Model,
		MaxTokens:  a.cfg.API.MaxTokens,
		Stream:     a.cfg.API.Stream,
		InputFile:  a.cfg.Paths.InputFile,
		OutputFile: a.cfg.Paths.OutputFile,
	})
}

// Close flushes metrics and traces and closes the log file
func (a *app) Close() {
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := observability.WriteTextfile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to write metrics textfile")
		}
	}

	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.tracer.Shutdown(ctx)
		if a.traces != nil {
			err = errors.Join(err, a.traces.Close())
		}
		if err != nil {
			log.Warn().Err(err).Msg("Failed to export traces")
		}
	}

	if err := a.log.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close log file")
	}
}
