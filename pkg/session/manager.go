package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/harun/chatline/internal/observability"
	"github.com/harun/chatline/internal/tracing"
	"github.com/harun/chatline/pkg/llm"
	"github.com/harun/chatline/pkg/render"
	"github.com/harun/chatline/pkg/transcript"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Renderer regenerates the human-readable view of a transcript
type Renderer interface {
	Render(t *transcript.Transcript) error
}

// Config wires a Manager. Store, Pointer, Provider and Renderer are required.
type Config struct {
	Store    *TranscriptStore
	Pointer  ActivePointer
	Provider llm.Provider
	Renderer Renderer

	// Output receives narration and replies, typically os.Stdout
	Output io.Writer

	Model     string
	MaxTokens int
	Stream    bool

	// InputFile supplies the prompt when none is given
	InputFile string
	// OutputFile is the rendered view location, used for narration only
	OutputFile string

	// Now defaults to time.Now
	Now func() time.Time
}

// Request is one invocation
type Request struct {
	Prompt string
	New    bool
	// Load names a transcript to open instead of sending a message
	Load string
}

// Result describes what an invocation did
type Result struct {
	Filename   string
	Transcript *transcript.Transcript
	Reply      string
	Source     Source
	Created    bool
	Loaded     bool
}

// Manager runs the resolve, exchange, persist, render sequence
type Manager struct {
	cfg      Config
	resolver *Resolver
	console  *render.Console
}

// NewManager creates a Manager
func NewManager(cfg Config) (*Manager, error) {
	observability.EnsureRegistered()

	if cfg.Store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	if cfg.Pointer == nil {
		return nil, fmt.Errorf("session: active pointer is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("session: provider is required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("session: renderer is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	console := render.NewConsole(cfg.Output)

	return &Manager{
		cfg:      cfg,
		resolver: NewResolver(cfg.Store, cfg.Pointer, cfg.Model, cfg.Now, console.Writer()),
		console:  console,
	}, nil
}

// Run executes one invocation. Load takes precedence over New.
func (m *Manager) Run(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartSpan(
		ctx,
		"chatline.session",
		"session.run",
		attribute.Bool("new", req.New),
		attribute.String("load", req.Load),
	)
	defer span.End()

	var (
		result *Result
		err    error
	)
	if req.Load != "" {
		result, err = m.load(ctx, req.Load)
	} else {
		result, err = m.exchange(ctx, req)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("chat_file", result.Filename),
		attribute.String("source", string(result.Source)),
	)
	return result, nil
}

// load opens a transcript by name, makes it active and renders it. The
// transcript itself is never modified.
func (m *Manager) load(ctx context.Context, filename string) (*Result, error) {
	ctx = tracing.WithChatFile(ctx, filename)
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	t, err := m.cfg.Store.Load(ctx, filename)
	if err != nil {
		return nil, err
	}

	if err := m.cfg.Pointer.Set(filename); err != nil {
		return nil, err
	}
	observability.RecordResolution(string(SourceLoaded))
	m.console.Printf("Loaded chat: %s\n", filename)

	if err := m.cfg.Renderer.Render(t); err != nil {
		return nil, err
	}

	logger.Info().Int("messages", len(t.Messages)).Msg("Chat loaded")

	return &Result{
		Filename:   filename,
		Transcript: t,
		Source:     SourceLoaded,
		Loaded:     true,
	}, nil
}

// exchange continues or starts a transcript with one prompt/reply pair.
// Nothing is written unless the API call succeeds.
func (m *Manager) exchange(ctx context.Context, req Request) (*Result, error) {
	res, err := m.resolver.Resolve(ctx, req.New)
	if err != nil {
		return nil, err
	}
	if res.Filename != "" {
		ctx = tracing.WithChatFile(ctx, res.Filename)
	}

	prompt, err := ReadPrompt(req.Prompt, m.cfg.InputFile)
	if err != nil {
		return nil, err
	}

	t := res.Transcript
	messages := make([]llm.Message, 0, len(t.Messages)+1)
	for _, msg := range t.Messages {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: transcript.RoleUser, Content: prompt})

	m.console.Println("Sending message to AI...")

	resp, err := m.call(ctx, llm.Request{
		Model:     m.cfg.Model,
		Messages:  messages,
		MaxTokens: m.cfg.MaxTokens,
		Stream:    m.cfg.Stream,
	})
	if err != nil {
		return nil, err
	}

	t.AppendExchange(prompt, resp.Content, transcript.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, m.cfg.Now())

	filename := res.Filename
	created := filename == ""
	if created {
		filename = t.Filename()
		ctx = tracing.WithChatFile(ctx, filename)
	}
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	if err := m.cfg.Store.Save(ctx, filename, t); err != nil {
		return nil, err
	}
	if created {
		m.console.Printf("Created new chat: %s\n", filename)
	} else {
		m.console.Printf("Updated chat: %s\n", filename)
	}

	if err := m.cfg.Pointer.Set(filename); err != nil {
		return nil, err
	}

	if err := m.cfg.Renderer.Render(t); err != nil {
		return nil, err
	}
	m.console.Printf("\nResponse written to %s\n", m.cfg.OutputFile)

	if !m.cfg.Stream {
		m.console.AssistantReply(resp.Content)
	}

	logger.Info().
		Int("messages", len(t.Messages)).
		Int("total_tokens", t.Usage.TotalTokens).
		Str("source", string(res.Source)).
		Msg("Chat updated")

	return &Result{
		Filename:   filename,
		Transcript: t,
		Reply:      resp.Content,
		Source:     res.Source,
		Created:    created,
	}, nil
}

// call performs the API exchange, echoing streamed fragments between banners
// and recording metrics.
func (m *Manager) call(ctx context.Context, request llm.Request) (*llm.Response, error) {
	mode := "batch"
	opened := false
	if request.Stream {
		mode = "stream"
		request.OnDelta = func(fragment string) {
			if !opened {
				m.console.AssistantHeader()
				opened = true
			}
			m.console.Fragment(fragment)
		}
	}

	start := time.Now()
	resp, err := m.cfg.Provider.Call(ctx, request)
	observability.RecordExchange(m.cfg.Provider.Name(), mode, time.Since(start), err == nil)
	if err != nil {
		if opened {
			m.console.AssistantFooter()
		}
		return nil, err
	}

	if request.Stream {
		if !opened {
			m.console.AssistantHeader()
		}
		m.console.AssistantFooter()
	}

	observability.AddTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)

	return resp, nil
}
