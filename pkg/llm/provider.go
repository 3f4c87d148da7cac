package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider names
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultTimeout bounds a whole exchange, including reading a stream
const DefaultTimeout = 120 * time.Second

// Provider is an interface for completion API providers
type Provider interface {
	// Call sends the conversation and returns the assistant reply
	Call(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Message is one entry of the conversation history sent to the API
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains the parameters for one exchange
type Request struct {
	Model     string
	Messages  []Message
	MaxTokens int
	Stream    bool

	// OnDelta receives each streamed content fragment as it arrives.
	// It is not called in batched mode.
	OnDelta func(fragment string)
}

// Usage is the token accounting reported for one exchange
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized result of an exchange in either mode
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// ProviderConfig selects and configures a provider
type ProviderConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// NewProvider creates a provider from its configuration
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s provider requires an API key", cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIProvider(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

func (r Request) emit(fragment string) {
	if r.OnDelta != nil && fragment != "" {
		r.OnDelta(fragment)
	}
}

func mode(stream bool) string {
	if stream {
		return "stream"
	}
	return "batch"
}
