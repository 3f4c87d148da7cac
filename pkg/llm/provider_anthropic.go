package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/harun/chatline/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AnthropicProvider implements Provider for Anthropic Claude
type AnthropicProvider struct {
	client  anthropic.Client
	timeout time.Duration
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &AnthropicProvider{
		client:  anthropic.NewClient(opts...),
		timeout: timeout,
	}
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

// Call makes a Messages API call, streaming when request.Stream is set.
// Usage is mapped as input -> prompt and output -> completion tokens.
func (p *AnthropicProvider) Call(ctx context.Context, request Request) (*Response, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"chatline.llm",
		"llm.call",
		attribute.String("provider", ProviderAnthropic),
		attribute.String("model", request.Model),
		attribute.String("mode", mode(request.Stream)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := p.params(request)

	var (
		message *anthropic.Message
		err     error
	)
	if request.Stream {
		message, err = p.stream(ctx, params, request)
	} else {
		message, err = p.client.Messages.New(ctx, params)
	}
	if err != nil {
		err = anthropicTransportError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var content strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}

	input := int(message.Usage.InputTokens)
	output := int(message.Usage.OutputTokens)
	return &Response{
		Content: content.String(),
		Usage: Usage{
			PromptTokens:     input,
			CompletionTokens: output,
			TotalTokens:      input + output,
		},
	}, nil
}

func (p *AnthropicProvider) params(request Request) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(request.Messages))
	var system []anthropic.TextBlockParam

	for _, msg := range request.Messages {
		switch msg.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  messages,
		MaxTokens: int64(request.MaxTokens),
	}
	if len(system) > 0 {
		params.System = system
	}
	return params
}

func (p *AnthropicProvider) stream(ctx context.Context, params anthropic.MessageNewParams, request Request) (*anthropic.Message, error) {
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("failed to accumulate stream event: %w", err)
		}

		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
				request.emit(text.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &message, nil
}

func anthropicTransportError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &TransportError{StatusCode: apiErr.StatusCode, Err: err}
	}
	return &TransportError{Err: err}
}
