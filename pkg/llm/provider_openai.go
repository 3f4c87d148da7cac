package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harun/chatline/internal/tracing"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultCompatibleBaseURL is used when no base URL is configured. Any
// endpoint speaking the chat completions protocol works.
const DefaultCompatibleBaseURL = "https://api.mistral.ai/v1/"

const chatCompletionsPath = "chat/completions"

// OpenAIProvider implements Provider for OpenAI-compatible chat completion APIs
type OpenAIProvider struct {
	client  openai.Client
	timeout time.Duration
}

// NewOpenAIProvider creates a new OpenAI-compatible provider
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultCompatibleBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OpenAIProvider{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
		timeout: timeout,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

// Call makes a chat completion call, streaming when request.Stream is set
func (p *OpenAIProvider) Call(ctx context.Context, request Request) (*Response, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"chatline.llm",
		"llm.call",
		attribute.String("provider", ProviderOpenAI),
		attribute.String("model", request.Model),
		attribute.String("mode", mode(request.Stream)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var (
		resp *Response
		err  error
	)
	if request.Stream {
		resp, err = p.stream(ctx, request)
	} else {
		resp, err = p.batch(ctx, request)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("usage.total_tokens", resp.Usage.TotalTokens))
	return resp, nil
}

func (p *OpenAIProvider) params(request Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(request.Messages))
	for _, msg := range request.Messages {
		switch msg.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(request.Model),
		Messages: messages,
	}
	if request.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(request.MaxTokens))
	}
	return params
}

func (p *OpenAIProvider) batch(ctx context.Context, request Request) (*Response, error) {
	completion, err := p.client.Chat.Completions.New(
		ctx,
		p.params(request),
		option.WithJSONSet("stream", false),
	)
	if err != nil {
		return nil, transportError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &TransportError{Err: fmt.Errorf("no response choices returned")}
	}

	return &Response{
		Content: completion.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

// stream posts the request and reads the raw event stream itself so that a
// malformed chunk can be skipped instead of ending the stream.
func (p *OpenAIProvider) stream(ctx context.Context, request Request) (*Response, error) {
	var raw *http.Response
	err := p.client.Post(
		ctx,
		chatCompletionsPath,
		p.params(request),
		&raw,
		option.WithJSONSet("stream", true),
		option.WithHeader("Accept", "text/event-stream"),
	)
	if err != nil {
		return nil, transportError(err)
	}

	decoder := newStreamDecoder(raw)
	if decoder == nil {
		return nil, &TransportError{Err: fmt.Errorf("empty stream response")}
	}

	log.Debug().Int("status", raw.StatusCode).Str("content_type", raw.Header.Get("Content-Type")).Msg("Stream opened")
	return consumeStream(decoder, request)
}

func transportError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &TransportError{StatusCode: apiErr.StatusCode, Err: err}
	}
	return &TransportError{Err: err}
}
