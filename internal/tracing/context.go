package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for the ID of one CLI invocation
	RunIDKey ContextKey = "run_id"
	// ChatFileKey is the context key for the transcript file being worked on
	ChatFileKey ContextKey = "chat_file"
)

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithChatFile adds the transcript file name to the context
func WithChatFile(ctx context.Context, chatFile string) context.Context {
	return context.WithValue(ctx, ChatFileKey, chatFile)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// GetChatFile retrieves the transcript file name from the context
func GetChatFile(ctx context.Context) string {
	if chatFile, ok := ctx.Value(ChatFileKey).(string); ok {
		return chatFile
	}
	return ""
}

// NewRunContext starts the context for one invocation with a fresh run ID
func NewRunContext(ctx context.Context) context.Context {
	return WithRunID(ctx, NewRunID())
}

// LoggerFromContext returns baseLogger annotated with the tracing fields in ctx
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	logCtx := baseLogger.With()
	if traceID := GetTraceID(ctx); traceID != "" {
		logCtx = logCtx.Str("trace_id", traceID)
	}
	if runID := GetRunID(ctx); runID != "" {
		logCtx = logCtx.Str("run_id", runID)
	}
	if chatFile := GetChatFile(ctx); chatFile != "" {
		logCtx = logCtx.Str("chat_file", chatFile)
	}
	return logCtx.Logger()
}
