package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harun/chatline/pkg/llm"
	"github.com/harun/chatline/pkg/render"
	"github.com/harun/chatline/pkg/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Call(ctx context.Context, request llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*llm.Response)
	return resp, args.Error(1)
}

func (m *mockProvider) Name() string {
	return "mock"
}

// streamFragments makes the mock emit fragments through OnDelta
func streamFragments(fragments ...string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		req := args.Get(1).(llm.Request)
		for _, f := range fragments {
			req.OnDelta(f)
		}
	}
}

func historyLen(n int) interface{} {
	return mock.MatchedBy(func(r llm.Request) bool { return len(r.Messages) == n })
}

type testEnv struct {
	dir     string
	store   *TranscriptStore
	pointer *FilePointer
	out     *bytes.Buffer
	output  string
	input   string
	clock   *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	history := filepath.Join(dir, "history")
	return &testEnv{
		dir:     dir,
		store:   NewTranscriptStore(history),
		pointer: NewFilePointer(filepath.Join(history, "active_chat.json")),
		out:     &bytes.Buffer{},
		output:  filepath.Join(dir, "output.md"),
		input:   filepath.Join(dir, "input.txt"),
		clock:   &fakeClock{now: time.Date(2026, 1, 22, 1, 7, 57, 0, time.Local)},
	}
}

func (e *testEnv) manager(t *testing.T, provider llm.Provider, stream bool) *Manager {
	t.Helper()
	mgr, err := NewManager(Config{
		Store:      e.store,
		Pointer:    e.pointer,
		Provider:   provider,
		Renderer:   render.NewFileRenderer(e.output),
		Output:     e.out,
		Model:      "codestral-latest",
		MaxTokens:  8192,
		Stream:     stream,
		InputFile:  e.input,
		OutputFile: e.output,
		Now:        e.clock.Now,
	})
	require.NoError(t, err)
	return mgr
}

func (e *testEnv) active(t *testing.T) string {
	t.Helper()
	name, err := e.pointer.Get()
	require.NoError(t, err)
	return name
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func reply(content string, prompt, completion int) *llm.Response {
	return &llm.Response{
		Content: content,
		Usage: llm.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}
}

func TestNewManager(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing store", Config{Pointer: env.pointer, Provider: provider, Renderer: render.NewFileRenderer(env.output)}},
		{"missing pointer", Config{Store: env.store, Provider: provider, Renderer: render.NewFileRenderer(env.output)}},
		{"missing provider", Config{Store: env.store, Pointer: env.pointer, Renderer: render.NewFileRenderer(env.output)}},
		{"missing renderer", Config{Store: env.store, Pointer: env.pointer, Provider: provider}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestRunNewSession(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{}
	provider.On("Call", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
		return r.Model == "codestral-latest" &&
			r.MaxTokens == 8192 &&
			!r.Stream &&
			len(r.Messages) == 1 &&
			r.Messages[0] == llm.Message{Role: "user", Content: "hello"}
	})).Return(reply("hi there", 5, 3), nil).Once()

	result, err := env.manager(t, provider, false).Run(context.Background(), Request{Prompt: "hello", New: true})

	require.NoError(t, err)
	provider.AssertExpectations(t)

	assert.True(t, result.Created)
	assert.Equal(t, SourceNew, result.Source)
	assert.Equal(t, "2026-01-22T010757.json", result.Filename)
	assert.Equal(t, "hi there", result.Reply)

	saved, err := env.store.Load(context.Background(), result.Filename)
	require.NoError(t, err)
	assert.Equal(t, []transcript.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}, saved.Messages)
	assert.Equal(t, transcript.Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8}, saved.Usage)
	assert.Equal(t, "codestral-latest", saved.Model)

	assert.Equal(t, result.Filename, env.active(t))

	md := readFile(t, env.output)
	assert.Contains(t, md, "## User\n\nhello")
	assert.Contains(t, md, "## Assistant\n\nhi there")
	assert.Contains(t, md, "- Prompt Tokens: 5")
	assert.Contains(t, md, "- Completion Tokens: 3")
	assert.Contains(t, md, "- Total Tokens: 8")

	out := env.out.String()
	assert.Contains(t, out, "Sending message to AI...")
	assert.Contains(t, out, "Created new chat: 2026-01-22T010757.json")
	assert.Contains(t, out, "Response written to "+env.output)
	assert.Contains(t, out, "ASSISTANT:\n")
	assert.Contains(t, out, "hi there\n")
}

func TestRunContinue(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{}
	mgr := env.manager(t, provider, false)

	const turns = 3
	var first string
	for i := 0; i < turns; i++ {
		provider.On("Call", mock.Anything, historyLen(2*i+1)).Return(reply("ok", 10+i, 2), nil).Once()

		result, err := mgr.Run(context.Background(), Request{Prompt: "turn"})
		require.NoError(t, err)

		if i == 0 {
			first = result.Filename
			assert.True(t, result.Created)
		} else {
			assert.Equal(t, first, result.Filename)
			assert.Equal(t, SourceContinued, result.Source)
			assert.False(t, result.Created)
		}
	}
	provider.AssertExpectations(t)

	saved, err := env.store.Load(context.Background(), first)
	require.NoError(t, err)
	assert.Len(t, saved.Messages, 2*turns)
	assert.Equal(t, transcript.Usage{PromptTokens: 33, CompletionTokens: 6, TotalTokens: 39}, saved.Usage)
	assert.True(t, saved.LastUpdatedAt.After(saved.CreatedAt.Time))

	out := env.out.String()
	assert.Contains(t, out, "Continuing chat: "+first)
	assert.Contains(t, out, "Updated chat: "+first)
}

func TestRunNewIgnoresActiveChat(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{}
	provider.On("Call", mock.Anything, historyLen(1)).Return(reply("a", 1, 1), nil).Twice()
	mgr := env.manager(t, provider, false)

	r1, err := mgr.Run(context.Background(), Request{Prompt: "one"})
	require.NoError(t, err)
	r2, err := mgr.Run(context.Background(), Request{Prompt: "two", New: true})
	require.NoError(t, err)

	assert.NotEqual(t, r1.Filename, r2.Filename)
	assert.Equal(t, r2.Filename, env.active(t))
	assert.True(t, env.store.Exists(r1.Filename))
	provider.AssertExpectations(t)
}

func TestRunLoad(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{}
	provider.On("Call", mock.Anything, mock.Anything).Return(reply("hi there", 5, 3), nil).Twice()
	mgr := env.manager(t, provider, false)

	r1, err := mgr.Run(context.Background(), Request{Prompt: "first", New: true})
	require.NoError(t, err)
	r2, err := mgr.Run(context.Background(), Request{Prompt: "second", New: true})
	require.NoError(t, err)
	require.Equal(t, r2.Filename, env.active(t))

	before := readFile(t, filepath.Join(env.store.Dir(), r1.Filename))
	env.out.Reset()

	result, err := mgr.Run(context.Background(), Request{Load: r1.Filename, Prompt: "ignored", New: true})

	require.NoError(t, err)
	assert.True(t, result.Loaded)
	assert.Equal(t, SourceLoaded, result.Source)
	assert.Equal(t, r1.Filename, env.active(t))
	assert.Equal(t, before, readFile(t, filepath.Join(env.store.Dir(), r1.Filename)))
	assert.Contains(t, readFile(t, env.output), "## User\n\nfirst")
	assert.Equal(t, "Loaded chat: "+r1.Filename+"\n", env.out.String())

	// only the two exchanges above reached the provider
	provider.AssertNumberOfCalls(t, "Call", 2)
}

func TestRunLoadNotFound(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.pointer.Set("existing.json"))
	provider := &mockProvider{}

	_, err := env.manager(t, provider, false).Run(context.Background(), Request{Load: "missing.json"})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "missing.json")
	assert.Equal(t, "existing.json", env.active(t))
	assert.NoFileExists(t, env.output)
	provider.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestRunLoadRejectsPaths(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.manager(t, &mockProvider{}, false).Run(context.Background(), Request{Load: "../secret.json"})

	assert.ErrorIs(t, err, ErrInvalidFilename)
}

func TestRunDanglingPointer(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.pointer.Set("2020-01-01T000000.json"))
	provider := &mockProvider{}
	provider.On("Call", mock.Anything, historyLen(1)).Return(reply("fresh", 1, 1), nil).Once()

	result, err := env.manager(t, provider, false).Run(context.Background(), Request{Prompt: "hello"})

	require.NoError(t, err)
	assert.Equal(t, SourceFallback, result.Source)
	assert.True(t, result.Created)
	assert.Len(t, result.Transcript.Messages, 2)
	assert.Equal(t, result.Filename, env.active(t))
	assert.Contains(t, env.out.String(), "Active chat file not found. Creating new chat.")
}

func TestRunMalformedPointer(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.store.Dir(), 0755))
	require.NoError(t, os.WriteFile(env.pointer.Path(), []byte("{broken"), 0644))
	provider := &mockProvider{}
	provider.On("Call", mock.Anything, historyLen(1)).Return(reply("fresh", 1, 1), nil).Once()

	result, err := env.manager(t, provider, false).Run(context.Background(), Request{Prompt: "hello"})

	require.NoError(t, err)
	assert.Equal(t, SourceFallback, result.Source)
	assert.Equal(t, result.Filename, env.active(t))
}

func TestRunStreamingMatchesBatch(t *testing.T) {
	run := func(t *testing.T, stream bool) (*testEnv, *Result) {
		env := newTestEnv(t)
		provider := &mockProvider{}
		call := provider.On("Call", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
			return r.Stream == stream && (r.OnDelta != nil) == stream
		})).Return(reply("hi there", 5, 3), nil).Once()
		if stream {
			call.Run(streamFragments("hi", " ", "there"))
		}

		result, err := env.manager(t, provider, stream).Run(context.Background(), Request{Prompt: "hello"})
		require.NoError(t, err)
		provider.AssertExpectations(t)
		return env, result
	}

	batchEnv, batch := run(t, false)
	streamEnv, streamed := run(t, true)

	assert.Equal(t, batch.Filename, streamed.Filename)
	assert.Equal(t,
		readFile(t, filepath.Join(batchEnv.store.Dir(), batch.Filename)),
		readFile(t, filepath.Join(streamEnv.store.Dir(), streamed.Filename)),
	)
	assert.Equal(t, readFile(t, batchEnv.output), readFile(t, streamEnv.output))

	out := streamEnv.out.String()
	assert.Equal(t, 1, strings.Count(out, "ASSISTANT:"))
	assert.Contains(t, out, "ASSISTANT:\n"+strings.Repeat("=", 60)+"\nhi there\n"+strings.Repeat("=", 60))
	// the banner opens before persistence narration
	assert.Less(t, strings.Index(out, "hi there"), strings.Index(out, "Created new chat"))
}

func TestRunTransportFailure(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{}
	provider.On("Call", mock.Anything, historyLen(1)).Return(reply("hi there", 5, 3), nil).Once()
	mgr := env.manager(t, provider, false)

	first, err := mgr.Run(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)

	transcriptPath := filepath.Join(env.store.Dir(), first.Filename)
	beforeTranscript := readFile(t, transcriptPath)
	beforePointer := readFile(t, env.pointer.Path())
	beforeOutput := readFile(t, env.output)

	transportErr := &llm.TransportError{StatusCode: 500, Err: errors.New("internal error")}
	provider.On("Call", mock.Anything, historyLen(3)).Return(nil, transportErr).Once()

	_, err = mgr.Run(context.Background(), Request{Prompt: "again"})

	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrTransport)
	assert.Contains(t, err.Error(), "API request failed")
	assert.Equal(t, beforeTranscript, readFile(t, transcriptPath))
	assert.Equal(t, beforePointer, readFile(t, env.pointer.Path()))
	assert.Equal(t, beforeOutput, readFile(t, env.output))
	provider.AssertExpectations(t)
}

func TestRunTransportFailureOnNewSessionWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{}
	provider.On("Call", mock.Anything, mock.Anything).
		Return(nil, &llm.TransportError{Err: errors.New("connection refused")}).Once()

	_, err := env.manager(t, provider, true).Run(context.Background(), Request{Prompt: "hello", New: true})

	assert.ErrorIs(t, err, llm.ErrTransport)
	assert.NoDirExists(t, env.store.Dir())
	assert.NoFileExists(t, env.output)
	assert.NotContains(t, env.out.String(), "ASSISTANT:")
}

func TestRunPrompt(t *testing.T) {
	t.Run("empty prompt fails before any call", func(t *testing.T) {
		env := newTestEnv(t)
		provider := &mockProvider{}

		_, err := env.manager(t, provider, false).Run(context.Background(), Request{})

		assert.ErrorIs(t, err, ErrEmptyPrompt)
		assert.Contains(t, err.Error(), "no prompt provided")
		provider.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
		assert.NoDirExists(t, env.store.Dir())
	})

	t.Run("reads input file when no prompt given", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, os.WriteFile(env.input, []byte("\n  from the file \n\n"), 0644))
		provider := &mockProvider{}
		provider.On("Call", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
			return r.Messages[len(r.Messages)-1].Content == "from the file"
		})).Return(reply("ok", 1, 1), nil).Once()

		result, err := env.manager(t, provider, false).Run(context.Background(), Request{})

		require.NoError(t, err)
		assert.Equal(t, "from the file", result.Transcript.Messages[0].Content)
		provider.AssertExpectations(t)
	})
}
