package session

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harun/chatline/pkg/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*Resolver, *TranscriptStore, *FilePointer, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	store := NewTranscriptStore(dir)
	pointer := NewFilePointer(filepath.Join(dir, "active_chat.json"))
	now := func() time.Time { return time.Date(2026, 1, 22, 1, 7, 57, 0, time.Local) }

	var out bytes.Buffer
	return NewResolver(store, pointer, "test-model", now, &out), store, pointer, &out
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("no active chat", func(t *testing.T) {
		r, _, _, out := newTestResolver(t)

		res, err := r.Resolve(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, SourceNew, res.Source)
		assert.Empty(t, res.Filename)
		assert.Empty(t, res.Transcript.Messages)
		assert.Equal(t, "test-model", res.Transcript.Model)
		assert.Empty(t, out.String())
	})

	t.Run("continues active chat", func(t *testing.T) {
		r, store, pointer, out := newTestResolver(t)

		existing := transcript.NewTranscript("test-model", time.Date(2026, 1, 20, 9, 0, 0, 0, time.Local))
		existing.AppendExchange("hi", "hello", transcript.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, time.Now())
		name := existing.Filename()
		require.NoError(t, store.Save(ctx, name, existing))
		require.NoError(t, pointer.Set(name))

		res, err := r.Resolve(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, SourceContinued, res.Source)
		assert.Equal(t, name, res.Filename)
		assert.Len(t, res.Transcript.Messages, 2)
		assert.Equal(t, "Continuing chat: "+name+"\n", out.String())
	})

	t.Run("new ignores pointer", func(t *testing.T) {
		r, _, pointer, out := newTestResolver(t)
		require.NoError(t, pointer.Set("2026-01-20T090000.json"))

		res, err := r.Resolve(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, SourceNew, res.Source)
		assert.Empty(t, res.Filename)
		assert.Empty(t, out.String())
	})

	t.Run("stale pointer falls back", func(t *testing.T) {
		r, _, pointer, out := newTestResolver(t)
		require.NoError(t, pointer.Set("2026-01-20T090000.json"))

		res, err := r.Resolve(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, SourceFallback, res.Source)
		assert.Empty(t, res.Filename)
		assert.Equal(t, "Active chat file not found. Creating new chat.\n", out.String())
	})

	t.Run("corrupt transcript is an error", func(t *testing.T) {
		r, store, pointer, _ := newTestResolver(t)
		name := "2026-01-20T090000.json"
		require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), name), []byte(`{"messages": "nope"}`), 0644))
		require.NoError(t, pointer.Set(name))

		_, err := r.Resolve(ctx, false)
		assert.ErrorIs(t, err, ErrInvalidTranscript)
	})
}
