package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/harun/chatline/internal/observability"
	"github.com/harun/chatline/internal/tracing"
	"github.com/harun/chatline/pkg/transcript"
	"github.com/rs/zerolog/log"
)

// Source says how the transcript for an invocation was chosen
type Source string

const (
	// SourceNew is a fresh transcript requested with --new or with no active chat
	SourceNew Source = "new"
	// SourceContinued is the transcript named by the active pointer
	SourceContinued Source = "continued"
	// SourceFallback is a fresh transcript because the active pointer was stale
	SourceFallback Source = "fallback"
	// SourceLoaded is a transcript opened explicitly by name
	SourceLoaded Source = "loaded"
)

// Resolution is the transcript an invocation works on
type Resolution struct {
	Transcript *transcript.Transcript
	// Filename is empty until a new transcript is first saved
	Filename string
	Source   Source
}

// Resolver picks the transcript to continue or creates a new one. It never
// writes.
type Resolver struct {
	store   *TranscriptStore
	pointer ActivePointer
	model   string
	now     func() time.Time
	out     io.Writer
}

// NewResolver creates a resolver. Narration goes to out.
func NewResolver(store *TranscriptStore, pointer ActivePointer, model string, now func() time.Time, out io.Writer) *Resolver {
	if now == nil {
		now = time.Now
	}
	if out == nil {
		out = io.Discard
	}
	return &Resolver{
		store:   store,
		pointer: pointer,
		model:   model,
		now:     now,
		out:     out,
	}
}

// Resolve returns a new transcript when newChat is set; otherwise the active
// one, falling back to a new transcript when the pointer is missing,
// unreadable or stale.
func (r *Resolver) Resolve(ctx context.Context, newChat bool) (*Resolution, error) {
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	if newChat {
		return r.fresh(SourceNew), nil
	}

	active, err := r.pointer.Get()
	if err != nil {
		logger.Warn().Err(err).Msg("Ignoring unreadable active chat pointer")
		fmt.Fprintln(r.out, "Active chat file not found. Creating new chat.")
		return r.fresh(SourceFallback), nil
	}
	if active == "" {
		return r.fresh(SourceNew), nil
	}

	t, err := r.store.Load(ctx, active)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidFilename) {
			return nil, err
		}
		logger.Debug().Err(err).Str("chat_file", active).Msg("Active chat pointer is stale")
		fmt.Fprintln(r.out, "Active chat file not found. Creating new chat.")
		return r.fresh(SourceFallback), nil
	}

	fmt.Fprintf(r.out, "Continuing chat: %s\n", active)
	observability.RecordResolution(string(SourceContinued))

	return &Resolution{
		Transcript: t,
		Filename:   active,
		Source:     SourceContinued,
	}, nil
}

func (r *Resolver) fresh(source Source) *Resolution {
	observability.RecordResolution(string(source))
	return &Resolution{
		Transcript: transcript.NewTranscript(r.model, r.now()),
		Source:     source,
	}
}
