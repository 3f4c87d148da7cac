package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harun/chatline/internal/observability"
	"github.com/harun/chatline/internal/tracing"
	"github.com/harun/chatline/pkg/transcript"
	"github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TranscriptStore reads and writes transcript files in one directory
type TranscriptStore struct {
	dir string
}

// Entry is one transcript found by List
type Entry struct {
	Filename   string
	Transcript *transcript.Transcript
}

// NewTranscriptStore creates a store rooted at dir. The directory is created
// on first save.
func NewTranscriptStore(dir string) *TranscriptStore {
	observability.EnsureRegistered()
	return &TranscriptStore{dir: dir}
}

// Dir returns the history directory
func (s *TranscriptStore) Dir() string {
	return s.dir
}

// ValidateFilename rejects names that are empty or could escape the
// history directory
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidFilename)
	}
	if strings.Contains(filename, "..") {
		return fmt.Errorf("%w: name cannot contain '..'", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: name cannot contain path separators", ErrInvalidFilename)
	}
	if strings.Contains(filename, "\x00") {
		return fmt.Errorf("%w: name cannot contain null bytes", ErrInvalidFilename)
	}
	return nil
}

func (s *TranscriptStore) path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// Exists reports whether a transcript file with this name exists
func (s *TranscriptStore) Exists(filename string) bool {
	if ValidateFilename(filename) != nil {
		return false
	}
	info, err := os.Stat(s.path(filename))
	return err == nil && info.Mode().IsRegular()
}

// Load reads and validates a transcript. A missing file yields ErrNotFound.
func (s *TranscriptStore) Load(ctx context.Context, filename string) (*transcript.Transcript, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartSpan(
		ctx,
		"chatline.session",
		"transcript.load",
		attribute.String("chat_file", filename),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	start := time.Now()
	defer func() { observability.RecordTranscriptLoad(time.Since(start)) }()

	if err := ValidateFilename(filename); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	data, err := os.ReadFile(s.path(filename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrNotFound, filename)
		} else {
			err = fmt.Errorf("failed to read chat history: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := ValidateTranscript(data); err != nil {
		err = fmt.Errorf("%s: %w", filename, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var t transcript.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		err = fmt.Errorf("%s: %w: %v", filename, ErrInvalidTranscript, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if t.Messages == nil {
		t.Messages = []transcript.Message{}
	}

	span.SetAttributes(attribute.Int("message_count", len(t.Messages)))
	logger.Debug().Str("chat_file", filename).Int("messages", len(t.Messages)).Msg("Transcript loaded")

	return &t, nil
}

// Save writes the full transcript under filename, replacing any previous
// version atomically.
func (s *TranscriptStore) Save(ctx context.Context, filename string, t *transcript.Transcript) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartSpan(
		ctx,
		"chatline.session",
		"transcript.save",
		attribute.String("chat_file", filename),
		attribute.Int("message_count", len(t.Messages)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	start := time.Now()

	if err := ValidateFilename(filename); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	data, err := encodeJSON(t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to encode chat history: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	if err := writeFile(s.path(filename), data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save chat history: %w", err)
	}

	observability.RecordTranscriptSave(time.Since(start), len(t.Messages))
	logger.Debug().Str("chat_file", filename).Int("messages", len(t.Messages)).Msg("Transcript saved")

	return nil
}

// List returns every loadable transcript in the directory sorted by file
// name, which is chronological. Files that are not transcripts are skipped.
func (s *TranscriptStore) List(ctx context.Context) ([]Entry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	result := make([]Entry, 0, len(names))
	for _, name := range names {
		t, err := s.Load(ctx, name)
		if err != nil {
			log.Debug().Err(err).Str("chat_file", name).Msg("Skipping non-transcript file")
			continue
		}
		result = append(result, Entry{Filename: name, Transcript: t})
	}

	return result, nil
}

// encodeJSON renders v with 2-space indentation, leaving non-ASCII and HTML
// characters unescaped.
func encodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// writeFile replaces path atomically: readers see either the previous
// content or data, never a partial write. An existing file keeps its mode.
func writeFile(path string, data []byte) error {
	return atomic.WriteFile(path, bytes.NewReader(data))
}
