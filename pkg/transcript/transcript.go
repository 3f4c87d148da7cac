// Package transcript holds the persisted record of one conversation: its
// messages, cumulative token usage, and the timestamps that identify it.
//
// Invariants:
// - CreatedAt never changes after NewTranscript; it names the file on disk.
// - Messages only ever grow by a (user, assistant) pair via AppendExchange.
// - Usage is the field-wise sum of every exchange applied so far.
package transcript

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single conversation turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage tracks token consumption
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the field-wise sum of u and other
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Transcript is one chat session as stored on disk
type Transcript struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	Usage         Usage     `json:"usage"`
	CreatedAt     Timestamp `json:"created_at"`
	LastUpdatedAt Timestamp `json:"last_updated_at"`

	// extra holds top-level fields this version does not know about, so that
	// saving a loaded transcript keeps them
	extra map[string]json.RawMessage
}

// fields is Transcript without its JSON methods
type fields Transcript

var knownFields = []string{"model", "messages", "usage", "created_at", "last_updated_at"}

// UnmarshalJSON implements json.Unmarshaler
func (t *Transcript) UnmarshalJSON(data []byte) error {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, key := range knownFields {
		delete(all, key)
	}
	if len(all) > 0 {
		f.extra = all
	}

	*t = Transcript(f)
	return nil
}

// MarshalJSON implements json.Marshaler. Known fields come first in their
// fixed order, followed by unknown fields sorted by name.
func (t Transcript) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields(t)); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	if len(t.extra) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(t.extra))
	for key := range t.extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out = out[:len(out)-1] // drop the closing brace
	for _, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		out = append(out, ',')
		out = append(out, name...)
		out = append(out, ':')
		out = append(out, t.extra[key]...)
	}
	return append(out, '}'), nil
}

// NewTranscript creates an empty transcript for model stamped with now
func NewTranscript(model string, now time.Time) *Transcript {
	ts := NewTimestamp(now)
	return &Transcript{
		Model:         model,
		Messages:      []Message{},
		CreatedAt:     ts,
		LastUpdatedAt: ts,
	}
}

// AppendExchange records one completed exchange: the user prompt, the
// assistant reply, and the usage reported for it.
func (t *Transcript) AppendExchange(prompt, reply string, usage Usage, now time.Time) {
	t.Messages = append(t.Messages,
		Message{Role: RoleUser, Content: prompt},
		Message{Role: RoleAssistant, Content: reply},
	)
	t.Usage = t.Usage.Add(usage)
	t.LastUpdatedAt = NewTimestamp(now)
}

// Filename returns the file name derived from the creation timestamp
func (t *Transcript) Filename() string {
	return FilenameFor(t.CreatedAt)
}

var filenameReplacer = strings.NewReplacer(":", "", ".", "-")

// FilenameFor derives a filesystem-safe file name from a creation timestamp.
// 2026-01-22T01:07:57.123456 becomes 2026-01-22T010757-123456.json.
func FilenameFor(createdAt Timestamp) string {
	return filenameReplacer.Replace(createdAt.String()) + ".json"
}
