package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// TranscriptSchema describes a transcript file. Unknown fields are allowed so
// files written by newer versions still load.
const TranscriptSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["model", "messages", "usage", "created_at", "last_updated_at"],
  "properties": {
    "model": {"type": "string"},
    "messages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["role", "content"],
        "properties": {
          "role": {"type": "string", "enum": ["user", "assistant"]},
          "content": {"type": "string"}
        }
      }
    },
    "usage": {
      "type": "object",
      "required": ["prompt_tokens", "completion_tokens", "total_tokens"],
      "properties": {
        "prompt_tokens": {"type": "integer", "minimum": 0},
        "completion_tokens": {"type": "integer", "minimum": 0},
        "total_tokens": {"type": "integer", "minimum": 0}
      }
    },
    "created_at": {"type": "string", "minLength": 1},
    "last_updated_at": {"type": "string", "minLength": 1}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func transcriptSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(TranscriptSchema))
	})
	return compiledSchema, schemaErr
}

// ValidateTranscript checks raw transcript JSON against TranscriptSchema
func ValidateTranscript(data []byte) error {
	schema, err := transcriptSchema()
	if err != nil {
		return fmt.Errorf("failed to compile transcript schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTranscript, err)
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidTranscript, strings.Join(errs, "; "))
	}

	return nil
}
