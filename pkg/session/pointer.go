package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ActivePointer is a single-value store naming the most recently used
// transcript file
type ActivePointer interface {
	// Get returns the active transcript file name, or "" when none is set
	Get() (string, error)

	// Set replaces the active transcript file name
	Set(filename string) error
}

type pointerRecord struct {
	ActiveChat string `json:"active_chat"`
}

// FilePointer stores the active pointer as {"active_chat": "<filename>"}
type FilePointer struct {
	path string
}

// NewFilePointer creates a pointer backed by the file at path
func NewFilePointer(path string) *FilePointer {
	return &FilePointer{path: path}
}

// Path returns the pointer file location
func (p *FilePointer) Path() string {
	return p.path
}

// Get returns "" with no error when the pointer file does not exist. An
// unreadable or malformed file is an error.
func (p *FilePointer) Get() (string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read active chat file: %w", err)
	}

	var rec pointerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("failed to parse active chat file: %w", err)
	}

	return strings.TrimSpace(rec.ActiveChat), nil
}

// Set overwrites the pointer file
func (p *FilePointer) Set(filename string) error {
	data, err := encodeJSON(pointerRecord{ActiveChat: filename})
	if err != nil {
		return fmt.Errorf("failed to encode active chat: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create active chat directory: %w", err)
	}

	if err := writeFile(p.path, data); err != nil {
		return fmt.Errorf("failed to write active chat file: %w", err)
	}

	return nil
}
