package session

import "errors"

var (
	// ErrNotFound is returned when a transcript file does not exist
	ErrNotFound = errors.New("chat history file not found")
	// ErrEmptyPrompt is returned when neither the argument nor the input file has text
	ErrEmptyPrompt = errors.New("no prompt provided")
	// ErrInvalidTranscript is returned when a transcript file fails to parse or validate
	ErrInvalidTranscript = errors.New("invalid chat history file")
	// ErrInvalidFilename is returned for names that would escape the history directory
	ErrInvalidFilename = errors.New("invalid chat history filename")
)
