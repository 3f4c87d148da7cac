package llm

import (
	"errors"
	"fmt"
)

// ErrTransport matches every failure to complete an exchange with the API
var ErrTransport = errors.New("API request failed")

// TransportError wraps a connection error or a non-success HTTP status
type TransportError struct {
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", ErrTransport, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports ErrTransport as a match
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
