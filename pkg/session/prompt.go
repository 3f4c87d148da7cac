package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ReadPrompt returns arg when it has text, otherwise the trimmed contents of
// inputFile. A missing input file counts as empty.
func ReadPrompt(arg, inputFile string) (string, error) {
	if prompt := strings.TrimSpace(arg); prompt != "" {
		return arg, nil
	}

	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		if prompt := strings.TrimSpace(string(data)); prompt != "" {
			return prompt, nil
		}
	}

	return "", fmt.Errorf("%w: pass a prompt or write one to %s", ErrEmptyPrompt, inputFile)
}
