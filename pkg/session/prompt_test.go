package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPrompt(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")

	t.Run("argument wins verbatim", func(t *testing.T) {
		require.NoError(t, os.WriteFile(input, []byte("from file"), 0644))
		prompt, err := ReadPrompt("who created c++", input)
		require.NoError(t, err)
		assert.Equal(t, "who created c++", prompt)
	})

	t.Run("input file trimmed", func(t *testing.T) {
		require.NoError(t, os.WriteFile(input, []byte("\n\t line one\nline two  \n"), 0644))
		prompt, err := ReadPrompt("", input)
		require.NoError(t, err)
		assert.Equal(t, "line one\nline two", prompt)
	})

	t.Run("blank input file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(input, []byte("  \n "), 0644))
		_, err := ReadPrompt("", input)
		assert.ErrorIs(t, err, ErrEmptyPrompt)
	})

	t.Run("missing input file", func(t *testing.T) {
		_, err := ReadPrompt("", filepath.Join(dir, "missing.txt"))
		assert.ErrorIs(t, err, ErrEmptyPrompt)
	})

	t.Run("unreadable input path", func(t *testing.T) {
		_, err := ReadPrompt("", dir)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrEmptyPrompt)
	})
}
