package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView(t *testing.T) {
	styled, err := View(sampleTranscript(), "notty")
	require.NoError(t, err)

	assert.Contains(t, styled, "Chat History")
	assert.Contains(t, styled, "hi there")
	assert.Contains(t, styled, "codestral-latest")
}

func TestPrintViewSkipsNonTerminal(t *testing.T) {
	var buf bytes.Buffer

	printed, err := PrintView(&buf, sampleTranscript())

	require.NoError(t, err)
	assert.False(t, printed)
	assert.Empty(t, buf.String())
	assert.False(t, IsTerminal(&buf))
}
