package render

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/harun/chatline/pkg/transcript"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// View renders the transcript as styled terminal markdown. style is a
// glamour standard style such as "auto", "dark" or "notty".
func View(t *transcript.Transcript, style string) (string, error) {
	md, err := Markdown(t)
	if err != nil {
		return "", err
	}

	styled, err := glamour.Render(md, style)
	if err != nil {
		return "", fmt.Errorf("failed to style chat history: %w", err)
	}

	return styled, nil
}

// PrintView writes the styled view to w when w is a terminal. It reports
// whether anything was printed.
func PrintView(w io.Writer, t *transcript.Transcript) (bool, error) {
	if !IsTerminal(w) {
		return false, nil
	}

	styled, err := View(t, "auto")
	if err != nil {
		return false, err
	}

	_, err = io.WriteString(w, styled)
	return err == nil, err
}
