// Package render produces the human-readable views of a transcript: the
// output.md file, the styled terminal view, and console banners.
package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/harun/chatline/pkg/transcript"
)

const markdownTemplate = `# Chat History

**Created:** {{ .CreatedAt }}

**Last Updated:** {{ .LastUpdatedAt }}

**Model:** {{ .Model }}

---

{{ range .Messages }}## {{ .Role | lower | title }}

{{ .Content }}

{{ end }}---

**Usage Statistics:**

- Prompt Tokens: {{ .Usage.PromptTokens }}
- Completion Tokens: {{ .Usage.CompletionTokens }}
- Total Tokens: {{ .Usage.TotalTokens }}
`

var markdownTmpl = template.Must(template.New("output").Funcs(sprig.TxtFuncMap()).Parse(markdownTemplate))

// Markdown renders the full transcript as markdown
func Markdown(t *transcript.Transcript) (string, error) {
	var buf bytes.Buffer
	if err := markdownTmpl.Execute(&buf, t); err != nil {
		return "", fmt.Errorf("failed to render chat history: %w", err)
	}
	return buf.String(), nil
}

// FileRenderer regenerates a markdown file from scratch on every Render
type FileRenderer struct {
	path string
}

// NewFileRenderer creates a renderer writing to path
func NewFileRenderer(path string) *FileRenderer {
	return &FileRenderer{path: path}
}

// Path returns the output file location
func (r *FileRenderer) Path() string {
	return r.path
}

// Render overwrites the output file with the rendered transcript
func (r *FileRenderer) Render(t *transcript.Transcript) error {
	md, err := Markdown(t)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := os.WriteFile(r.path, []byte(md), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.path, err)
	}

	return nil
}
