package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const ruleWidth = 60

// Console prints narration and assistant replies. Styling is applied only
// when the writer is a color-capable terminal.
type Console struct {
	out    io.Writer
	rule   lipgloss.Style
	header lipgloss.Style
}

// NewConsole creates a console writing to out
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = io.Discard
	}
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:    out,
		rule:   r.NewStyle().Foreground(lipgloss.Color("240")),
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
	}
}

// Writer returns the underlying writer
func (c *Console) Writer() io.Writer {
	return c.out
}

// Printf prints formatted narration
func (c *Console) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

// Println prints one line of narration
func (c *Console) Println(args ...interface{}) {
	fmt.Fprintln(c.out, args...)
}

// Fragment prints a streamed fragment without a newline
func (c *Console) Fragment(s string) {
	io.WriteString(c.out, s)
}

// AssistantHeader opens a reply block
func (c *Console) AssistantHeader() {
	rule := c.rule.Render(strings.Repeat("=", ruleWidth))
	fmt.Fprintf(c.out, "\n%s\n%s\n%s\n", rule, c.header.Render("ASSISTANT:"), rule)
}

// AssistantFooter closes a streamed reply block
func (c *Console) AssistantFooter() {
	fmt.Fprintf(c.out, "\n%s\n", c.rule.Render(strings.Repeat("=", ruleWidth)))
}

// AssistantReply prints a complete reply between banners
func (c *Console) AssistantReply(reply string) {
	c.AssistantHeader()
	fmt.Fprintln(c.out, reply)
	fmt.Fprintln(c.out, c.rule.Render(strings.Repeat("=", ruleWidth)))
}
