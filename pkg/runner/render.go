package runner

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewMarkdownRenderer returns a ContentRenderer that renders markdown to
// ANSI, auto-detecting the terminal background and wrapping to the terminal
// width when fd refers to one.
func NewMarkdownRenderer(fd int) ContentRenderer {
	width := 80
	if term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r.Render
}
