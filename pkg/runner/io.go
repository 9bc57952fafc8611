// Package runner drives a workflow interactively: it prints assistant
// messages as nodes produce them and reads user input at suspension points.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/avhart/espalier/pkg/domain"
)

// ContentRenderer optionally transforms assistant output before display,
// e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)

// TextIO reads user input from a stream and writes assistant messages to
// another. It implements ports.InputProvider, so it can be plugged straight
// into a run.
type TextIO struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
}

// NewTextIO creates a TextIO over the given streams, defaulting to stdin and
// stdout.
func NewTextIO(r io.Reader, w io.Writer) *TextIO {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &TextIO{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
}

// ReadInput prompts and reads one sanitized line.
func (h *TextIO) ReadInput(ctx context.Context) (string, error) {
	fmt.Fprint(h.Writer, "> ")

	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	return SanitizeInput(strings.TrimSpace(text))
}

// WriteMessage displays one assistant message, rendered when a renderer is
// configured.
func (h *TextIO) WriteMessage(msg domain.Message) error {
	output := msg.Content
	if h.Renderer != nil {
		if rendered, err := h.Renderer(msg.Content); err == nil {
			output = rendered
		}
	}
	_, err := fmt.Fprintln(h.Writer, strings.TrimSpace(output))
	return err
}
