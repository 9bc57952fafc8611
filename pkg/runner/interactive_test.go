package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/graph"
)

func greeterWorkflow(t *testing.T) *graph.Workflow {
	t.Helper()
	wf := graph.New()
	require.NoError(t, wf.Register("greet", func(_ context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "What is your name?")
		s.Await("reply")
		return s, nil
	}))
	require.NoError(t, wf.Register("reply", func(_ context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "Hello, "+s.Input+"!")
		s.End()
		return s, nil
	}))
	require.NoError(t, wf.SetEntry("greet"))
	return wf
}

func TestInteractive_Run(t *testing.T) {
	var out bytes.Buffer
	r := &Interactive{
		Workflow: greeterWorkflow(t),
		IO:       NewTextIO(strings.NewReader("Rahul\n"), &out),
	}

	state, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, state.Status)
	require.Len(t, state.Messages, 2)

	display := out.String()
	assert.Contains(t, display, "What is your name?")
	assert.Contains(t, display, "> ") // input prompt
	assert.Contains(t, display, "Hello, Rahul!")
}

func TestInteractive_RendererApplied(t *testing.T) {
	var out bytes.Buffer
	io := NewTextIO(strings.NewReader("x\n"), &out)
	io.Renderer = func(s string) (string, error) {
		return "rendered: " + s, nil
	}

	r := &Interactive{Workflow: greeterWorkflow(t), IO: io}
	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "rendered: What is your name?")
}

func TestInteractive_SanitizesInput(t *testing.T) {
	var out bytes.Buffer
	r := &Interactive{
		Workflow: greeterWorkflow(t),
		IO:       NewTextIO(strings.NewReader("Ra\x1b[31mhul\n"), &out),
	}

	state, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.NotContains(t, state.Messages[1].Content, "\x1b")
}

func TestHeadless(t *testing.T) {
	state, err := Headless(context.Background(), greeterWorkflow(t), "Rahul")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, state.Status)
	assert.Contains(t, state.Messages[1].Content, "Rahul")
}

func TestTextIO_ReadInput_EOFWithData(t *testing.T) {
	io := NewTextIO(strings.NewReader("no newline"), &bytes.Buffer{})
	out, err := io.ReadInput(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "no newline", out)
}
