package runner

import (
	"context"
	"log/slog"

	"github.com/avhart/espalier/internal/logging"
	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/graph"
	"github.com/avhart/espalier/pkg/ports"
)

// Interactive loops a workflow against a TextIO: every assistant message is
// printed as soon as the producing node returns, and suspension points block
// on the reader.
type Interactive struct {
	Workflow *graph.Workflow
	IO       *TextIO

	// Hooks are forwarded to the run, e.g. for metrics.
	Hooks domain.LifecycleHooks

	// MaxSteps bounds the run. Zero means graph.DefaultMaxSteps.
	MaxSteps int

	Logger *slog.Logger
}

// Run executes the workflow until it terminates or fails, starting from the
// given state (nil starts fresh). The final state is returned even on error.
func (r *Interactive) Run(ctx context.Context, initial *domain.State) (*domain.State, error) {
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	maxSteps := r.MaxSteps
	if maxSteps <= 0 {
		maxSteps = graph.DefaultMaxSteps
	}

	run := r.Workflow.Run(initial,
		graph.WithInput(r.IO),
		graph.WithHooks(r.Hooks),
		graph.WithLogger(logger),
		graph.WithMaxSteps(maxSteps),
	)

	printed := 0
	for run.Next(ctx) {
		state := run.State()
		for ; printed < len(state.Messages); printed++ {
			msg := state.Messages[printed]
			if msg.Role != domain.RoleAssistant {
				continue
			}
			if err := r.IO.WriteMessage(msg); err != nil {
				return state, err
			}
		}
	}
	return run.State(), run.Err()
}

// Headless runs a workflow to completion with scripted answers, discarding
// display output. Intended for automation and tests.
func Headless(ctx context.Context, wf *graph.Workflow, answers ...string) (*domain.State, error) {
	run := wf.Run(nil, graph.WithInput(ports.ScriptedInput(answers...)))
	for run.Next(ctx) {
	}
	return run.State(), run.Err()
}
