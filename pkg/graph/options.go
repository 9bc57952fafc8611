package graph

import (
	"log/slog"

	"github.com/avhart/espalier/internal/logging"
	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/ports"
)

type runOptions struct {
	input    ports.InputProvider
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	maxSteps int
}

func defaultRunOptions() runOptions {
	return runOptions{
		logger:   logging.NewNop(),
		maxSteps: DefaultMaxSteps,
	}
}

// RunOption configures a single Run.
type RunOption func(*runOptions)

// WithInput sets the provider consulted at suspension points.
func WithInput(p ports.InputProvider) RunOption {
	return func(o *runOptions) { o.input = p }
}

// WithHooks registers observability callbacks for this run.
func WithHooks(hooks domain.LifecycleHooks) RunOption {
	return func(o *runOptions) { o.hooks = hooks }
}

// WithLogger sets a structured logger for step-level debug output.
func WithLogger(logger *slog.Logger) RunOption {
	return func(o *runOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxSteps overrides the loop guard. Zero or negative keeps the default.
func WithMaxSteps(n int) RunOption {
	return func(o *runOptions) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}
