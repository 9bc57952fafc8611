package graph

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avhart/espalier/pkg/domain"
)

// Run is a lazy, finite, single-use traversal of a workflow. Each call to
// Next executes exactly one node; the state after that node is observable
// through State. A Run is not restartable once consumed.
//
//	run := wf.Run(initial, graph.WithInput(provider))
//	for run.Next(ctx) {
//		_ = run.State() // one intermediate state per executed node
//	}
//	if err := run.Err(); err != nil { ... }
type Run struct {
	wf    *Workflow
	opts  runOptions
	state *domain.State
	runID string
	steps int
	err   error
	done  bool
}

// Run starts a lazy traversal from the given initial state. A nil initial
// state starts fresh at the entry node.
func (w *Workflow) Run(initial *domain.State, opts ...RunOption) *Run {
	if initial == nil {
		initial = domain.NewState()
	}
	o := defaultRunOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Run{
		wf:    w,
		opts:  o,
		state: initial,
		runID: uuid.NewString(),
	}
}

// ID returns the unique identifier of this run.
func (r *Run) ID() string { return r.runID }

// State returns the state after the most recently executed node. The
// pointer stays valid after the run ends, including after a failed step
// (side effects are never rolled back).
func (r *Run) State() *domain.State { return r.state }

// Err returns the error that stopped the run, if any.
func (r *Run) Err() error { return r.err }

// Next executes one node and reports whether a state was produced. It
// returns false once the terminal sentinel has been reached, the step guard
// trips, or a step fails (inspect Err).
//
// When the state is suspended for input, Next first obtains a value from
// the configured input provider, installs it into State.Input, and resumes
// the same state object. This is a cooperative, single-threaded suspension:
// nothing executes while the provider blocks.
func (r *Run) Next(ctx context.Context) bool {
	if r.done || r.err != nil {
		return false
	}
	if r.state.Status == domain.StatusTerminated {
		r.done = true
		return false
	}
	if r.steps >= r.opts.maxSteps {
		r.err = &domain.ConfigError{Op: "run", Name: "", Reason: "step limit exceeded; edge table likely cyclic"}
		r.done = true
		return false
	}

	if r.state.Status == domain.StatusAwaitingInput {
		if r.opts.input == nil {
			r.err = &domain.ConfigError{Op: "run", Name: r.state.NextStep, Reason: "awaiting input but no input provider configured"}
			r.done = true
			return false
		}
		value, err := r.opts.input.ReadInput(ctx)
		if err != nil {
			r.err = err
			r.done = true
			return false
		}
		r.state.Input = value
		r.state.Status = domain.StatusActive
	}

	node, err := r.wf.resolve(r.state)
	if err != nil {
		r.err = err
		r.done = true
		return false
	}
	r.emitNodeEnter(ctx, node)
	start := time.Now()

	next, err := r.wf.Step(ctx, r.state)
	if next != nil {
		r.state = next
	}
	r.steps++
	r.emitNodeLeave(ctx, node)
	r.opts.logger.Debug("node executed",
		"run", r.runID, "node", node, "step", r.steps,
		"next", r.state.NextStep, "status", r.state.Status,
		"took", time.Since(start))

	if err != nil {
		r.err = err
		r.done = true
		return false
	}
	return true
}

func (r *Run) emitNodeEnter(ctx context.Context, node string) {
	if r.opts.hooks.OnNodeEnter == nil {
		return
	}
	r.opts.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		Timestamp: time.Now(),
		Type:      domain.EventNodeEnter,
		RunID:     r.runID,
		Node:      node,
		Step:      r.steps,
	})
}

func (r *Run) emitNodeLeave(ctx context.Context, node string) {
	if r.opts.hooks.OnNodeLeave == nil {
		return
	}
	r.opts.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		Timestamp: time.Now(),
		Type:      domain.EventNodeLeave,
		RunID:     r.runID,
		Node:      node,
		Step:      r.steps,
	})
}
