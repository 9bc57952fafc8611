// Package graph implements the workflow runner: a directed graph of named
// node functions executed one at a time against a shared state until the
// terminal sentinel is reached.
//
// Declared edges are advisory documentation of the expected flow; the actual
// transition is whatever NextStep a node returns. The runner fails with a
// *domain.ConfigError when that value names an unregistered node.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/avhart/espalier/pkg/domain"
)

// NodeFunc is a named unit of workflow logic. It receives the shared state
// by pointer, may mutate it in place, and must return it (or a replacement)
// with NextStep routed to the next node or domain.StepEnd.
type NodeFunc func(ctx context.Context, s *domain.State) (*domain.State, error)

// Workflow holds the node registry and the advisory edge table. It is built
// once (Register/Connect/SetEntry) and then shared read-only between runs.
type Workflow struct {
	nodes map[string]NodeFunc
	order []string            // registration order, kept for stable introspection
	edges map[string][]string // from -> declared successors
	entry string
}

// New creates an empty workflow.
func New() *Workflow {
	return &Workflow{
		nodes: make(map[string]NodeFunc),
		edges: make(map[string][]string),
	}
}

// Register adds a node under the given name. Registering a duplicate name
// fails and leaves the prior registration intact.
func (w *Workflow) Register(name string, fn NodeFunc) error {
	if name == "" || name == domain.StepEnd {
		return &domain.ConfigError{Op: "register", Name: name, Reason: "name is reserved"}
	}
	if fn == nil {
		return &domain.ConfigError{Op: "register", Name: name, Reason: "nil node function"}
	}
	if _, exists := w.nodes[name]; exists {
		return &domain.ConfigError{Op: "register", Name: name, Reason: "node already registered"}
	}
	w.nodes[name] = fn
	w.order = append(w.order, name)
	return nil
}

// Connect declares a directed edge. The source must be registered; the
// target is checked by Validate so that graphs can be declared in any order.
func (w *Workflow) Connect(from, to string) error {
	if _, ok := w.nodes[from]; !ok {
		return &domain.ConfigError{Op: "connect", Name: from, Reason: "unknown source node"}
	}
	if to == "" {
		return &domain.ConfigError{Op: "connect", Name: from, Reason: "empty target node"}
	}
	w.edges[from] = append(w.edges[from], to)
	return nil
}

// SetEntry designates the starting node.
func (w *Workflow) SetEntry(name string) error {
	if _, ok := w.nodes[name]; !ok {
		return &domain.ConfigError{Op: "entry", Name: name, Reason: "unknown node"}
	}
	w.entry = name
	return nil
}

// Entry returns the designated entry node name (empty if unset).
func (w *Workflow) Entry() string { return w.entry }

// Nodes returns the registered node names in registration order.
func (w *Workflow) Nodes() []string {
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

// Edges returns a copy of the declared edge table.
func (w *Workflow) Edges() map[string][]string {
	out := make(map[string][]string, len(w.edges))
	for from, tos := range w.edges {
		cp := make([]string, len(tos))
		copy(cp, tos)
		out[from] = cp
	}
	return out
}

// Validate checks the statically detectable invariants: an entry node is
// set and every declared edge targets a registered node or the terminal
// sentinel.
func (w *Workflow) Validate() error {
	if w.entry == "" {
		return &domain.ConfigError{Op: "validate", Name: "", Reason: "no entry node set"}
	}
	froms := make([]string, 0, len(w.edges))
	for from := range w.edges {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		for _, to := range w.edges[from] {
			if to == domain.StepEnd {
				continue
			}
			if _, ok := w.nodes[to]; !ok {
				return &domain.ConfigError{
					Op:     "validate",
					Name:   to,
					Reason: fmt.Sprintf("edge %s -> %s targets an unregistered node", from, to),
				}
			}
		}
	}
	return nil
}

// resolve returns the name of the node the state is positioned at.
func (w *Workflow) resolve(s *domain.State) (string, error) {
	name := s.NextStep
	if name == "" {
		if w.entry == "" {
			return "", &domain.ConfigError{Op: "step", Name: "", Reason: "no entry node set"}
		}
		name = w.entry
	}
	if name == domain.StepEnd {
		return name, nil
	}
	if _, ok := w.nodes[name]; !ok {
		return "", &domain.ConfigError{Op: "step", Name: name, Reason: "no node registered under this name"}
	}
	return name, nil
}

// Step executes exactly one node: resolve the current node from NextStep
// (the entry node before the first step), invoke it, and verify the returned
// NextStep is routable. When a node returns an unknown NextStep the mutated
// state is returned alongside the error; side effects are not rolled back.
func (w *Workflow) Step(ctx context.Context, s *domain.State) (*domain.State, error) {
	if s == nil {
		s = domain.NewState()
	}
	name, err := w.resolve(s)
	if err != nil {
		return s, err
	}
	if name == domain.StepEnd {
		s.Status = domain.StatusTerminated
		return s, nil
	}

	s.History = append(s.History, name)
	next, err := w.nodes[name](ctx, s)
	if next == nil {
		next = s
	}
	if err != nil {
		return next, fmt.Errorf("node %s: %w", name, err)
	}

	if next.NextStep == domain.StepEnd {
		next.Status = domain.StatusTerminated
		return next, nil
	}
	if _, ok := w.nodes[next.NextStep]; !ok {
		return next, &domain.ConfigError{Op: "step", Name: next.NextStep, Reason: "node returned an unregistered next step"}
	}
	return next, nil
}

// DefaultMaxSteps guards Advance and Run against a misconfigured edge table
// looping forever.
const DefaultMaxSteps = 1000

// Advance steps the state until it suspends for input or terminates. It is
// the stateless building block used by the HTTP and MCP adapters, which
// persist the state between turns instead of holding a Run.
func (w *Workflow) Advance(ctx context.Context, s *domain.State, maxSteps int) (*domain.State, error) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	for i := 0; i < maxSteps; i++ {
		if s.Status == domain.StatusTerminated || s.Status == domain.StatusAwaitingInput {
			return s, nil
		}
		next, err := w.Step(ctx, s)
		if next != nil {
			s = next
		}
		if err != nil {
			return s, err
		}
	}
	return s, &domain.ConfigError{Op: "advance", Name: "", Reason: fmt.Sprintf("step limit %d exceeded", maxSteps)}
}
