/*
Package espalier is a conversational workflow engine with retrieval. It runs
directed graphs of node functions over a shared conversation state, suspends
runs to wait for user input, and grounds model answers in ingested documents.

# Concept

A workflow is a graph of named nodes. Each node receives the state (the
transcript, the pending input, the routing field), mutates it, and names the
next node or the terminal sentinel. The engine owns the run loop: nodes stay
pure and never block on I/O; when a node suspends, the loop obtains the input
from the host and resumes. This keeps the same graph runnable from the CLI,
the HTTP API, and MCP clients.

# Usage

Build a graph, then drive it with a lazy run:

	wf := graph.New()
	wf.Register("greet", func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "What is your name?")
		s.Await("reply")
		return s, nil
	})
	wf.Register("reply", func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "Hello, "+s.Input+"!")
		s.End()
		return s, nil
	})
	wf.SetEntry("greet")

	run := wf.Run(nil, graph.WithInput(ports.ScriptedInput("Ada")))
	for run.Next(ctx) {
	}
	if err := run.Err(); err != nil {
		log.Fatal(err)
	}

Flows can also be declared in YAML (see pkg/adapters/yamlflow) and served
over HTTP or MCP with persistent sessions. The Engine type in this package
wires the full stack from configuration.
*/
package espalier
