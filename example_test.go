package espalier_test

import (
	"context"
	"fmt"
	"log"

	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/graph"
	"github.com/avhart/espalier/pkg/ports"
)

// Example builds a two-node interactive workflow and runs it with scripted
// input.
func Example() {
	wf := graph.New()

	_ = wf.Register("greet", func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "What is your name?")
		s.Await("reply")
		return s, nil
	})
	_ = wf.Register("reply", func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "Hello, "+s.Input+"!")
		s.End()
		return s, nil
	})
	_ = wf.Connect("greet", "reply")
	_ = wf.SetEntry("greet")

	run := wf.Run(nil, graph.WithInput(ports.ScriptedInput("Ada")))
	for run.Next(context.Background()) {
	}
	if err := run.Err(); err != nil {
		log.Fatal(err)
	}

	for _, msg := range run.State().Messages {
		fmt.Printf("%s: %s\n", msg.Role, msg.Content)
	}
	// Output:
	// assistant: What is your name?
	// assistant: Hello, Ada!
}
