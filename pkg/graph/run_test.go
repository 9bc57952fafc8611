package graph_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/graph"
	"github.com/avhart/espalier/pkg/ports"
)

// buildLinear constructs the canonical two-node graph A -> B -> end.
func buildLinear(t *testing.T) *graph.Workflow {
	t.Helper()
	wf := graph.New()
	require.NoError(t, wf.Register("a", func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "from a")
		s.Goto("b")
		return s, nil
	}))
	require.NoError(t, wf.Register("b", func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "from b")
		s.End()
		return s, nil
	}))
	require.NoError(t, wf.SetEntry("a"))
	require.NoError(t, wf.Connect("a", "b"))
	require.NoError(t, wf.Connect("b", domain.StepEnd))
	return wf
}

func TestRun_LinearOrder(t *testing.T) {
	wf := buildLinear(t)
	ctx := context.Background()

	run := wf.Run(domain.NewState())
	var visited []string
	for run.Next(ctx) {
		visited = append(visited, run.State().History[len(run.State().History)-1])
	}
	require.NoError(t, run.Err())

	assert.Equal(t, []string{"a", "b"}, visited)
	final := run.State()
	assert.Equal(t, domain.StatusTerminated, final.Status)

	want := []domain.Message{
		{Role: domain.RoleAssistant, Content: "from a"},
		{Role: domain.RoleAssistant, Content: "from b"},
	}
	if diff := cmp.Diff(want, final.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_NotRestartable(t *testing.T) {
	wf := buildLinear(t)
	ctx := context.Background()

	run := wf.Run(domain.NewState())
	for run.Next(ctx) {
	}
	require.NoError(t, run.Err())

	// Consumed: further calls produce nothing.
	assert.False(t, run.Next(ctx))
	assert.False(t, run.Next(ctx))
}

func TestRun_UnknownNextStep_SideEffectsKept(t *testing.T) {
	wf := graph.New()
	require.NoError(t, wf.Register("a", func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "side effect")
		s.Goto("nowhere")
		return s, nil
	}))
	require.NoError(t, wf.SetEntry("a"))

	run := wf.Run(domain.NewState())
	for run.Next(context.Background()) {
	}

	err := run.Err()
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))

	// No rollback: the node's append is still visible.
	require.Len(t, run.State().Messages, 1)
	assert.Equal(t, "side effect", run.State().Messages[0].Content)
}

func TestRun_InteractiveSuspension(t *testing.T) {
	wf := graph.New()
	require.NoError(t, wf.Register("greet", func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "Hello! What is your name?")
		s.Await("get_name")
		return s, nil
	}))
	require.NoError(t, wf.Register("get_name", func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "Nice to meet you, "+s.Input+"!")
		s.End()
		return s, nil
	}))
	require.NoError(t, wf.SetEntry("greet"))

	run := wf.Run(domain.NewState(), graph.WithInput(ports.ScriptedInput("Rahul")))
	steps := 0
	for run.Next(context.Background()) {
		steps++
	}
	require.NoError(t, run.Err())

	assert.Equal(t, 2, steps)
	final := run.State()
	require.Len(t, final.Messages, 2)
	assert.Contains(t, final.Messages[1].Content, "Rahul")
}

func TestRun_SuspensionWithoutProviderFails(t *testing.T) {
	wf := graph.New()
	require.NoError(t, wf.Register("ask", func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Await("ask")
		return s, nil
	}))
	require.NoError(t, wf.SetEntry("ask"))

	run := wf.Run(domain.NewState())
	for run.Next(context.Background()) {
	}
	require.Error(t, run.Err())
	assert.True(t, domain.IsConfigError(run.Err()))
}

func TestRun_Deterministic(t *testing.T) {
	wf := buildLinear(t)
	ctx := context.Background()

	collect := func() []domain.Message {
		run := wf.Run(domain.NewState())
		for run.Next(ctx) {
		}
		require.NoError(t, run.Err())
		return run.State().Messages
	}

	first := collect()
	second := collect()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("runs diverged (-first +second):\n%s", diff)
	}
}

func TestRun_StepGuard(t *testing.T) {
	wf := graph.New()
	require.NoError(t, wf.Register("spin", func(ctx context.Context, s *domain.State) (*domain.State, error) {
		s.Goto("spin")
		return s, nil
	}))
	require.NoError(t, wf.SetEntry("spin"))

	run := wf.Run(domain.NewState(), graph.WithMaxSteps(5))
	steps := 0
	for run.Next(context.Background()) {
		steps++
	}
	assert.Equal(t, 5, steps)
	require.Error(t, run.Err())
	assert.True(t, domain.IsConfigError(run.Err()))
}

func TestRun_HooksFire(t *testing.T) {
	wf := buildLinear(t)

	var entered, left []string
	hooks := domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, ev *domain.NodeEvent) { entered = append(entered, ev.Node) },
		OnNodeLeave: func(_ context.Context, ev *domain.NodeEvent) { left = append(left, ev.Node) },
	}

	run := wf.Run(domain.NewState(), graph.WithHooks(hooks))
	for run.Next(context.Background()) {
	}
	require.NoError(t, run.Err())

	assert.Equal(t, []string{"a", "b"}, entered)
	assert.Equal(t, []string{"a", "b"}, left)
}
