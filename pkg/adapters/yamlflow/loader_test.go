package yamlflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhart/espalier/pkg/adapters/yamlflow"
	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/graph"
	"github.com/avhart/espalier/pkg/ports"
)

const greeterFlow = `
name: greeter
entry: greet
nodes:
  - name: greet
    kind: say
    params:
      message: "Hello! What is your name?"
    next: get_name
  - name: get_name
    kind: input
    next: reply
  - name: reply
    kind: say
    params:
      message: "Nice to meet you, {{.Input}}."
`

type echoModel struct{}

func (echoModel) Generate(_ context.Context, messages []domain.Message, _ ports.SamplingParams) (*ports.Completion, error) {
	return &ports.Completion{Content: "echo: " + messages[len(messages)-1].Content}, nil
}

func TestParse_Defaults(t *testing.T) {
	flow, err := yamlflow.Parse([]byte("name: x\nnodes:\n  - name: only\n    kind: say\n    params: {message: hi}\n"))
	require.NoError(t, err)
	assert.Equal(t, "only", flow.Entry, "entry defaults to the first node")
}

func TestParse_EmptyFlow(t *testing.T) {
	_, err := yamlflow.Parse([]byte("name: empty\n"))
	assert.True(t, domain.IsConfigError(err))
}

func TestCompile_UnknownKind(t *testing.T) {
	flow, err := yamlflow.Parse([]byte("nodes:\n  - name: bad\n    kind: teleport\n"))
	require.NoError(t, err)
	_, err = flow.Compile(yamlflow.Deps{})
	assert.True(t, domain.IsConfigError(err))
}

func TestCompile_PromptRequiresModel(t *testing.T) {
	flow, err := yamlflow.Parse([]byte("nodes:\n  - name: p\n    kind: prompt\n    params: {template: hi}\n"))
	require.NoError(t, err)
	_, err = flow.Compile(yamlflow.Deps{})
	assert.True(t, domain.IsConfigError(err))
}

func TestCompile_BadBranchCondition(t *testing.T) {
	flow, err := yamlflow.Parse([]byte(`
nodes:
  - name: a
    kind: say
    params: {message: hi}
    branches:
      - when: "input =="
        to: a
`))
	require.NoError(t, err)
	_, err = flow.Compile(yamlflow.Deps{})
	assert.True(t, domain.IsConfigError(err))
}

func TestGreeterFlow_EndToEnd(t *testing.T) {
	flow, err := yamlflow.Parse([]byte(greeterFlow))
	require.NoError(t, err)
	wf, err := flow.Compile(yamlflow.Deps{})
	require.NoError(t, err)

	run := wf.Run(nil, graph.WithInput(ports.ScriptedInput("Rahul")))
	for run.Next(context.Background()) {
	}
	require.NoError(t, run.Err())

	state := run.State()
	require.Len(t, state.Messages, 2)
	assert.Contains(t, state.Messages[1].Content, "Rahul")
	assert.Equal(t, domain.StatusTerminated, state.Status)
	assert.Equal(t, []string{"greet", "get_name", "reply"}, state.History)
}

func TestBranches_RouteOnInput(t *testing.T) {
	flow, err := yamlflow.Parse([]byte(`
entry: ask
nodes:
  - name: ask
    kind: input
    next: other
  - name: other
    kind: say
    params: {message: "routing"}
    branches:
      - when: 'input == "bye"'
        to: __end__
      - when: 'input == "again"'
        to: ask
`))
	require.NoError(t, err)
	wf, err := flow.Compile(yamlflow.Deps{})
	require.NoError(t, err)

	run := wf.Run(nil, graph.WithInput(ports.ScriptedInput("again", "bye")))
	for run.Next(context.Background()) {
	}
	require.NoError(t, run.Err())
	assert.Equal(t, []string{"ask", "other", "ask", "other"}, run.State().History)
}

func TestPromptNode_CallsModel(t *testing.T) {
	flow, err := yamlflow.Parse([]byte(`
nodes:
  - name: answer
    kind: prompt
    params:
      template: "User said: {{.Input}}"
      temperature: 0.2
`))
	require.NoError(t, err)
	wf, err := flow.Compile(yamlflow.Deps{Model: echoModel{}})
	require.NoError(t, err)

	state := domain.NewState()
	state.Input = "hello"
	final, err := wf.Advance(context.Background(), state, 0)
	require.NoError(t, err)
	require.Len(t, final.Messages, 1)
	assert.Equal(t, domain.RoleAssistant, final.Messages[0].Role)
	assert.Equal(t, "echo: User said: hello", final.Messages[0].Content)
}
