package prompt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/ports"
	"github.com/avhart/espalier/pkg/prompt"
)

type fakeModel struct {
	lastMessages []domain.Message
	lastParams   ports.SamplingParams
	reply        string
}

func (f *fakeModel) Generate(ctx context.Context, messages []domain.Message, params ports.SamplingParams) (*ports.Completion, error) {
	f.lastMessages = messages
	f.lastParams = params
	return &ports.Completion{
		Content: f.reply,
		Usage:   ports.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func TestTemplate_Render(t *testing.T) {
	tpl, err := prompt.NewTemplate("greet", "Hello {{.name}}, welcome to {{.place}}.")
	require.NoError(t, err)

	out, err := tpl.Render(map[string]any{"name": "Ada", "place": "the lab"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, welcome to the lab.", out)
}

func TestTemplate_MissingKeyFails(t *testing.T) {
	tpl := prompt.MustTemplate("strict", "Value: {{.missing}}")
	_, err := tpl.Render(map[string]any{})
	assert.Error(t, err)
}

func TestTemplate_ParseError(t *testing.T) {
	_, err := prompt.NewTemplate("bad", "{{.unclosed")
	assert.Error(t, err)
}

func TestChain_Invoke(t *testing.T) {
	model := &fakeModel{reply: "  42  "}
	chain := &prompt.Chain{
		Model:    model,
		Template: prompt.MustTemplate("q", "What is {{.a}} plus {{.b}}?"),
		System:   "You are a calculator.",
		Params:   ports.SamplingParams{Temperature: 0.2, TopP: 0.9},
	}

	res, err := chain.Invoke(context.Background(), map[string]any{"a": 40, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Output)
	assert.Equal(t, 15, res.Usage.TotalTokens)

	require.Len(t, model.lastMessages, 2)
	assert.Equal(t, domain.RoleSystem, model.lastMessages[0].Role)
	assert.Equal(t, "What is 40 plus 2?", model.lastMessages[1].Content)
	assert.Equal(t, 0.2, model.lastParams.Temperature)
}

func TestJSONParser(t *testing.T) {
	out, err := prompt.JSONParser("```json\n{\"ok\": true}\n```")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	_, err = prompt.JSONParser("not json at all")
	assert.Error(t, err)
}
