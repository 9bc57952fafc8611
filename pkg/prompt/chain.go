package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/ports"
)

// Parser post-processes the raw model output.
type Parser func(raw string) (string, error)

// TrimParser strips surrounding whitespace. The default parser.
func TrimParser(raw string) (string, error) {
	return strings.TrimSpace(raw), nil
}

// JSONParser validates that the output is a JSON document and returns it
// compacted. Models often fence JSON in markdown blocks; the fence is
// stripped before validation.
func JSONParser(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out bytes.Buffer
	if err := json.Compact(&out, []byte(cleaned)); err != nil {
		return "", fmt.Errorf("output is not valid JSON: %w", err)
	}
	return out.String(), nil
}

// Chain renders a template, sends it to the model with an optional system
// prompt, and parses the reply.
type Chain struct {
	Model    ports.ChatModel
	Template *Template
	System   string
	Params   ports.SamplingParams
	Parse    Parser
}

// Result carries the parsed output plus the usage counters of the call.
type Result struct {
	Output string
	Usage  ports.Usage
}

// Invoke runs the chain once.
func (c *Chain) Invoke(ctx context.Context, vars map[string]any) (*Result, error) {
	promptText, err := c.Template.Render(vars)
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	if c.System != "" {
		messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: c.System})
	}
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: promptText})

	completion, err := c.Model.Generate(ctx, messages, c.Params)
	if err != nil {
		return nil, err
	}

	parse := c.Parse
	if parse == nil {
		parse = TrimParser
	}
	output, err := parse(completion.Content)
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", c.Template.Name(), err)
	}
	return &Result{Output: output, Usage: completion.Usage}, nil
}
