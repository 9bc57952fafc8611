package yamlflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mitchellh/mapstructure"

	"github.com/avhart/espalier/internal/logging"
	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/graph"
	"github.com/avhart/espalier/pkg/ports"
	"github.com/avhart/espalier/pkg/prompt"
)

// Deps carries the collaborators flow nodes may need. Model is required only
// when the flow declares prompt nodes.
type Deps struct {
	Model  ports.ChatModel
	Logger *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return logging.NewNop()
	}
	return d.Logger
}

type sayParams struct {
	Message string `mapstructure:"message"`
}

type promptParams struct {
	Template    string  `mapstructure:"template"`
	System      string  `mapstructure:"system"`
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	JSON        bool    `mapstructure:"json"`
}

// router picks the node's successor: the first branch whose condition holds,
// otherwise the declared next, otherwise the terminal sentinel.
type router struct {
	node     string
	next     string
	branches []compiledBranch
}

type compiledBranch struct {
	program *vm.Program
	to      string
}

func newRouter(spec NodeSpec) (*router, error) {
	r := &router{node: spec.Name, next: spec.Next}
	if r.next == "" {
		r.next = domain.StepEnd
	}
	for _, br := range spec.Branches {
		program, err := expr.Compile(br.When, expr.AsBool())
		if err != nil {
			return nil, &domain.ConfigError{
				Op:     "compile",
				Name:   spec.Name,
				Reason: fmt.Sprintf("bad branch condition %q: %v", br.When, err),
			}
		}
		r.branches = append(r.branches, compiledBranch{program: program, to: br.To})
	}
	return r, nil
}

func (r *router) route(s *domain.State) (string, error) {
	env := map[string]any{
		"input":    s.Input,
		"last":     s.LastMessage().Content,
		"messages": len(s.Messages),
	}
	for _, br := range r.branches {
		out, err := expr.Run(br.program, env)
		if err != nil {
			return "", fmt.Errorf("node %s: branch condition: %w", r.node, err)
		}
		if out == true {
			return br.to, nil
		}
	}
	return r.next, nil
}

func templateVars(s *domain.State) map[string]any {
	return map[string]any{
		"Input":    s.Input,
		"Last":     s.LastMessage().Content,
		"Messages": s.Messages,
	}
}

func buildNode(spec NodeSpec, deps Deps) (graph.NodeFunc, error) {
	r, err := newRouter(spec)
	if err != nil {
		return nil, err
	}
	switch spec.Kind {
	case "say":
		return buildSay(spec, r)
	case "input":
		return buildInput(spec, r)
	case "prompt":
		return buildPrompt(spec, deps, r)
	default:
		return nil, &domain.ConfigError{Op: "compile", Name: spec.Name, Reason: fmt.Sprintf("unknown node kind %q", spec.Kind)}
	}
}

func buildSay(spec NodeSpec, r *router) (graph.NodeFunc, error) {
	var p sayParams
	if err := decodeParams(spec, &p); err != nil {
		return nil, err
	}
	if p.Message == "" {
		return nil, &domain.ConfigError{Op: "compile", Name: spec.Name, Reason: "say node requires a message"}
	}
	tpl, err := prompt.NewTemplate(spec.Name, p.Message)
	if err != nil {
		return nil, &domain.ConfigError{Op: "compile", Name: spec.Name, Reason: err.Error()}
	}
	return func(_ context.Context, s *domain.State) (*domain.State, error) {
		text, err := tpl.Render(templateVars(s))
		if err != nil {
			return s, err
		}
		s.Append(domain.RoleAssistant, text)
		return routeState(s, r)
	}, nil
}

func buildInput(spec NodeSpec, r *router) (graph.NodeFunc, error) {
	return func(_ context.Context, s *domain.State) (*domain.State, error) {
		target, err := r.route(s)
		if err != nil {
			return s, err
		}
		if target == domain.StepEnd {
			return s, &domain.ConfigError{Op: "step", Name: spec.Name, Reason: "input node cannot suspend into the terminal sentinel"}
		}
		s.Await(target)
		return s, nil
	}, nil
}

func buildPrompt(spec NodeSpec, deps Deps, r *router) (graph.NodeFunc, error) {
	if deps.Model == nil {
		return nil, &domain.ConfigError{Op: "compile", Name: spec.Name, Reason: "prompt node requires a model"}
	}
	var p promptParams
	if err := decodeParams(spec, &p); err != nil {
		return nil, err
	}
	if p.Template == "" {
		return nil, &domain.ConfigError{Op: "compile", Name: spec.Name, Reason: "prompt node requires a template"}
	}
	tpl, err := prompt.NewTemplate(spec.Name, p.Template)
	if err != nil {
		return nil, &domain.ConfigError{Op: "compile", Name: spec.Name, Reason: err.Error()}
	}
	chain := &prompt.Chain{
		Model:    deps.Model,
		Template: tpl,
		System:   p.System,
		Params: ports.SamplingParams{
			Temperature: p.Temperature,
			TopP:        p.TopP,
			MaxTokens:   p.MaxTokens,
		},
	}
	if p.JSON {
		chain.Parse = prompt.JSONParser
	}
	log := deps.logger()
	return func(ctx context.Context, s *domain.State) (*domain.State, error) {
		result, err := chain.Invoke(ctx, templateVars(s))
		if err != nil {
			return s, err
		}
		log.Debug("prompt node completed",
			"node", spec.Name,
			"prompt_tokens", result.Usage.PromptTokens,
			"completion_tokens", result.Usage.CompletionTokens)
		s.Append(domain.RoleAssistant, result.Output)
		return routeState(s, r)
	}, nil
}

func routeState(s *domain.State, r *router) (*domain.State, error) {
	target, err := r.route(s)
	if err != nil {
		return s, err
	}
	if target == domain.StepEnd {
		s.End()
	} else {
		s.Goto(target)
	}
	return s, nil
}

func decodeParams(spec NodeSpec, out any) error {
	if err := mapstructure.Decode(spec.Params, out); err != nil {
		return &domain.ConfigError{Op: "compile", Name: spec.Name, Reason: fmt.Sprintf("bad params: %v", err)}
	}
	return nil
}
