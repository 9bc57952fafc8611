// Package yamlflow loads workflow definitions from YAML files and compiles
// them into executable workflows. A flow file declares named nodes of a few
// built-in kinds (say, input, prompt) plus routing, so conversational flows
// can be authored without writing Go.
package yamlflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/graph"
)

// Flow is the top-level document of a flow file.
type Flow struct {
	Name  string     `yaml:"name"`
	Entry string     `yaml:"entry"`
	Nodes []NodeSpec `yaml:"nodes"`
}

// NodeSpec declares a single node. Params is decoded per node kind.
type NodeSpec struct {
	Name     string         `yaml:"name"`
	Kind     string         `yaml:"kind"`
	Params   map[string]any `yaml:"params"`
	Next     string         `yaml:"next"`
	Branches []BranchSpec   `yaml:"branches"`
}

// BranchSpec routes to a target when its condition evaluates to true.
// Branches are tried in order; the node's Next is the fallback.
type BranchSpec struct {
	When string `yaml:"when"`
	To   string `yaml:"to"`
}

// Load reads and parses a flow file.
func Load(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a flow document from raw YAML.
func Parse(data []byte) (*Flow, error) {
	var flow Flow
	if err := yaml.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("failed to parse flow: %w", err)
	}
	if len(flow.Nodes) == 0 {
		return nil, &domain.ConfigError{Op: "parse", Name: flow.Name, Reason: "flow declares no nodes"}
	}
	if flow.Entry == "" {
		flow.Entry = flow.Nodes[0].Name
	}
	return &flow, nil
}

// Compile builds an executable workflow from the flow. The declared routing
// is registered as edges so the graph renders and validates; conditional
// branches are compiled once and evaluated per step.
func (f *Flow) Compile(deps Deps) (*graph.Workflow, error) {
	wf := graph.New()
	for _, spec := range f.Nodes {
		fn, err := buildNode(spec, deps)
		if err != nil {
			return nil, err
		}
		if err := wf.Register(spec.Name, fn); err != nil {
			return nil, err
		}
	}
	for _, spec := range f.Nodes {
		targets := make(map[string]bool)
		for _, br := range spec.Branches {
			targets[br.To] = true
		}
		if spec.Next != "" {
			targets[spec.Next] = true
		}
		for to := range targets {
			if err := wf.Connect(spec.Name, to); err != nil {
				return nil, err
			}
		}
	}
	if err := wf.SetEntry(f.Entry); err != nil {
		return nil, err
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return wf, nil
}
