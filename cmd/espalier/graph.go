package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avhart/espalier/pkg/adapters/yamlflow"
	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/ports"
)

// noopModel satisfies the compile step when only the graph shape is needed.
type noopModel struct{}

func (noopModel) Generate(context.Context, []domain.Message, ports.SamplingParams) (*ports.Completion, error) {
	return &ports.Completion{}, nil
}

var graphCmd = &cobra.Command{
	Use:   "graph <flow.yaml>",
	Short: "Render a flow as a Mermaid flowchart",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flow, err := yamlflow.Load(args[0])
		if err != nil {
			fmt.Printf("Error loading flow: %v\n", err)
			os.Exit(1)
		}
		// Prompt nodes are compiled against a model; rendering only needs
		// the shape, so a nil-model compile failure is still fatal here.
		wf, err := flow.Compile(yamlflow.Deps{Model: noopModel{}})
		if err != nil {
			fmt.Printf("Error compiling flow: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(wf.Mermaid(nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
