package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avhart/espalier"
	mcpAdapter "github.com/avhart/espalier/pkg/adapters/mcp"
	"github.com/avhart/espalier/pkg/adapters/yamlflow"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <flow.yaml>",
	Short: "Serve a workflow and document QA over MCP",
	Long:  `Starts an MCP server exposing the workflow as session tools and, when documents are ingested, an ask tool for retrieval-augmented answers. Uses stdio by default; pass --sse to serve over HTTP instead.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, cfg := newEngine(cmd)
		defer eng.Close()

		flow, err := yamlflow.Load(args[0])
		if err != nil {
			fmt.Printf("Error loading flow: %v\n", err)
			os.Exit(1)
		}
		wf, err := flow.Compile(yamlflow.Deps{Model: eng.Model, Logger: eng.Logger})
		if err != nil {
			fmt.Printf("Error compiling flow: %v\n", err)
			os.Exit(1)
		}

		server := mcpAdapter.NewServer(espalier.Version, wf, eng.Sessions,
			mcpAdapter.WithPipeline(eng.Pipeline()),
			mcpAdapter.WithLogger(eng.Logger),
		)

		if useSSE, _ := cmd.Flags().GetBool("sse"); useSSE {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := server.ServeSSE(ctx, cfg.MCPPort); err != nil {
				fmt.Printf("MCP server error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		if err := server.ServeStdio(); err != nil {
			fmt.Printf("MCP server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().Bool("sse", false, "Serve over SSE instead of stdio")
}
