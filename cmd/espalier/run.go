package main

import (
	"fmt"
	"os"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/avhart/espalier/pkg/adapters/yamlflow"
	"github.com/avhart/espalier/pkg/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <flow.yaml>",
	Short: "Run a workflow interactively in the terminal",
	Long:  `Loads a YAML flow definition and runs it: assistant messages are printed as they are produced and the terminal prompts when the flow asks for input.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, _ := newEngine(cmd)
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

		io := runner.NewTextIO(os.Stdin, os.Stdout)
		plain, _ := cmd.Flags().GetBool("plain")
		stdoutFd := int(os.Stdout.Fd())
		if !plain && term.IsTerminal(stdoutFd) {
			printBanner(flow.Name)
			io.Renderer = runner.NewMarkdownRenderer(stdoutFd)
		}

		interactive := &runner.Interactive{
			Workflow: wf,
			IO:       io,
			Hooks:    eng.Metrics.Hooks(),
			Logger:   eng.Logger,
		}
		if _, err := interactive.Run(cmd.Context(), nil); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func printBanner(name string) {
	p := termenv.ColorProfile()
	title := termenv.String("espalier").Foreground(p.Color("#4ade80")).Bold()
	if name != "" {
		fmt.Printf("%s · %s\n\n", title, name)
		return
	}
	fmt.Printf("%s\n\n", title)
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("plain", false, "Disable markdown rendering and banner")
}
