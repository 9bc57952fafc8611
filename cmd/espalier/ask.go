package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/avhart/espalier/pkg/runner"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question using the ingested documents",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, _ := newEngine(cmd)
		defer eng.Close()

		question := strings.Join(args, " ")
		answer, err := eng.Pipeline().Ask(cmd.Context(), question)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		text := answer.Text
		stdoutFd := int(os.Stdout.Fd())
		if term.IsTerminal(stdoutFd) {
			if render := runner.NewMarkdownRenderer(stdoutFd); render != nil {
				if rendered, err := render(text); err == nil {
					text = rendered
				}
			}
		}
		fmt.Println(strings.TrimSpace(text))

		if showSources, _ := cmd.Flags().GetBool("sources"); showSources {
			fmt.Println()
			for i, src := range answer.Sources {
				fmt.Printf("[%d] %s #%d (score %.3f)\n", i+1, src.DocumentID, src.Ordinal, src.Score)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().Bool("sources", false, "Print the chunks the answer was grounded on")
}
