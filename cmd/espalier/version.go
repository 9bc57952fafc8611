package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avhart/espalier"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("espalier", espalier.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
