package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avhart/espalier"
	"github.com/avhart/espalier/internal/config"
	"github.com/avhart/espalier/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "espalier",
	Short: "Espalier is a conversational workflow engine with retrieval",
	Long:  `Espalier runs YAML-defined conversational workflows, answers questions over ingested documents, and serves both over HTTP and MCP.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "Path to a .env file (default: ./.env when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides ESPALIER_LOG_LEVEL)")
}

// loadConfig reads the configuration honoring the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// newEngine wires the engine from configuration, exiting on failure.
func newEngine(cmd *cobra.Command) (*espalier.Engine, *config.Config) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))
	eng, err := espalier.New(context.Background(), cfg, espalier.WithLogger(logger))
	if err != nil {
		fmt.Printf("Error initializing engine: %v\n", err)
		os.Exit(1)
	}
	return eng, cfg
}
