package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/avhart/espalier"
	httpAdapter "github.com/avhart/espalier/pkg/adapters/http"
	"github.com/avhart/espalier/pkg/adapters/yamlflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve <flow.yaml>",
	Short: "Serve a workflow over HTTP",
	Long:  `Starts the HTTP server: sessions are created and advanced over a JSON API, observed over SSE, and persisted in the configured store between turns.`,
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

		server := httpAdapter.NewServer(wf, eng.Sessions,
			httpAdapter.WithLogger(eng.Logger),
			httpAdapter.WithMetricsHandler(promhttp.Handler()),
			httpAdapter.WithVersion(espalier.Version),
		)

		srv := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: server.Handler(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Starting espalier server on %s\n", srv.Addr)
			fmt.Printf("Serving flow: %s\n", args[0])
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Espalier server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
