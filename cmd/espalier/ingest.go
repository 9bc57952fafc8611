package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avhart/espalier/pkg/adapters/pgvector"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Split, embed and index documents for retrieval",
	Long:  `Reads the given text or PDF files, splits them into overlapping chunks, embeds each chunk and stores it in the configured vector store.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, _ := newEngine(cmd)
		defer eng.Close()
		ctx := cmd.Context()

		if dim, _ := cmd.Flags().GetInt("init-schema"); dim > 0 {
			store, ok := eng.Vectors.(*pgvector.Store)
			if !ok {
				fmt.Println("--init-schema requires a configured Postgres vector store")
				os.Exit(1)
			}
			if err := store.EnsureSchema(ctx, dim); err != nil {
				fmt.Printf("Error creating schema: %v\n", err)
				os.Exit(1)
			}
		}

		ingestor, err := eng.Ingestor()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		total := 0
		for _, path := range args {
			n, err := ingestor.IngestFile(ctx, path)
			if err != nil {
				fmt.Printf("Error ingesting %s: %v\n", path, err)
				os.Exit(1)
			}
			fmt.Printf("Ingested %s (%d chunks)\n", path, n)
			total += n
		}
		fmt.Printf("Done: %d chunks from %d files\n", total, len(args))
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().Int("init-schema", 0, "Create the pgvector schema with the given embedding dimension before ingesting")
}
